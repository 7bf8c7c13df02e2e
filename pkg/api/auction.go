// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/luxfi/adsprint/pkg/auction"
	"github.com/luxfi/adsprint/pkg/calendar"
	"github.com/luxfi/adsprint/pkg/errs"
)

const dateLayout = "2006-01-02"

// listSlots serves slot availability for [from, to], both dates inclusive.
// Without parameters it lists the next seven days.
func (s *Server) listSlots(c *gin.Context) {
	today := calendar.StartOfDay(s.clock.Now().In(s.loc))
	from, err := s.dateParam(c, "from", today)
	if err != nil {
		s.fail(c, err)
		return
	}
	to, err := s.dateParam(c, "to", from.AddDate(0, 0, 6))
	if err != nil {
		s.fail(c, err)
		return
	}

	slots, err := s.auctions.Availability(c.Request.Context(), from, to.AddDate(0, 0, 1))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots, "serverTime": s.clock.Now().UTC()})
}

type bidBody struct {
	BasePriceOffer       decimal.Decimal `json:"basePriceOffer"`
	ImpressionPriceOffer decimal.Decimal `json:"impressionPriceOffer"`
}

func (s *Server) placeBid(c *gin.Context) {
	var body bidBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}
	bid, err := s.auctions.PlaceBid(c.Request.Context(), auction.BidRequest{
		SlotID:               c.Param("id"),
		AdvertiserID:         userID(c),
		BasePriceOffer:       body.BasePriceOffer,
		ImpressionPriceOffer: body.ImpressionPriceOffer,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, bid)
}

func (s *Server) awardSlot(c *gin.Context) {
	settlement, err := s.auctions.AwardSlot(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settlement)
}

type generateBody struct {
	Days int `json:"days"`
}

func (s *Server) generateSlots(c *gin.Context) {
	var body generateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}
	n, err := s.auctions.GenerateSlots(c.Request.Context(), body.Days)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": n})
}

func (s *Server) dateParam(c *gin.Context, name string, def time.Time) (time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	t, err := time.ParseInLocation(dateLayout, v, s.loc)
	if err != nil {
		return time.Time{}, errs.ErrInvalidInput.With("%s must be YYYY-MM-DD", name)
	}
	return t, nil
}
