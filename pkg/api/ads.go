// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luxfi/adsprint/pkg/ads"
	"github.com/luxfi/adsprint/pkg/ids"
)

type adBody struct {
	MediaURL        string `json:"mediaUrl" binding:"required"`
	DurationSeconds int    `json:"durationSeconds" binding:"required"`
}

// createAd registers a creative for the calling advertiser. It stays
// PENDING until an admin reviews it.
func (s *Server) createAd(c *gin.Context) {
	var body adBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	advertiser, err := s.ads.GetAdvertiser(ctx, userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ad := &ads.Ad{
		ID:              ids.New(),
		AdvertiserID:    advertiser.ID,
		MediaURL:        body.MediaURL,
		DurationSeconds: body.DurationSeconds,
		Status:          ads.StatusPending,
		Active:          true,
		CreatedAt:       s.clock.Now().UTC(),
	}
	if err := ad.Validate(); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.ads.CreateAd(ctx, ad); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ad)
}

func (s *Server) listAds(c *gin.Context) {
	advertiser := userID(c)
	if roleOf(c) == RoleAdmin {
		advertiser = c.Query("advertiserId")
	}
	list, err := s.ads.ListAds(c.Request.Context(), advertiser)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ads": list})
}

type reviewBody struct {
	Status ads.ApprovalStatus `json:"status" binding:"required"`
}

func (s *Server) reviewAd(c *gin.Context) {
	var body reviewBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}
	now := s.clock.Now().UTC()
	ad, err := s.ads.UpdateAd(c.Request.Context(), c.Param("id"), func(a *ads.Ad) error {
		return a.Review(body.Status, now)
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

type advertiserBody struct {
	ID   string `json:"id"`
	Name string `json:"name" binding:"required"`
}

func (s *Server) createAdvertiser(c *gin.Context) {
	var body advertiserBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}
	a := &ads.Advertiser{ID: body.ID, Name: body.Name, Active: true, CreatedAt: s.clock.Now().UTC()}
	if a.ID == "" {
		a.ID = ids.New()
	}
	if err := s.ads.CreateAdvertiser(c.Request.Context(), a); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}
