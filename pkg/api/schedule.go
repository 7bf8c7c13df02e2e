// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/luxfi/adsprint/pkg/calendar"
	"github.com/luxfi/adsprint/pkg/errs"
	"github.com/luxfi/adsprint/pkg/schedule"
)

// resolvedAd answers which ad airs at ?at=RFC3339, defaulting to now.
func (s *Server) resolvedAd(c *gin.Context) {
	at := s.clock.Now()
	if v := c.Query("at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.fail(c, errs.ErrInvalidInput.With("at must be RFC3339"))
			return
		}
		at = t
	}
	res, err := s.schedule.Resolve(c.Request.Context(), at)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type entryBody struct {
	AdvertiserID  string             `json:"advertiserId" binding:"required"`
	AdID          string             `json:"adId"`
	DayOfWeek     *int               `json:"dayOfWeek" binding:"required"`
	StartTime     calendar.TimeOfDay `json:"startTime"`
	EndTime       calendar.TimeOfDay `json:"endTime"`
	StartDate     string             `json:"startDate"`
	EndDate       string             `json:"endDate"`
	Priority      int                `json:"priority"`
	Active        *bool              `json:"active"`
	AllowFallback bool               `json:"allowFallback"`
}

func (b entryBody) entry(loc *time.Location) (schedule.Entry, error) {
	e := schedule.Entry{
		AdvertiserID:  b.AdvertiserID,
		AdID:          b.AdID,
		DayOfWeek:     time.Weekday(*b.DayOfWeek),
		Start:         b.StartTime,
		End:           b.EndTime,
		Priority:      b.Priority,
		Active:        b.Active == nil || *b.Active,
		AllowFallback: b.AllowFallback,
	}
	var err error
	if b.StartDate != "" {
		if e.StartDate, err = time.ParseInLocation(dateLayout, b.StartDate, loc); err != nil {
			return e, errs.ErrInvalidInput.With("startDate must be YYYY-MM-DD")
		}
	}
	if b.EndDate != "" {
		if e.EndDate, err = time.ParseInLocation(dateLayout, b.EndDate, loc); err != nil {
			return e, errs.ErrInvalidInput.With("endDate must be YYYY-MM-DD")
		}
	}
	return e, nil
}

func (s *Server) createEntry(c *gin.Context) {
	var body entryBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}
	e, err := body.entry(s.loc)
	if err != nil {
		s.fail(c, err)
		return
	}
	created, err := s.schedule.CreateEntry(c.Request.Context(), e)
	if err != nil {
		var conflict *schedule.ConflictError
		if errors.As(err, &conflict) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error":    ErrorInfo{Code: errs.CodeOf(err), Message: err.Error()},
				"conflict": conflict.Existing,
			})
			return
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) listEntries(c *gin.Context) {
	f := schedule.Filter{
		AdvertiserID: c.Query("advertiserId"),
		Source:       schedule.Source(c.Query("source")),
	}
	if v := c.Query("dayOfWeek"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 || d > 6 {
			s.fail(c, errs.ErrInvalidInput.With("dayOfWeek must be 0-6"))
			return
		}
		day := time.Weekday(d)
		f.Day = &day
	}
	entries, err := s.schedule.Entries(c.Request.Context(), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) deleteEntry(c *gin.Context) {
	if err := s.schedule.DeleteEntry(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type attachBody struct {
	AdID string `json:"adId" binding:"required"`
}

// attachAd fills the creative of an entry won at auction by the caller.
func (s *Server) attachAd(c *gin.Context) {
	var body attachBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}
	e, err := s.schedule.AttachAd(c.Request.Context(), c.Param("id"), userID(c), body.AdID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}
