// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/luxfi/adsprint/pkg/calendar"
	"github.com/luxfi/adsprint/pkg/ledger"
	"github.com/luxfi/adsprint/pkg/sprint"
)

func (s *Server) sprintStatus(c *gin.Context) {
	r, err := s.sprints.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) currentSprint(c *gin.Context) {
	r, err := s.sprints.Current(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) nextSprint(c *gin.Context) {
	r, err := s.sprints.Next(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) raffleResult(c *gin.Context) {
	r, err := s.ledger.Result(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type sprintBody struct {
	StartDate time.Time `json:"startDate" binding:"required"`
	EndDate   time.Time `json:"endDate" binding:"required"`
	Category  string    `json:"category"`
}

func (s *Server) createSprint(c *gin.Context) {
	var body sprintBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}
	sp, err := s.sprints.Create(c.Request.Context(), sprint.Sprint{
		StartDate: body.StartDate,
		EndDate:   body.EndDate,
		Category:  body.Category,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sp)
}

type planBody struct {
	DayOfWeek       int                `json:"dayOfWeek"`
	StartTime       calendar.TimeOfDay `json:"startTime"`
	DurationMinutes int                `json:"durationMinutes"`
	Category        string             `json:"category"`
	Weeks           int                `json:"weeks" binding:"required"`
}

func (s *Server) planSprints(c *gin.Context) {
	var body planBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}
	created, err := s.sprints.Plan(c.Request.Context(), sprint.Template{
		DayOfWeek: time.Weekday(body.DayOfWeek),
		Start:     body.StartTime,
		Duration:  time.Duration(body.DurationMinutes) * time.Minute,
		Category:  body.Category,
	}, body.Weeks)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created})
}

type viewBody struct {
	AdID            string `json:"adId" binding:"required"`
	SprintID        string `json:"sprintId" binding:"required"`
	DurationSeconds int    `json:"durationSeconds"`
}

// recordView credits a completed viewing attempt. The Idempotency-Key
// header is the attempt id; retries with the same key are rejected as
// duplicates.
func (s *Server) recordView(c *gin.Context) {
	var body viewBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}
	receipt, err := s.ledger.RecordView(c.Request.Context(), ledger.ViewRequest{
		AttemptID:       c.GetHeader(HeaderIdempotencyKey),
		UserID:          userID(c),
		AdID:            body.AdID,
		SprintID:        body.SprintID,
		DurationSeconds: body.DurationSeconds,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (s *Server) account(c *gin.Context) {
	a, err := s.ledger.Account(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) applyRaffle(c *gin.Context) {
	var in ledger.RaffleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.badRequest(c, err)
		return
	}
	out, err := s.ledger.ApplyRaffleResult(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	c.JSON(status, out)
}
