// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/luxfi/adsprint/pkg/sprint"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

// ClockFrame is pushed to clock stream subscribers.
type ClockFrame struct {
	ServerTime time.Time    `json:"serverTime"`
	Sprint     *SprintClock `json:"sprint,omitempty"`
}

// SprintClock is the countdown of the sprint named by ?sprintId.
type SprintClock struct {
	ID            string               `json:"id"`
	Status        sprint.Status        `json:"status"`
	TimeRemaining sprint.TimeRemaining `json:"timeRemaining"`
	CanWatchAds   bool                 `json:"canWatchAds"`
}

// clockStream upgrades to a websocket and pushes a ClockFrame every tick
// until the client goes away.
func (s *Server) clockStream(c *gin.Context) {
	sprintID := c.Query("sprintId")
	if sprintID != "" {
		if _, err := s.sprints.Get(c.Request.Context(), sprintID); err != nil {
			s.fail(c, err)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go readUntilClosed(conn, cancel)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		if err := s.writeFrame(ctx, conn, sprintID); err != nil {
			s.log.Debug("clock stream closed", zap.Error(err))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)) //nolint:errcheck
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) writeFrame(ctx context.Context, conn *websocket.Conn, sprintID string) error {
	frame := ClockFrame{ServerTime: s.clock.Now().UTC()}
	if sprintID != "" {
		r, err := s.sprints.Status(ctx, sprintID)
		if err != nil {
			return err
		}
		frame.Sprint = &SprintClock{
			ID:            r.Sprint.ID,
			Status:        r.Status,
			TimeRemaining: r.TimeRemaining,
			CanWatchAds:   r.CanWatchAds,
		}
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
	return conn.WriteJSON(frame)
}

// readUntilClosed drains client frames so a close is noticed.
func readUntilClosed(conn *websocket.Conn, done context.CancelFunc) {
	defer done()
	conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
