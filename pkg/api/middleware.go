// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	HeaderUserID         = "X-User-ID"
	HeaderUserRole       = "X-User-Role"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// Role of the caller, asserted by the gateway in front of the API.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdvertiser Role = "advertiser"
	RoleAdmin      Role = "admin"
)

const (
	ctxUserID = "adsprint.user_id"
	ctxRole   = "adsprint.role"
)

// identity copies the caller headers into the context. Authentication
// happens upstream.
func identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader(HeaderUserID); id != "" {
			c.Set(ctxUserID, id)
		}
		if role := c.GetHeader(HeaderUserRole); role != "" {
			c.Set(ctxRole, Role(role))
		}
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func roleOf(c *gin.Context) Role {
	r, _ := c.Get(ctxRole)
	role, _ := r.(Role)
	return role
}

// requireRole rejects callers without an identity or with another role.
// Admins pass every check.
func requireRole(role Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID(c) == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "missing "+HeaderUserID)
			return
		}
		got := roleOf(c)
		if got != role && got != RoleAdmin {
			abort(c, http.StatusForbidden, "FORBIDDEN", "requires role "+string(role))
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("user", userID(c)),
		}
		if status >= http.StatusInternalServerError {
			s.log.Warn("request failed", fields...)
			return
		}
		s.log.Debug("request", fields...)
	}
}

func (s *Server) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		s.metrics.Request(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
