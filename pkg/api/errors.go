// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/luxfi/adsprint/pkg/errs"
	"github.com/luxfi/adsprint/pkg/ledger"
)

// ErrorBody is the payload of every failed request.
type ErrorBody struct {
	Error ErrorInfo `json:"error"`
}

type ErrorInfo struct {
	Code          string       `json:"code"`
	Message       string       `json:"message"`
	Informational bool         `json:"informational,omitempty"`
	View          *ledger.View `json:"view,omitempty"`
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind errs.Kind) int {
	switch kind {
	case errs.Validation:
		return http.StatusBadRequest
	case errs.NotFound:
		return http.StatusNotFound
	case errs.Conflict:
		return http.StatusConflict
	case errs.Eligibility:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: ErrorInfo{Code: code, Message: message}})
}

// fail writes err as an ErrorBody. Internal details are not exposed.
func (s *Server) fail(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	info := ErrorInfo{Code: errs.CodeOf(err), Message: err.Error()}

	switch {
	case errs.Informational(err):
		info.Informational = true
		var e *errs.Error
		if errors.As(err, &e) {
			info.Message = e.Message
		}
		var rejected *ledger.RejectedView
		if errors.As(err, &rejected) {
			info.Message = rejected.Reason.Message
			info.View = &rejected.View
		}
		s.log.Debug("request not eligible", zap.String("path", c.FullPath()), zap.String("code", info.Code))
	case kind == errs.Invariant:
		s.log.Error("invariant violation", zap.String("path", c.FullPath()), zap.Error(err))
	case kind == errs.Internal:
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		info.Message = "internal error"
	}
	c.AbortWithStatusJSON(StatusOf(kind), ErrorBody{Error: info})
}

// badRequest reports a body or query that could not be decoded.
func (s *Server) badRequest(c *gin.Context, err error) {
	s.fail(c, errs.ErrInvalidInput.With("%v", err))
}
