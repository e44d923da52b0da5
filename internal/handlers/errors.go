package handlers

import (
	"errors"
	"net/http"

	"prizedraw/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
)

const (
	codeInvalidRequestBody = "invalid_request_body"
	codeInvalidID          = "invalid_id"
	codeIdentityNotFound   = "identity_not_found"
	codeEventNotFound      = "event_not_found"
	codeEventClosed        = "event_closed"
	codeInvalidPrize       = "invalid_prize"
	codeInvalidTimestamp   = "invalid_timestamp"
	codeEventNameRequired  = "event_name_required"
	codeInvalidUser        = "invalid_user"
	codeUserExists         = "user_exists"
	codeForbidden          = "forbidden"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var serviceErrors = []errorMapping{
	{services.ErrIdentityNotFound, http.StatusNotFound, codeIdentityNotFound},
	{services.ErrEventNotFound, http.StatusNotFound, codeEventNotFound},
	{services.ErrEventClosed, http.StatusConflict, codeEventClosed},
	{services.ErrUserExists, http.StatusConflict, codeUserExists},
	{services.ErrInvalidPrize, http.StatusBadRequest, codeInvalidPrize},
	{services.ErrInvalidTimestamp, http.StatusBadRequest, codeInvalidTimestamp},
	{services.ErrEventNameRequired, http.StatusBadRequest, codeEventNameRequired},
	{services.ErrInvalidUser, http.StatusBadRequest, codeInvalidUser},
}

func writeError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, Code: code})
}

// writeServiceError maps a service error to its HTTP status. Storage and
// unknown errors become 500 without exposing the driver message.
func writeServiceError(c *gin.Context, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			writeError(c, m.status, m.code, err.Error())
			return
		}
	}
	logger.Errorf("request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	writeError(c, http.StatusInternalServerError, codeInternalError, "internal error")
}
