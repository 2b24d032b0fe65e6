package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/gameledger/internal/engine"
)

var errNoUser = errors.New(UserHeader + " header is required")

// errBadBody wraps a request body that could not be decoded.
type errBadBody struct{ err error }

func (e errBadBody) Error() string { return "invalid request body: " + e.err.Error() }
func (e errBadBody) Unwrap() error { return e.err }

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    string            `json:"code"`
	Op      string            `json:"op,omitempty"`
	Message string            `json:"message"`
	EventID string            `json:"event_id,omitempty"`
	State   string            `json:"state,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// statusFor maps an engine error code to an HTTP status.
func statusFor(code engine.ErrorCode) int {
	switch code {
	case engine.ErrCodeValidation:
		return http.StatusBadRequest
	case engine.ErrCodeNotFound:
		return http.StatusNotFound
	case engine.ErrCodeState, engine.ErrCodeIntegrityBlock:
		return http.StatusConflict
	case engine.ErrCodeTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *httpHandler) writeError(c *gin.Context, err error) {
	var ee *engine.Error
	var bad errBadBody
	switch {
	case errors.As(err, &ee):
		status := statusFor(ee.Code)
		if status == http.StatusServiceUnavailable {
			c.Header("Retry-After", "1")
		}
		c.JSON(status, errorBody{
			Code:    string(ee.Code),
			Op:      ee.Op,
			Message: ee.Message,
			EventID: ee.EventID,
			State:   ee.State,
			Details: ee.Details,
		})
	case errors.As(err, &bad), errors.Is(err, errNoUser):
		c.JSON(http.StatusBadRequest, errorBody{Code: string(engine.ErrCodeValidation), Message: err.Error()})
	default:
		h.Logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, errorBody{Code: "INTERNAL", Message: "internal error"})
	}
	c.Abort()
}
