package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acksell/crm/crmerr"
)

const (
	msgInternal        = "internal error"
	msgInvalidBody     = "invalid request body"
	msgNothingToUpdate = "No fields to update"
)

type errorBody struct {
	Error       string   `json:"error"`
	Violations  []string `json:"violations,omitempty"`
	FailedNotes []string `json:"failedNotes,omitempty"`
}

// bodyError is a request body that is not valid JSON for the target type.
type bodyError struct {
	err error
}

func (e *bodyError) Error() string { return msgInvalidBody + ": " + e.err.Error() }
func (e *bodyError) Unwrap() error { return e.err }

// writeError is the single place errors are turned into responses. Internal
// details are logged, never returned.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, body := shape(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(c.Request.Context(), "request failed",
			slog.String("path", c.Request.URL.Path),
			slog.String("requestId", c.GetString(HeaderRequestID)),
			slog.Any("error", err))
	}
	c.AbortWithStatusJSON(status, body)
}

func shape(err error) (int, errorBody) {
	var (
		verr    *crmerr.ValidationError
		nf      *crmerr.NotFoundError
		cascade *crmerr.CascadeError
		berr    *bodyError
	)
	switch {
	case errors.As(err, &berr):
		return http.StatusBadRequest, errorBody{Error: msgInvalidBody}
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorBody{Error: "validation failed", Violations: verr.Violations}
	case errors.Is(err, crmerr.ErrNothingToUpdate):
		return http.StatusBadRequest, errorBody{Error: msgNothingToUpdate}
	case errors.As(err, &nf):
		return http.StatusNotFound, errorBody{Error: nf.Error()}
	case errors.As(err, &cascade):
		return http.StatusInternalServerError, errorBody{
			Error:       "customer not deleted, some notes could not be deleted",
			FailedNotes: cascade.FailedIDs(),
		}
	default:
		return http.StatusInternalServerError, errorBody{Error: msgInternal}
	}
}
