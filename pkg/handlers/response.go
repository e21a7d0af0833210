package handlers

import (
	"errors"
	"net/http"

	"gtm-agent-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// errorBody is the JSON error envelope shared by every endpoint.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// statusFor maps a service error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, services.ErrOutOfRange):
		return http.StatusBadRequest, "out_of_range"
	case errors.Is(err, services.ErrInvalidFilename):
		return http.StatusBadRequest, "invalid_filename"
	case errors.Is(err, services.ErrInvalidType):
		return http.StatusBadRequest, "invalid_type"
	case errors.Is(err, services.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, services.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, services.ErrArtifactNotFound):
		return http.StatusNotFound, "artifact_not_found"
	case errors.Is(err, services.ErrScorecardNotReady):
		return http.StatusNotFound, "scorecard_not_ready"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// RespondError writes err in the error envelope.
func RespondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, errorBody{Error: errorDetail{Message: msg, Code: code}})
}

// RespondMessage writes a plain message in the error envelope.
func RespondMessage(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorBody{Error: errorDetail{Message: msg, Code: code}})
}
