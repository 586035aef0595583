package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wallforge/wallsim-backend/internal/services"
	"github.com/wallforge/wallsim-backend/internal/wallsim"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondServiceError maps the service sentinels onto HTTP statuses.
func RespondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrProfileOutOfRange):
		RespondError(c, http.StatusBadRequest, "profile_out_of_range", err)
	case errors.Is(err, services.ErrDayOutOfRange):
		RespondError(c, http.StatusBadRequest, "day_out_of_range", err)
	case errors.Is(err, wallsim.ErrConfiguration):
		RespondError(c, http.StatusBadRequest, "invalid_wall_configuration", err)
	case errors.Is(err, services.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, services.ErrDeletionInProgress):
		RespondError(c, http.StatusConflict, "deletion_in_progress", err)
	case errors.Is(err, services.ErrBeingInitialized):
		RespondError(c, http.StatusServiceUnavailable, "being_initialized", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
