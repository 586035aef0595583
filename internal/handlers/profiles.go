package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wallforge/wallsim-backend/internal/services"
)

type ProfilesHandler struct {
	walls services.WallService
}

func NewProfilesHandler(walls services.WallService) *ProfilesHandler {
	return &ProfilesHandler{walls: walls}
}

func numCrewsQuery(c *gin.Context) (int, error) {
	raw := c.DefaultQuery("num_crews", "0")
	crews, err := strconv.Atoi(raw)
	if err != nil || crews < 0 {
		return 0, fmt.Errorf("num_crews must be a non-negative integer, got %q", raw)
	}
	return crews, nil
}

func intParam(c *gin.Context, name string) (int, error) {
	raw := c.Param(name)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	return v, nil
}

// GET /api/profiles/overview
func (h *ProfilesHandler) Overview(c *gin.Context) {
	crews, err := numCrewsQuery(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_num_crews", err)
		return
	}
	cost, err := h.walls.Overview(c.Request.Context(), crews)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"wall_cost": cost, "num_crews": crews})
}

// GET /api/profiles/overview/:day
func (h *ProfilesHandler) OverviewDay(c *gin.Context) {
	crews, err := numCrewsQuery(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_num_crews", err)
		return
	}
	day, err := intParam(c, "day")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_day", err)
		return
	}
	cost, err := h.walls.OverviewDay(c.Request.Context(), day, crews)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"day": day, "cost": cost, "num_crews": crews})
}

// GET /api/profiles/:profile_id/days/:day
func (h *ProfilesHandler) ProfileDayIce(c *gin.Context) {
	crews, err := numCrewsQuery(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_num_crews", err)
		return
	}
	profileID, err := intParam(c, "profile_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_profile_id", err)
		return
	}
	day, err := intParam(c, "day")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_day", err)
		return
	}
	ice, err := h.walls.ProfileDayIce(c.Request.Context(), profileID, day, crews)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"profile_id": profileID, "day": day, "ice_amount": ice, "num_crews": crews})
}

// GET /api/profiles/:profile_id/overview/:day
func (h *ProfilesHandler) ProfileOverviewDay(c *gin.Context) {
	crews, err := numCrewsQuery(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_num_crews", err)
		return
	}
	profileID, err := intParam(c, "profile_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_profile_id", err)
		return
	}
	day, err := intParam(c, "day")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_day", err)
		return
	}
	cost, err := h.walls.ProfileOverviewDay(c.Request.Context(), profileID, day, crews)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"profile_id": profileID, "day": day, "cost": cost, "num_crews": crews})
}

// GET /api/profiles/:profile_id/overview
func (h *ProfilesHandler) ProfileOverview(c *gin.Context) {
	crews, err := numCrewsQuery(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_num_crews", err)
		return
	}
	profileID, err := intParam(c, "profile_id")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_profile_id", err)
		return
	}
	cost, err := h.walls.ProfileOverview(c.Request.Context(), profileID, crews)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"profile_id": profileID, "cost": cost, "num_crews": crews})
}
