package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/middleware"
	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/ItsHarshjsin/riseup-sub000/internal/services"
)

const (
	defaultLeaderboardSize = 10
	defaultCalendarDays    = 35
	maxCalendarDays        = 366
)

type ProgressHandler struct {
	profileService *services.ProfileService
	queries        *services.Queries
}

func NewProgressHandler(profileService *services.ProfileService, queries *services.Queries) *ProgressHandler {
	return &ProgressHandler{profileService: profileService, queries: queries}
}

func (handler *ProgressHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var input services.ProfileUpdate
	if !decodeJSON(w, r, &input) {
		return
	}

	profile, err := handler.profileService.UpdateProfile(r.Context(), middleware.GetSession(r.Context()), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (handler *ProgressHandler) Level(w http.ResponseWriter, r *http.Request) {
	result, err := handler.queries.Level(r.Context(), middleware.GetSession(r.Context()))
	writeResult(w, result, err)
}

func (handler *ProgressHandler) Mastery(w http.ResponseWriter, r *http.Request) {
	result, err := handler.queries.Mastery(r.Context(), middleware.GetSession(r.Context()))
	writeResult(w, result, err)
}

func (handler *ProgressHandler) Badges(w http.ResponseWriter, r *http.Request) {
	result, err := handler.queries.Badges(r.Context(), middleware.GetSession(r.Context()))
	writeResult(w, result, err)
}

// Calendar returns one day per date in ?from..?to, the last five weeks by
// default.
func (handler *ProgressHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	to := now
	from := now.AddDate(0, 0, -(defaultCalendarDays - 1))

	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.ParseInLocation(models.DateLayout, raw, now.Location())
		if err != nil {
			writeError(w, fmt.Errorf("to must be YYYY-MM-DD: %w", services.ErrInvalidInput))
			return
		}
		to = parsed
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.ParseInLocation(models.DateLayout, raw, now.Location())
		if err != nil {
			writeError(w, fmt.Errorf("from must be YYYY-MM-DD: %w", services.ErrInvalidInput))
			return
		}
		from = parsed
	}
	if to.Before(from) || to.Sub(from) > maxCalendarDays*24*time.Hour {
		writeError(w, fmt.Errorf("range must be forward and at most a year: %w", services.ErrInvalidInput))
		return
	}

	result, err := handler.queries.Calendar(r.Context(), middleware.GetSession(r.Context()), from, to)
	writeResult(w, result, err)
}

func (handler *ProgressHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultLeaderboardSize)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := handler.queries.Leaderboard(r.Context(), limit)
	writeResult(w, result, err)
}

func (handler *ProgressHandler) ClanLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultLeaderboardSize)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := handler.queries.ClanLeaderboard(r.Context(), limit)
	writeResult(w, result, err)
}

func (handler *ProgressHandler) Online(w http.ResponseWriter, r *http.Request) {
	result, err := handler.queries.Online(r.Context())
	writeResult(w, result, err)
}
