package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ItsHarshjsin/riseup-sub000/internal/querycache"
	"github.com/ItsHarshjsin/riseup-sub000/internal/services"
)

const maxBodyBytes = 1 << 20

// StaleHeader is set on read responses served from an older value because
// the latest refetch failed.
const StaleHeader = "X-Data-Stale"

// Error styles tell clients how loudly to surface a failure.
const (
	styleDefault     = "default"
	styleDestructive = "destructive"
)

type errorBody struct {
	Error   string         `json:"error"`
	Variant string         `json:"variant"`
	Style   string         `json:"style"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeResult writes a cached read. Stale data is still served, flagged by
// StaleHeader.
func writeResult[T any](w http.ResponseWriter, result querycache.Result[T], err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	if result.Stale {
		w.Header().Set(StaleHeader, "true")
		slog.Warn("serving stale data", "error", result.Err)
	}
	writeJSON(w, http.StatusOK, result.Data)
}

func writeError(w http.ResponseWriter, err error) {
	status, body := classify(err)
	body.Style = styleDefault
	if status >= http.StatusInternalServerError {
		body.Style = styleDestructive
		slog.Error("request failed", "variant", body.Variant, "error", err)
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, errorBody) {
	var orphaned *services.OrphanedClanError
	var partialParticipants *services.PartialParticipantsError
	var partialAccept *services.PartialAcceptError

	switch {
	case errors.As(err, &orphaned):
		return http.StatusInternalServerError, errorBody{
			Error:   "clan created but owner membership failed",
			Variant: "orphaned_clan",
			Details: map[string]any{"clan_id": orphaned.ClanID},
		}
	case errors.As(err, &partialParticipants):
		return http.StatusInternalServerError, errorBody{
			Error:   "challenge created but some participants were not added",
			Variant: "partial_participants",
			Details: map[string]any{"challenge_id": partialParticipants.ChallengeID, "missing": partialParticipants.Missing},
		}
	case errors.As(err, &partialAccept):
		return http.StatusInternalServerError, errorBody{
			Error:   "invite accepted but membership failed",
			Variant: "partial_accept",
			Details: map[string]any{"invite_id": partialAccept.InviteID, "clan_id": partialAccept.ClanID},
		}
	case errors.Is(err, services.ErrUnauthenticated):
		return http.StatusUnauthorized, errorBody{Error: err.Error(), Variant: "unauthenticated"}
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, errorBody{Error: err.Error(), Variant: "forbidden"}
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: err.Error(), Variant: "not_found"}
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict, errorBody{Error: err.Error(), Variant: "conflict"}
	case errors.Is(err, services.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Variant: "invalid_transition"}
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest, errorBody{Error: err.Error(), Variant: "invalid_input"}
	case errors.Is(err, services.ErrRemoteFailure):
		return http.StatusBadGateway, errorBody{Error: "data store request failed", Variant: "remote_failure"}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error", Variant: "internal"}
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, into any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		writeError(w, fmt.Errorf("decoding request body: %v: %w", err, services.ErrInvalidInput))
		return false
	}
	return true
}

// queryInt reads a non-negative integer query parameter, falling back to
// fallback when it is absent.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer: %w", name, services.ErrInvalidInput)
	}
	return value, nil
}
