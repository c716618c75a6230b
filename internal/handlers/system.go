package handlers

import (
	"errors"
	"net/http"

	"github.com/ItsHarshjsin/riseup-sub000/internal/services"
)

type SystemHandler struct {
	queries     *services.Queries
	clanService *services.ClanService
	progress    *services.ProgressService
}

func NewSystemHandler(queries *services.Queries, clanService *services.ClanService, progress *services.ProgressService) *SystemHandler {
	return &SystemHandler{
		queries:     queries,
		clanService: clanService,
		progress:    progress,
	}
}

func (handler *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// CacheStats reports query cache counters.
func (handler *SystemHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, handler.queries.CacheStats())
}

// Repair runs the repair passes for interrupted multi-step writes and drifted
// mastery rows.
func (handler *SystemHandler) Repair(w http.ResponseWriter, r *http.Request) {
	clanErr := handler.clanService.RunRepairs(r.Context())
	_, masteryErr := handler.progress.RepairMastery(r.Context())
	if err := errors.Join(clanErr, masteryErr); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
