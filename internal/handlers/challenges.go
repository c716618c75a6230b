package handlers

import (
	"net/http"

	"github.com/ItsHarshjsin/riseup-sub000/internal/middleware"
	"github.com/ItsHarshjsin/riseup-sub000/internal/projections"
	"github.com/ItsHarshjsin/riseup-sub000/internal/services"
	"github.com/go-chi/chi/v5"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
	queries          *services.Queries
}

func NewChallengeHandler(challengeService *services.ChallengeService, queries *services.Queries) *ChallengeHandler {
	return &ChallengeHandler{challengeService: challengeService, queries: queries}
}

// ListPeer returns the caller's open peer challenges. ?limit=0 lists all of
// them; the default is the dashboard preview size.
func (handler *ChallengeHandler) ListPeer(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", projections.PreviewLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := handler.queries.PeerChallenges(r.Context(), middleware.GetSession(r.Context()), limit)
	writeResult(w, result, err)
}

func (handler *ChallengeHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var input services.NewPeerChallenge
	if !decodeJSON(w, r, &input) {
		return
	}

	challenge, err := handler.challengeService.IssueChallenge(r.Context(), middleware.GetSession(r.Context()), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, challenge)
}

func (handler *ChallengeHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Accept bool `json:"accept"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	challenge, err := handler.challengeService.RespondToChallenge(r.Context(), middleware.GetSession(r.Context()), chi.URLParam(r, "id"), input.Accept)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

func (handler *ChallengeHandler) CompletePeer(w http.ResponseWriter, r *http.Request) {
	challenge, err := handler.challengeService.CompleteChallenge(r.Context(), middleware.GetSession(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

func (handler *ChallengeHandler) ListClan(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", projections.PreviewLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := handler.queries.ClanChallenges(r.Context(), middleware.GetSession(r.Context()), limit)
	writeResult(w, result, err)
}

func (handler *ChallengeHandler) CreateClan(w http.ResponseWriter, r *http.Request) {
	var input services.NewClanChallenge
	if !decodeJSON(w, r, &input) {
		return
	}

	challenge, err := handler.challengeService.CreateClanChallenge(r.Context(), middleware.GetSession(r.Context()), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, challenge)
}

func (handler *ChallengeHandler) RetryParticipants(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ParticipantIDs []string `json:"participant_ids"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	challenge, err := handler.challengeService.RetryParticipants(r.Context(), middleware.GetSession(r.Context()), chi.URLParam(r, "id"), input.ParticipantIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

func (handler *ChallengeHandler) CompleteClan(w http.ResponseWriter, r *http.Request) {
	challenge, err := handler.challengeService.CompleteClanChallenge(r.Context(), middleware.GetSession(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}
