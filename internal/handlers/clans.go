package handlers

import (
	"net/http"

	"github.com/ItsHarshjsin/riseup-sub000/internal/middleware"
	"github.com/ItsHarshjsin/riseup-sub000/internal/services"
	"github.com/go-chi/chi/v5"
)

type ClanHandler struct {
	clanService *services.ClanService
	spinService *services.SpinService
	queries     *services.Queries
}

func NewClanHandler(clanService *services.ClanService, spinService *services.SpinService, queries *services.Queries) *ClanHandler {
	return &ClanHandler{
		clanService: clanService,
		spinService: spinService,
		queries:     queries,
	}
}

func (handler *ClanHandler) Mine(w http.ResponseWriter, r *http.Request) {
	result, err := handler.queries.MyClan(r.Context(), middleware.GetSession(r.Context()))
	writeResult(w, result, err)
}

func (handler *ClanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	clan, err := handler.clanService.CreateClan(r.Context(), middleware.GetSession(r.Context()), input.Name, input.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, clan)
}

func (handler *ClanHandler) Join(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	membership, err := handler.clanService.JoinClanByCode(r.Context(), middleware.GetSession(r.Context()), input.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, membership)
}

func (handler *ClanHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	invite, err := handler.clanService.InviteUserToClan(r.Context(), middleware.GetSession(r.Context()), input.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, invite)
}

func (handler *ClanHandler) Invites(w http.ResponseWriter, r *http.Request) {
	result, err := handler.queries.Invites(r.Context(), middleware.GetSession(r.Context()))
	writeResult(w, result, err)
}

func (handler *ClanHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	membership, err := handler.clanService.AcceptClanInvite(r.Context(), middleware.GetSession(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, membership)
}

func (handler *ClanHandler) RedeemInvite(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	membership, err := handler.clanService.AcceptInviteByCode(r.Context(), middleware.GetSession(r.Context()), input.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, membership)
}

func (handler *ClanHandler) RejectInvite(w http.ResponseWriter, r *http.Request) {
	if err := handler.clanService.RejectClanInvite(r.Context(), middleware.GetSession(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (handler *ClanHandler) Spin(w http.ResponseWriter, r *http.Request) {
	proposals, err := handler.spinService.SpinChallengeWheel(r.Context(), middleware.GetSession(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proposals)
}

func (handler *ClanHandler) AcceptSpin(w http.ResponseWriter, r *http.Request) {
	var proposal services.Proposal
	if !decodeJSON(w, r, &proposal) {
		return
	}

	task, err := handler.spinService.AcceptSpinProposal(r.Context(), middleware.GetSession(r.Context()), proposal)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}
