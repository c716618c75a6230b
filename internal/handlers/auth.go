package handlers

import (
	"log/slog"
	"net/http"

	"github.com/ItsHarshjsin/riseup-sub000/internal/middleware"
	"github.com/ItsHarshjsin/riseup-sub000/internal/services"
)

type AuthHandler struct {
	authService *services.AuthService
	queries     *services.Queries
}

func NewAuthHandler(authService *services.AuthService, queries *services.Queries) *AuthHandler {
	return &AuthHandler{authService: authService, queries: queries}
}

func (handler *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !handler.authService.OIDCConfigured() {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "OIDC not configured, use dev login", Variant: "oidc_disabled", Style: styleDefault})
		return
	}

	state, err := handler.authService.GenerateState()
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})

	http.Redirect(w, r, handler.authService.LoginURL(state), http.StatusFound)
}

func (handler *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil {
		http.Error(w, "Missing state cookie", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("state") != stateCookie.Value {
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing code", http.StatusBadRequest)
		return
	}

	profile, err := handler.authService.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("handling callback", "error", err)
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}

	if err := handler.authService.SetSession(w, profile); err != nil {
		slog.Error("setting session", "error", err)
		http.Error(w, "Session error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (handler *AuthHandler) DevLogin(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	profile, err := handler.authService.DevLogin(r.Context(), input.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := handler.authService.SetSession(w, profile); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (handler *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	handler.authService.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the signed-in profile.
func (handler *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	result, err := handler.queries.Profile(r.Context(), middleware.GetSession(r.Context()))
	writeResult(w, result, err)
}
