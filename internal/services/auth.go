package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/ItsHarshjsin/riseup-sub000/internal/config"
	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/ItsHarshjsin/riseup-sub000/internal/repository"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gorilla/securecookie"
	"golang.org/x/oauth2"
)

const sessionCookie = "session"

var usernameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

type AuthService struct {
	oauthConfig  *oauth2.Config
	oidcVerifier *oidc.IDTokenVerifier
	secureCookie *securecookie.SecureCookie
	profileRepo  repository.ProfileRepository
	suffix       func() string
}

func NewAuthService(ctx context.Context, cfg config.Config, profileRepo repository.ProfileRepository) (*AuthService, error) {
	suffix, err := NewCodeGenerator(4)
	if err != nil {
		return nil, err
	}

	service := &AuthService{
		secureCookie: securecookie.New([]byte(cfg.SessionSecret), nil),
		profileRepo:  profileRepo,
		suffix:       suffix,
	}

	if !cfg.OIDCEnabled() {
		slog.Warn("OIDC not configured, dev login enabled")
		return service, nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
	if err != nil {
		return nil, fmt.Errorf("creating OIDC provider: %w", err)
	}

	service.oauthConfig = &oauth2.Config{
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.OIDCRedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	service.oidcVerifier = provider.Verifier(&oidc.Config{ClientID: cfg.OIDCClientID})

	return service, nil
}

func (service *AuthService) OIDCConfigured() bool {
	return service.oauthConfig != nil
}

func (service *AuthService) LoginURL(state string) string {
	if service.oauthConfig == nil {
		return ""
	}
	return service.oauthConfig.AuthCodeURL(state)
}

func (service *AuthService) GenerateState() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

func (service *AuthService) HandleCallback(ctx context.Context, code string) (models.Profile, error) {
	if service.oauthConfig == nil {
		return models.Profile{}, errors.New("OIDC not configured")
	}

	token, err := service.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return models.Profile{}, fmt.Errorf("exchanging code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return models.Profile{}, errors.New("no id_token in response")
	}

	idToken, err := service.oidcVerifier.Verify(ctx, rawIDToken)
	if err != nil {
		return models.Profile{}, fmt.Errorf("verifying id token: %w", err)
	}

	var claims struct {
		Subject           string `json:"sub"`
		Email             string `json:"email"`
		PreferredUsername string `json:"preferred_username"`
		Picture           string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return models.Profile{}, fmt.Errorf("parsing claims: %w", err)
	}

	username := claims.PreferredUsername
	if username == "" {
		username, _, _ = strings.Cut(claims.Email, "@")
	}

	return service.ProvisionProfile(ctx, claims.Subject, claims.Email, username, claims.Picture)
}

// DevLogin signs in as a local user named username. It is refused when an
// external identity provider is configured.
func (service *AuthService) DevLogin(ctx context.Context, username string) (models.Profile, error) {
	if service.OIDCConfigured() {
		return models.Profile{}, fmt.Errorf("dev login disabled: %w", ErrForbidden)
	}

	username = strings.TrimSpace(username)
	if username == "" {
		return models.Profile{}, fmt.Errorf("username is required: %w", ErrInvalidInput)
	}

	return service.ProvisionProfile(ctx, "dev:"+strings.ToLower(username), strings.ToLower(username)+"@riseup.local", username, "")
}

// ProvisionProfile returns the profile for subject, creating it on first
// sign-in. A taken username gets a short random suffix.
func (service *AuthService) ProvisionProfile(ctx context.Context, subject, email, username, avatarURL string) (models.Profile, error) {
	existing, err := service.profileRepo.FindByOIDCSubject(ctx, subject)
	if err == nil {
		return existing, nil
	}
	if !isNotFound(err) {
		return models.Profile{}, fmt.Errorf("looking up profile: %w", err)
	}

	username = usernameUnsafe.ReplaceAllString(username, "")
	if len(username) < 3 {
		username = "riser-" + strings.ToLower(service.suffix())
	}
	if len(username) > 24 {
		username = username[:24]
	}
	if _, err := service.profileRepo.FindByUsername(ctx, username); err == nil {
		username = username + "-" + strings.ToLower(service.suffix())
	} else if !isNotFound(err) {
		return models.Profile{}, fmt.Errorf("checking username: %w", err)
	}

	var avatar *string
	if avatarURL != "" {
		avatar = &avatarURL
	}

	created, err := service.profileRepo.Create(ctx, models.Profile{
		OIDCSubject: subject,
		Email:       strings.ToLower(email),
		Username:    username,
		AvatarURL:   avatar,
		Level:       1,
	})
	if err != nil {
		return models.Profile{}, fmt.Errorf("creating profile: %w", err)
	}

	slog.Info("provisioned new profile", "id", created.ID, "username", created.Username)
	return created, nil
}

func (service *AuthService) SetSession(w http.ResponseWriter, profile models.Profile) error {
	encoded, err := json.Marshal(Session{UserID: profile.ID, Email: profile.Email})
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	value, err := service.secureCookie.Encode(sessionCookie, string(encoded))
	if err != nil {
		return fmt.Errorf("encoding session cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400 * 30,
	})
	return nil
}

// GetCurrentSession decodes the session cookie. A missing or tampered cookie
// yields ErrUnauthenticated.
func (service *AuthService) GetCurrentSession(r *http.Request) (Session, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return Session{}, fmt.Errorf("no session cookie: %w", ErrUnauthenticated)
	}

	var decoded string
	if err := service.secureCookie.Decode(sessionCookie, cookie.Value, &decoded); err != nil {
		return Session{}, fmt.Errorf("decoding session cookie: %w", ErrUnauthenticated)
	}

	var session Session
	if err := json.Unmarshal([]byte(decoded), &session); err != nil {
		return Session{}, fmt.Errorf("unmarshaling session: %w", ErrUnauthenticated)
	}
	if !session.Authenticated() {
		return Session{}, ErrUnauthenticated
	}
	return session, nil
}

// ClearSession signs the user out.
func (service *AuthService) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
