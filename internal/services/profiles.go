package services

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/ItsHarshjsin/riseup-sub000/internal/querycache"
	"github.com/ItsHarshjsin/riseup-sub000/internal/repository"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

const maxBioLength = 500

type ProfileUpdate struct {
	Username  string  `json:"username"`
	Bio       string  `json:"bio"`
	AvatarURL *string `json:"avatar_url"`
}

type ProfileService struct {
	profileRepo repository.ProfileRepository
	cache       *querycache.Cache
}

func NewProfileService(profileRepo repository.ProfileRepository, cache *querycache.Cache) *ProfileService {
	return &ProfileService{
		profileRepo: profileRepo,
		cache:       cache,
	}
}

func (service *ProfileService) UpdateProfile(ctx context.Context, session Session, update ProfileUpdate) (models.Profile, error) {
	if err := requireSession(session); err != nil {
		return models.Profile{}, err
	}

	username := cleanLine(update.Username)
	if !usernamePattern.MatchString(username) {
		return models.Profile{}, fmt.Errorf("username must be 3-32 letters, digits, dots, dashes or underscores: %w", ErrInvalidInput)
	}

	bio := cleanText(update.Bio)
	if len([]rune(bio)) > maxBioLength {
		return models.Profile{}, fmt.Errorf("bio longer than %d characters: %w", maxBioLength, ErrInvalidInput)
	}

	avatarURL, err := normalizeAvatar(update.AvatarURL)
	if err != nil {
		return models.Profile{}, err
	}

	existing, err := service.profileRepo.FindByUsername(ctx, username)
	if err == nil && existing.ID != session.UserID {
		return models.Profile{}, fmt.Errorf("username %q is taken: %w", username, ErrConflict)
	}
	if err != nil && !isNotFound(err) {
		return models.Profile{}, storeError("checking username", err)
	}

	if err := service.profileRepo.UpdateProfile(ctx, session.UserID, username, bio, avatarURL); err != nil {
		return models.Profile{}, storeError("updating profile", err)
	}
	invalidate(service.cache,
		userKey(KindProfile, session.UserID),
		querycache.NewKey(KindLeaderboard),
		querycache.NewKey(KindClan),
	)

	profile, err := service.profileRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return models.Profile{}, storeError("reloading profile", err)
	}
	return profile, nil
}

func normalizeAvatar(avatar *string) (*string, error) {
	if avatar == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*avatar)
	if trimmed == "" {
		return nil, nil
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("avatar must be an http(s) URL: %w", ErrInvalidInput)
	}
	normalized := parsed.String()
	return &normalized, nil
}
