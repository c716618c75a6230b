package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/ItsHarshjsin/riseup-sub000/internal/projections"
	"github.com/ItsHarshjsin/riseup-sub000/internal/querycache"
	"github.com/ItsHarshjsin/riseup-sub000/internal/repository"
)

// ProgressService keeps a profile's points, level, streak, category mastery
// and badges in line after completions change.
type ProgressService struct {
	profileRepo repository.ProfileRepository
	taskRepo    repository.TaskRepository
	masteryRepo repository.MasteryRepository
	badges      *BadgeService
	cache       *querycache.Cache
	now         func() time.Time
}

func NewProgressService(
	profileRepo repository.ProfileRepository,
	taskRepo repository.TaskRepository,
	masteryRepo repository.MasteryRepository,
	badges *BadgeService,
	cache *querycache.Cache,
) *ProgressService {
	return &ProgressService{
		profileRepo: profileRepo,
		taskRepo:    taskRepo,
		masteryRepo: masteryRepo,
		badges:      badges,
		cache:       cache,
		now:         time.Now,
	}
}

// Apply adds delta points to the user, clamped at zero, then recomputes level
// and streak from stored completions. When category is set its mastery row is
// refreshed too. Badge rules run last.
func (service *ProgressService) Apply(ctx context.Context, userID string, delta int, category models.Category) (models.Profile, error) {
	points, err := service.profileRepo.AddPoints(ctx, userID, delta, projections.PointsPerLevel)
	if err != nil {
		return models.Profile{}, storeError("adding points", err)
	}

	dates, err := service.taskRepo.CompletedDates(ctx, userID)
	if err != nil {
		return models.Profile{}, storeError("finding completed dates", err)
	}
	streak := projections.CurrentStreak(dates, service.now())
	if err := service.profileRepo.UpdateStreak(ctx, userID, streak); err != nil {
		return models.Profile{}, storeError("updating streak", err)
	}
	invalidate(service.cache,
		userKey(KindProfile, userID),
		querycache.NewKey(KindLeaderboard),
		querycache.NewKey(KindClan),
	)

	profile, err := service.profileRepo.FindByID(ctx, userID)
	if err != nil {
		return models.Profile{}, storeError("finding profile", err)
	}

	mastery := make(map[models.Category]int)
	if category != "" {
		progress, err := service.RefreshMastery(ctx, userID, category)
		if err != nil {
			return profile, err
		}
		mastery[category] = progress
	}

	_, err = service.badges.Evaluate(ctx, userID, Achievements{
		HasCompletedTask: len(dates) > 0,
		Streak:           streak,
		Points:           points,
		Mastery:          mastery,
	})
	if err != nil {
		return profile, err
	}

	return profile, nil
}

// RefreshMastery recounts one category for the user and returns its progress.
func (service *ProgressService) RefreshMastery(ctx context.Context, userID string, category models.Category) (int, error) {
	mastery, err := service.masteryRepo.Refresh(ctx, userID, category, service.now())
	if err != nil {
		return 0, fmt.Errorf("refreshing %s mastery: %w", category, storeError("refreshing mastery", err))
	}

	service.cache.Invalidate(userKey(KindMastery, userID))
	return mastery.Progress, nil
}

// RepairMastery compares every user's stored mastery with a projection of
// their task history and refreshes the categories that drifted. It returns
// how many categories were refreshed.
func (service *ProgressService) RepairMastery(ctx context.Context) (int, error) {
	profiles, err := service.profileRepo.FindAll(ctx)
	if err != nil {
		return 0, storeError("finding profiles", err)
	}

	repaired := 0
	for _, profile := range profiles {
		userID := profile.ID
		tasks, err := service.taskRepo.FindAll(ctx, repository.TaskFilter{UserID: &userID})
		if err != nil {
			return repaired, storeError("finding task history", err)
		}
		rows, err := service.masteryRepo.FindByUser(ctx, userID)
		if err != nil {
			return repaired, storeError("finding stored mastery", err)
		}

		stored := projections.StoredMastery(rows)
		for i, expected := range projections.CategoryMastery(tasks) {
			if stored[i] == expected {
				continue
			}
			if _, err := service.RefreshMastery(ctx, userID, expected.Category); err != nil {
				return repaired, err
			}
			repaired++
		}
	}

	if repaired > 0 {
		slog.Info("repaired category mastery", "count", repaired)
	}
	return repaired, nil
}
