package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/ItsHarshjsin/riseup-sub000/internal/querycache"
	"github.com/ItsHarshjsin/riseup-sub000/internal/repository"
)

const (
	BadgeFirstStep          = "first-step"
	BadgeStreak3            = "streak-3"
	BadgeStreak7            = "streak-7"
	BadgeStreak30           = "streak-30"
	BadgePoints500          = "points-500"
	BadgePoints2500         = "points-2500"
	BadgeClanFounder        = "clan-founder"
	BadgeTeamPlayer         = "team-player"
	BadgeMasteryFitness     = "mastery-fitness"
	BadgeMasteryLearning    = "mastery-learning"
	BadgeMasteryMindfulness = "mastery-mindfulness"
)

// Achievements is the state badge rules are evaluated against.
type Achievements struct {
	HasCompletedTask bool
	Streak           int
	Points           int
	Mastery          map[models.Category]int
}

var masteryBadges = map[models.Category]string{
	models.CategoryFitness:     BadgeMasteryFitness,
	models.CategoryLearning:    BadgeMasteryLearning,
	models.CategoryMindfulness: BadgeMasteryMindfulness,
}

// EarnedBadges lists the badge ids the achievements qualify for.
func EarnedBadges(achievements Achievements) []string {
	var earned []string
	if achievements.HasCompletedTask {
		earned = append(earned, BadgeFirstStep)
	}

	streakBadges := []struct {
		days  int
		badge string
	}{{3, BadgeStreak3}, {7, BadgeStreak7}, {30, BadgeStreak30}}
	for _, rule := range streakBadges {
		if achievements.Streak >= rule.days {
			earned = append(earned, rule.badge)
		}
	}

	if achievements.Points >= 500 {
		earned = append(earned, BadgePoints500)
	}
	if achievements.Points >= 2500 {
		earned = append(earned, BadgePoints2500)
	}

	for _, category := range models.Categories {
		badge, ok := masteryBadges[category]
		if ok && achievements.Mastery[category] >= 100 {
			earned = append(earned, badge)
		}
	}
	return earned
}

type BadgeService struct {
	badgeRepo repository.BadgeRepository
	cache     *querycache.Cache
	now       func() time.Time
}

func NewBadgeService(badgeRepo repository.BadgeRepository, cache *querycache.Cache) *BadgeService {
	return &BadgeService{
		badgeRepo: badgeRepo,
		cache:     cache,
		now:       time.Now,
	}
}

// Award unlocks the given badges for a user. Badges already held are left
// alone; unlocks are never revoked. It returns the ids newly unlocked.
func (service *BadgeService) Award(ctx context.Context, userID string, badgeIDs ...string) ([]string, error) {
	var unlocked []string
	for _, badgeID := range badgeIDs {
		inserted, err := service.badgeRepo.Unlock(ctx, userID, badgeID, service.now())
		if err != nil {
			return unlocked, storeError("unlocking badge", err)
		}
		if inserted {
			unlocked = append(unlocked, badgeID)
		}
	}

	if len(unlocked) > 0 {
		service.cache.Invalidate(userKey(KindBadges, userID))
		slog.Info("badges unlocked", "user_id", userID, "badges", unlocked)
	}
	return unlocked, nil
}

func (service *BadgeService) Evaluate(ctx context.Context, userID string, achievements Achievements) ([]string, error) {
	unlocked, err := service.Award(ctx, userID, EarnedBadges(achievements)...)
	if err != nil {
		return unlocked, fmt.Errorf("evaluating badges: %w", err)
	}
	return unlocked, nil
}
