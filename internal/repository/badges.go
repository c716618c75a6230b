package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
)

type BadgeRepository interface {
	FindAll(ctx context.Context) ([]models.Badge, error)
	FindUnlocked(ctx context.Context, userID string) ([]models.UserBadge, error)
	Unlock(ctx context.Context, userID string, badgeID string, at time.Time) (bool, error)
}

type SQLiteBadgeRepository struct {
	database *sql.DB
}

func NewBadgeRepository(database *sql.DB) *SQLiteBadgeRepository {
	return &SQLiteBadgeRepository{database: database}
}

func (repository *SQLiteBadgeRepository) FindAll(ctx context.Context) ([]models.Badge, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT id, name, description, category, icon FROM badges ORDER BY category, id")
	if err != nil {
		return nil, fmt.Errorf("finding badges: %w", err)
	}
	defer rows.Close()

	var badges []models.Badge
	for rows.Next() {
		var badge models.Badge
		if err := rows.Scan(&badge.ID, &badge.Name, &badge.Description, &badge.Category, &badge.Icon); err != nil {
			return nil, fmt.Errorf("scanning badge: %w", err)
		}
		badges = append(badges, badge)
	}
	return badges, rows.Err()
}

func (repository *SQLiteBadgeRepository) FindUnlocked(ctx context.Context, userID string) ([]models.UserBadge, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT user_id, badge_id, unlocked_at FROM user_badges WHERE user_id = ? ORDER BY unlocked_at, badge_id",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding unlocked badges: %w", err)
	}
	defer rows.Close()

	var unlocked []models.UserBadge
	for rows.Next() {
		var userBadge models.UserBadge
		if err := rows.Scan(&userBadge.UserID, &userBadge.BadgeID, &userBadge.UnlockedAt); err != nil {
			return nil, fmt.Errorf("scanning unlocked badge: %w", err)
		}
		unlocked = append(unlocked, userBadge)
	}
	return unlocked, rows.Err()
}

// Unlock records a badge for a user once. It reports whether a new row was written.
func (repository *SQLiteBadgeRepository) Unlock(ctx context.Context, userID string, badgeID string, at time.Time) (bool, error) {
	result, err := repository.database.ExecContext(ctx,
		"INSERT OR IGNORE INTO user_badges (user_id, badge_id, unlocked_at) VALUES (?, ?, ?)",
		userID, badgeID, at,
	)
	if err != nil {
		return false, fmt.Errorf("unlocking badge: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking badge unlock: %w", err)
	}
	return affected > 0, nil
}
