package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
)

type MasteryRepository interface {
	FindByUser(ctx context.Context, userID string) ([]models.CategoryMastery, error)
	Refresh(ctx context.Context, userID string, category models.Category, at time.Time) (models.CategoryMastery, error)
}

type SQLiteMasteryRepository struct {
	database *sql.DB
}

func NewMasteryRepository(database *sql.DB) *SQLiteMasteryRepository {
	return &SQLiteMasteryRepository{database: database}
}

func (repository *SQLiteMasteryRepository) FindByUser(ctx context.Context, userID string) ([]models.CategoryMastery, error) {
	rows, err := repository.database.QueryContext(ctx,
		`SELECT user_id, category, completed, total, progress, updated_at
		FROM category_mastery WHERE user_id = ? ORDER BY category`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding category mastery: %w", err)
	}
	defer rows.Close()

	var masteries []models.CategoryMastery
	for rows.Next() {
		var mastery models.CategoryMastery
		err := rows.Scan(&mastery.UserID, &mastery.Category, &mastery.Completed, &mastery.Total,
			&mastery.Progress, &mastery.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning category mastery: %w", err)
		}
		masteries = append(masteries, mastery)
	}
	return masteries, rows.Err()
}

// Refresh recounts the user's tasks in category and stores the result in one
// statement, so concurrent refreshes always leave the latest counts behind.
// Progress is the completed share rounded to a whole percent, 0 with no tasks.
func (repository *SQLiteMasteryRepository) Refresh(ctx context.Context, userID string, category models.Category, at time.Time) (models.CategoryMastery, error) {
	mastery := models.CategoryMastery{UserID: userID, Category: category, UpdatedAt: at}
	err := repository.database.QueryRowContext(ctx,
		`INSERT INTO category_mastery (user_id, category, completed, total, progress, updated_at)
		SELECT ?, ?, COALESCE(SUM(completed), 0), COUNT(*),
			CASE WHEN COUNT(*) = 0 THEN 0
				ELSE CAST(ROUND(SUM(completed) * 100.0 / COUNT(*)) AS INTEGER) END,
			?
		FROM tasks WHERE user_id = ? AND category = ?
		ON CONFLICT (user_id, category) DO UPDATE SET
			completed = excluded.completed,
			total = excluded.total,
			progress = excluded.progress,
			updated_at = excluded.updated_at
		RETURNING completed, total, progress`,
		userID, category, at, userID, category,
	).Scan(&mastery.Completed, &mastery.Total, &mastery.Progress)
	if err != nil {
		return models.CategoryMastery{}, fmt.Errorf("refreshing category mastery: %w", err)
	}
	return mastery, nil
}
