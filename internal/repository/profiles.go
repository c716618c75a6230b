package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/google/uuid"
)

const profileColumns = `id, oidc_subject, email, username, avatar_url, bio,
	level, points, streak, last_seen_at, created_at, updated_at`

type ProfileRepository interface {
	FindByID(ctx context.Context, id string) (models.Profile, error)
	FindByOIDCSubject(ctx context.Context, subject string) (models.Profile, error)
	FindByEmail(ctx context.Context, email string) (models.Profile, error)
	FindByUsername(ctx context.Context, username string) (models.Profile, error)
	FindAll(ctx context.Context) ([]models.Profile, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Profile, error)
	FindSeenSince(ctx context.Context, since time.Time) ([]models.Profile, error)
	Create(ctx context.Context, profile models.Profile) (models.Profile, error)
	UpdateProfile(ctx context.Context, id string, username string, bio string, avatarURL *string) error
	AddPoints(ctx context.Context, id string, delta int, pointsPerLevel int) (int, error)
	UpdateStreak(ctx context.Context, id string, streak int) error
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
	Count(ctx context.Context) (int, error)
}

type SQLiteProfileRepository struct {
	database *sql.DB
}

func NewProfileRepository(database *sql.DB) *SQLiteProfileRepository {
	return &SQLiteProfileRepository{database: database}
}

func (repository *SQLiteProfileRepository) FindByID(ctx context.Context, id string) (models.Profile, error) {
	row := repository.database.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE id = ?", id)
	profile, err := scanProfile(row)
	if err != nil {
		return models.Profile{}, fmt.Errorf("finding profile by id: %w", err)
	}
	return profile, nil
}

func (repository *SQLiteProfileRepository) FindByOIDCSubject(ctx context.Context, subject string) (models.Profile, error) {
	row := repository.database.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE oidc_subject = ?", subject)
	profile, err := scanProfile(row)
	if err != nil {
		return models.Profile{}, fmt.Errorf("finding profile by oidc subject: %w", err)
	}
	return profile, nil
}

func (repository *SQLiteProfileRepository) FindByEmail(ctx context.Context, email string) (models.Profile, error) {
	row := repository.database.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE email = ? COLLATE NOCASE ORDER BY created_at LIMIT 1", email)
	profile, err := scanProfile(row)
	if err != nil {
		return models.Profile{}, fmt.Errorf("finding profile by email: %w", err)
	}
	return profile, nil
}

func (repository *SQLiteProfileRepository) FindByUsername(ctx context.Context, username string) (models.Profile, error) {
	row := repository.database.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE username = ?", username)
	profile, err := scanProfile(row)
	if err != nil {
		return models.Profile{}, fmt.Errorf("finding profile by username: %w", err)
	}
	return profile, nil
}

// FindAll returns profiles in creation order, the fetch order leaderboards
// fall back to when points tie.
func (repository *SQLiteProfileRepository) FindAll(ctx context.Context) ([]models.Profile, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT "+profileColumns+" FROM profiles ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("finding all profiles: %w", err)
	}
	defer rows.Close()

	return scanProfiles(rows)
}

func (repository *SQLiteProfileRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args := inClause("SELECT "+profileColumns+" FROM profiles WHERE id IN ", ids)
	rows, err := repository.database.QueryContext(ctx, query+" ORDER BY created_at, id", args...)
	if err != nil {
		return nil, fmt.Errorf("finding profiles by ids: %w", err)
	}
	defer rows.Close()

	return scanProfiles(rows)
}

func (repository *SQLiteProfileRepository) FindSeenSince(ctx context.Context, since time.Time) ([]models.Profile, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE last_seen_at >= ? ORDER BY last_seen_at DESC", since)
	if err != nil {
		return nil, fmt.Errorf("finding recently seen profiles: %w", err)
	}
	defer rows.Close()

	return scanProfiles(rows)
}

func (repository *SQLiteProfileRepository) Create(ctx context.Context, profile models.Profile) (models.Profile, error) {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	if profile.Level < 1 {
		profile.Level = 1
	}
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	_, err := repository.database.ExecContext(ctx,
		`INSERT INTO profiles (id, oidc_subject, email, username, avatar_url, bio,
			level, points, streak, last_seen_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		profile.ID, profile.OIDCSubject, profile.Email, profile.Username, profile.AvatarURL, profile.Bio,
		profile.Level, profile.Points, profile.Streak, profile.LastSeenAt, profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return models.Profile{}, fmt.Errorf("creating profile: %w", err)
	}
	return profile, nil
}

func (repository *SQLiteProfileRepository) UpdateProfile(ctx context.Context, id string, username string, bio string, avatarURL *string) error {
	_, err := repository.database.ExecContext(ctx,
		"UPDATE profiles SET username = ?, bio = ?, avatar_url = ?, updated_at = ? WHERE id = ?",
		username, bio, avatarURL, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return nil
}

// AddPoints adds delta to the stored points, clamped at zero, and derives the
// level from the new total in the same statement. It returns the new total.
func (repository *SQLiteProfileRepository) AddPoints(ctx context.Context, id string, delta int, pointsPerLevel int) (int, error) {
	var points int
	err := repository.database.QueryRowContext(ctx,
		`UPDATE profiles
		SET points = MAX(points + ?, 0), level = MAX(points + ?, 0) / ? + 1, updated_at = ?
		WHERE id = ?
		RETURNING points`,
		delta, delta, pointsPerLevel, time.Now(), id,
	).Scan(&points)
	if err != nil {
		return 0, fmt.Errorf("adding profile points: %w", err)
	}
	return points, nil
}

func (repository *SQLiteProfileRepository) UpdateStreak(ctx context.Context, id string, streak int) error {
	_, err := repository.database.ExecContext(ctx,
		"UPDATE profiles SET streak = ?, updated_at = ? WHERE id = ?",
		streak, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("updating profile streak: %w", err)
	}
	return nil
}

func (repository *SQLiteProfileRepository) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := repository.database.ExecContext(ctx,
		"UPDATE profiles SET last_seen_at = ? WHERE id = ?", at, id)
	if err != nil {
		return fmt.Errorf("touching last seen: %w", err)
	}
	return nil
}

func (repository *SQLiteProfileRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := repository.database.QueryRowContext(ctx, "SELECT COUNT(*) FROM profiles").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting profiles: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (models.Profile, error) {
	var profile models.Profile
	err := row.Scan(
		&profile.ID, &profile.OIDCSubject, &profile.Email, &profile.Username, &profile.AvatarURL, &profile.Bio,
		&profile.Level, &profile.Points, &profile.Streak, &profile.LastSeenAt, &profile.CreatedAt, &profile.UpdatedAt,
	)
	return profile, err
}

func scanProfiles(rows *sql.Rows) ([]models.Profile, error) {
	var profiles []models.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}
