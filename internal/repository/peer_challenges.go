package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/google/uuid"
)

const peerChallengeColumns = `id, challenger_id, challenged_id, title, description, category,
	points, status, deadline, created_at, updated_at`

type PeerChallengeRepository interface {
	FindByID(ctx context.Context, id string) (models.PeerChallenge, error)
	FindByUser(ctx context.Context, userID string) ([]models.PeerChallenge, error)
	Create(ctx context.Context, challenge models.PeerChallenge) (models.PeerChallenge, error)
	UpdateStatus(ctx context.Context, id string, from models.ChallengeStatus, to models.ChallengeStatus) (bool, error)
}

type SQLitePeerChallengeRepository struct {
	database *sql.DB
}

func NewPeerChallengeRepository(database *sql.DB) *SQLitePeerChallengeRepository {
	return &SQLitePeerChallengeRepository{database: database}
}

func (repository *SQLitePeerChallengeRepository) FindByID(ctx context.Context, id string) (models.PeerChallenge, error) {
	var challenge models.PeerChallenge
	err := repository.database.QueryRowContext(ctx,
		"SELECT "+peerChallengeColumns+" FROM peer_challenges WHERE id = ?", id,
	).Scan(
		&challenge.ID, &challenge.ChallengerID, &challenge.ChallengedID, &challenge.Title, &challenge.Description,
		&challenge.Category, &challenge.Points, &challenge.Status, &challenge.Deadline, &challenge.CreatedAt, &challenge.UpdatedAt,
	)
	if err != nil {
		return models.PeerChallenge{}, fmt.Errorf("finding peer challenge by id: %w", err)
	}
	return challenge, nil
}

// FindByUser returns challenges the user issued or received, soonest deadline first.
func (repository *SQLitePeerChallengeRepository) FindByUser(ctx context.Context, userID string) ([]models.PeerChallenge, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT "+peerChallengeColumns+` FROM peer_challenges
		WHERE challenger_id = ? OR challenged_id = ?
		ORDER BY deadline, created_at`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding peer challenges: %w", err)
	}
	defer rows.Close()

	var challenges []models.PeerChallenge
	for rows.Next() {
		var challenge models.PeerChallenge
		if err := rows.Scan(
			&challenge.ID, &challenge.ChallengerID, &challenge.ChallengedID, &challenge.Title, &challenge.Description,
			&challenge.Category, &challenge.Points, &challenge.Status, &challenge.Deadline, &challenge.CreatedAt, &challenge.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning peer challenge: %w", err)
		}
		challenges = append(challenges, challenge)
	}
	return challenges, rows.Err()
}

func (repository *SQLitePeerChallengeRepository) Create(ctx context.Context, challenge models.PeerChallenge) (models.PeerChallenge, error) {
	if challenge.ID == "" {
		challenge.ID = uuid.New().String()
	}
	if challenge.Status == "" {
		challenge.Status = models.ChallengeStatusPending
	}
	now := time.Now()
	challenge.CreatedAt = now
	challenge.UpdatedAt = now

	_, err := repository.database.ExecContext(ctx,
		`INSERT INTO peer_challenges (id, challenger_id, challenged_id, title, description, category,
			points, status, deadline, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		challenge.ID, challenge.ChallengerID, challenge.ChallengedID, challenge.Title, challenge.Description, challenge.Category,
		challenge.Points, challenge.Status, challenge.Deadline, challenge.CreatedAt, challenge.UpdatedAt,
	)
	if err != nil {
		return models.PeerChallenge{}, fmt.Errorf("creating peer challenge: %w", err)
	}
	return challenge, nil
}

// UpdateStatus moves a challenge from one status to another. It reports false
// when the stored status no longer equals from.
func (repository *SQLitePeerChallengeRepository) UpdateStatus(ctx context.Context, id string, from models.ChallengeStatus, to models.ChallengeStatus) (bool, error) {
	result, err := repository.database.ExecContext(ctx,
		"UPDATE peer_challenges SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		to, time.Now(), id, from,
	)
	if err != nil {
		return false, fmt.Errorf("updating peer challenge status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking peer challenge update: %w", err)
	}
	return affected > 0, nil
}
