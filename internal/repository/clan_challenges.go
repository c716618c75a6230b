package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/google/uuid"
)

const clanChallengeColumns = `id, clan_id, title, description, category, points,
	deadline, completed, created_by, created_at`

type ClanChallengeRepository interface {
	FindByID(ctx context.Context, id string) (models.ClanChallenge, error)
	FindByClanID(ctx context.Context, clanID string) ([]models.ClanChallenge, error)
	Create(ctx context.Context, challenge models.ClanChallenge) (models.ClanChallenge, error)
	MarkCompleted(ctx context.Context, id string) error
	AddParticipants(ctx context.Context, challengeID string, userIDs []string) error
	FindParticipants(ctx context.Context, challengeID string) ([]models.Participant, error)
	CompleteParticipant(ctx context.Context, challengeID string, userID string, at time.Time) (bool, error)
}

type SQLiteClanChallengeRepository struct {
	database *sql.DB
}

func NewClanChallengeRepository(database *sql.DB) *SQLiteClanChallengeRepository {
	return &SQLiteClanChallengeRepository{database: database}
}

// FindByID loads the challenge together with its participant rows.
func (repository *SQLiteClanChallengeRepository) FindByID(ctx context.Context, id string) (models.ClanChallenge, error) {
	row := repository.database.QueryRowContext(ctx,
		"SELECT "+clanChallengeColumns+" FROM clan_challenges WHERE id = ?", id)
	challenge, err := scanClanChallenge(row)
	if err != nil {
		return models.ClanChallenge{}, fmt.Errorf("finding clan challenge by id: %w", err)
	}

	participants, err := repository.FindParticipants(ctx, id)
	if err != nil {
		return models.ClanChallenge{}, err
	}
	challenge.Participants = participants

	return challenge, nil
}

func (repository *SQLiteClanChallengeRepository) FindByClanID(ctx context.Context, clanID string) ([]models.ClanChallenge, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT "+clanChallengeColumns+" FROM clan_challenges WHERE clan_id = ? ORDER BY deadline, created_at",
		clanID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding clan challenges: %w", err)
	}

	var challenges []models.ClanChallenge
	for rows.Next() {
		challenge, err := scanClanChallenge(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning clan challenge: %w", err)
		}
		challenges = append(challenges, challenge)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating clan challenges: %w", err)
	}
	rows.Close()

	for i := range challenges {
		participants, err := repository.FindParticipants(ctx, challenges[i].ID)
		if err != nil {
			return nil, err
		}
		challenges[i].Participants = participants
	}

	return challenges, nil
}

func (repository *SQLiteClanChallengeRepository) Create(ctx context.Context, challenge models.ClanChallenge) (models.ClanChallenge, error) {
	if challenge.ID == "" {
		challenge.ID = uuid.New().String()
	}
	challenge.CreatedAt = time.Now()

	_, err := repository.database.ExecContext(ctx,
		`INSERT INTO clan_challenges (id, clan_id, title, description, category, points,
			deadline, completed, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		challenge.ID, challenge.ClanID, challenge.Title, challenge.Description, challenge.Category, challenge.Points,
		challenge.Deadline, challenge.Completed, challenge.CreatedBy, challenge.CreatedAt,
	)
	if err != nil {
		return models.ClanChallenge{}, fmt.Errorf("creating clan challenge: %w", err)
	}
	return challenge, nil
}

func (repository *SQLiteClanChallengeRepository) MarkCompleted(ctx context.Context, id string) error {
	_, err := repository.database.ExecContext(ctx,
		"UPDATE clan_challenges SET completed = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking clan challenge completed: %w", err)
	}
	return nil
}

// AddParticipants bulk-inserts participant rows in one statement. Rows that
// already exist are left untouched, so a retry only fills the gaps.
func (repository *SQLiteClanChallengeRepository) AddParticipants(ctx context.Context, challengeID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	values := make([]string, len(userIDs))
	args := make([]interface{}, 0, len(userIDs)*2)
	for i, userID := range userIDs {
		values[i] = "(?, ?)"
		args = append(args, challengeID, userID)
	}

	_, err := repository.database.ExecContext(ctx,
		"INSERT OR IGNORE INTO challenge_participants (challenge_id, user_id) VALUES "+strings.Join(values, ","),
		args...,
	)
	if err != nil {
		return fmt.Errorf("adding challenge participants: %w", err)
	}
	return nil
}

func (repository *SQLiteClanChallengeRepository) FindParticipants(ctx context.Context, challengeID string) ([]models.Participant, error) {
	rows, err := repository.database.QueryContext(ctx,
		`SELECT challenge_id, user_id, completed, completed_at
		FROM challenge_participants WHERE challenge_id = ? ORDER BY user_id`,
		challengeID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding challenge participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var participant models.Participant
		if err := rows.Scan(&participant.ChallengeID, &participant.UserID, &participant.Completed, &participant.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning challenge participant: %w", err)
		}
		participants = append(participants, participant)
	}
	return participants, rows.Err()
}

// CompleteParticipant flips one participant row to completed. It reports false
// when the row was already completed or does not exist.
func (repository *SQLiteClanChallengeRepository) CompleteParticipant(ctx context.Context, challengeID string, userID string, at time.Time) (bool, error) {
	result, err := repository.database.ExecContext(ctx,
		`UPDATE challenge_participants SET completed = 1, completed_at = ?
		WHERE challenge_id = ? AND user_id = ? AND completed = 0`,
		at, challengeID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("completing challenge participant: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking participant update: %w", err)
	}
	return affected > 0, nil
}

func scanClanChallenge(row rowScanner) (models.ClanChallenge, error) {
	var challenge models.ClanChallenge
	err := row.Scan(
		&challenge.ID, &challenge.ClanID, &challenge.Title, &challenge.Description, &challenge.Category, &challenge.Points,
		&challenge.Deadline, &challenge.Completed, &challenge.CreatedBy, &challenge.CreatedAt,
	)
	return challenge, err
}
