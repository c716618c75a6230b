package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
)

type MembershipRepository interface {
	Create(ctx context.Context, membership models.Membership) (models.Membership, error)
	FindByUserID(ctx context.Context, userID string) (models.Membership, error)
	FindByClanID(ctx context.Context, clanID string) ([]models.Membership, error)
}

type SQLiteMembershipRepository struct {
	database *sql.DB
}

func NewMembershipRepository(database *sql.DB) *SQLiteMembershipRepository {
	return &SQLiteMembershipRepository{database: database}
}

func (repository *SQLiteMembershipRepository) Create(ctx context.Context, membership models.Membership) (models.Membership, error) {
	if membership.JoinedAt.IsZero() {
		membership.JoinedAt = time.Now()
	}

	_, err := repository.database.ExecContext(ctx,
		"INSERT INTO memberships (clan_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)",
		membership.ClanID, membership.UserID, membership.Role, membership.JoinedAt,
	)
	if err != nil {
		return models.Membership{}, fmt.Errorf("creating membership: %w", err)
	}
	return membership, nil
}

func (repository *SQLiteMembershipRepository) FindByUserID(ctx context.Context, userID string) (models.Membership, error) {
	var membership models.Membership
	err := repository.database.QueryRowContext(ctx,
		"SELECT clan_id, user_id, role, joined_at FROM memberships WHERE user_id = ?", userID,
	).Scan(&membership.ClanID, &membership.UserID, &membership.Role, &membership.JoinedAt)
	if err != nil {
		return models.Membership{}, fmt.Errorf("finding membership by user: %w", err)
	}
	return membership, nil
}

func (repository *SQLiteMembershipRepository) FindByClanID(ctx context.Context, clanID string) ([]models.Membership, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT clan_id, user_id, role, joined_at FROM memberships WHERE clan_id = ? ORDER BY joined_at, user_id",
		clanID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding memberships by clan: %w", err)
	}
	defer rows.Close()

	var memberships []models.Membership
	for rows.Next() {
		var membership models.Membership
		if err := rows.Scan(&membership.ClanID, &membership.UserID, &membership.Role, &membership.JoinedAt); err != nil {
			return nil, fmt.Errorf("scanning membership: %w", err)
		}
		memberships = append(memberships, membership)
	}
	return memberships, rows.Err()
}
