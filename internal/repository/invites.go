package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/google/uuid"
)

const inviteColumns = "id, clan_id, email, code, status, invited_by, expires_at, created_at"

type InviteRepository interface {
	FindByID(ctx context.Context, id string) (models.Invite, error)
	FindByCode(ctx context.Context, code string) (models.Invite, error)
	FindPendingByClanAndEmail(ctx context.Context, clanID string, email string) ([]models.Invite, error)
	FindPendingByEmail(ctx context.Context, email string) ([]models.Invite, error)
	FindAcceptedWithoutMembership(ctx context.Context) ([]models.Invite, error)
	Create(ctx context.Context, invite models.Invite) (models.Invite, error)
	UpdateStatus(ctx context.Context, id string, from models.InviteStatus, to models.InviteStatus) (bool, error)
	RejectOtherPending(ctx context.Context, email string, exceptID string) (int64, error)
}

type SQLiteInviteRepository struct {
	database *sql.DB
}

func NewInviteRepository(database *sql.DB) *SQLiteInviteRepository {
	return &SQLiteInviteRepository{database: database}
}

func (repository *SQLiteInviteRepository) FindByID(ctx context.Context, id string) (models.Invite, error) {
	row := repository.database.QueryRowContext(ctx,
		"SELECT "+inviteColumns+" FROM invites WHERE id = ?", id)
	invite, err := scanInvite(row)
	if err != nil {
		return models.Invite{}, fmt.Errorf("finding invite by id: %w", err)
	}
	return invite, nil
}

func (repository *SQLiteInviteRepository) FindByCode(ctx context.Context, code string) (models.Invite, error) {
	row := repository.database.QueryRowContext(ctx,
		"SELECT "+inviteColumns+" FROM invites WHERE code = ?", code)
	invite, err := scanInvite(row)
	if err != nil {
		return models.Invite{}, fmt.Errorf("finding invite by code: %w", err)
	}
	return invite, nil
}

func (repository *SQLiteInviteRepository) FindPendingByClanAndEmail(ctx context.Context, clanID string, email string) ([]models.Invite, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT "+inviteColumns+` FROM invites
		WHERE clan_id = ? AND email = ? COLLATE NOCASE AND status = 'pending'
		ORDER BY created_at`,
		clanID, email,
	)
	if err != nil {
		return nil, fmt.Errorf("finding pending invites for clan: %w", err)
	}
	defer rows.Close()

	return scanInvites(rows)
}

func (repository *SQLiteInviteRepository) FindPendingByEmail(ctx context.Context, email string) ([]models.Invite, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT "+inviteColumns+` FROM invites
		WHERE email = ? COLLATE NOCASE AND status = 'pending'
		ORDER BY created_at DESC`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("finding pending invites: %w", err)
	}
	defer rows.Close()

	return scanInvites(rows)
}

// FindAcceptedWithoutMembership returns accepted invites whose invitee has no
// membership in any clan, which is what an interrupted accept leaves behind.
func (repository *SQLiteInviteRepository) FindAcceptedWithoutMembership(ctx context.Context) ([]models.Invite, error) {
	rows, err := repository.database.QueryContext(ctx,
		`SELECT i.id, i.clan_id, i.email, i.code, i.status, i.invited_by, i.expires_at, i.created_at
		FROM invites i
		JOIN profiles p ON p.email = i.email COLLATE NOCASE
		LEFT JOIN memberships m ON m.user_id = p.id
		WHERE i.status = 'accepted' AND m.user_id IS NULL
		ORDER BY i.created_at`)
	if err != nil {
		return nil, fmt.Errorf("finding unapplied invites: %w", err)
	}
	defer rows.Close()

	return scanInvites(rows)
}

func (repository *SQLiteInviteRepository) Create(ctx context.Context, invite models.Invite) (models.Invite, error) {
	if invite.ID == "" {
		invite.ID = uuid.New().String()
	}
	if invite.Status == "" {
		invite.Status = models.InviteStatusPending
	}
	invite.CreatedAt = time.Now()

	_, err := repository.database.ExecContext(ctx,
		`INSERT INTO invites (id, clan_id, email, code, status, invited_by, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		invite.ID, invite.ClanID, invite.Email, invite.Code, invite.Status, invite.InvitedBy, invite.ExpiresAt, invite.CreatedAt,
	)
	if err != nil {
		return models.Invite{}, fmt.Errorf("creating invite: %w", err)
	}
	return invite, nil
}

// UpdateStatus reports false when the stored status no longer equals from.
func (repository *SQLiteInviteRepository) UpdateStatus(ctx context.Context, id string, from models.InviteStatus, to models.InviteStatus) (bool, error) {
	result, err := repository.database.ExecContext(ctx,
		"UPDATE invites SET status = ? WHERE id = ? AND status = ?", to, id, from)
	if err != nil {
		return false, fmt.Errorf("updating invite status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking invite update: %w", err)
	}
	return affected > 0, nil
}

func (repository *SQLiteInviteRepository) RejectOtherPending(ctx context.Context, email string, exceptID string) (int64, error) {
	result, err := repository.database.ExecContext(ctx,
		`UPDATE invites SET status = 'rejected'
		WHERE email = ? COLLATE NOCASE AND status = 'pending' AND id != ?`,
		email, exceptID,
	)
	if err != nil {
		return 0, fmt.Errorf("rejecting other invites: %w", err)
	}
	return result.RowsAffected()
}

func scanInvite(row rowScanner) (models.Invite, error) {
	var invite models.Invite
	err := row.Scan(
		&invite.ID, &invite.ClanID, &invite.Email, &invite.Code, &invite.Status, &invite.InvitedBy, &invite.ExpiresAt, &invite.CreatedAt,
	)
	return invite, err
}

func scanInvites(rows *sql.Rows) ([]models.Invite, error) {
	var invites []models.Invite
	for rows.Next() {
		invite, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invite: %w", err)
		}
		invites = append(invites, invite)
	}
	return invites, rows.Err()
}
