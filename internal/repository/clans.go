package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/google/uuid"
)

const clanColumns = "id, name, description, owner_id, points, invite_code, created_at"

type ClanRepository interface {
	FindByID(ctx context.Context, id string) (models.Clan, error)
	FindByName(ctx context.Context, name string) (models.Clan, error)
	FindByInviteCode(ctx context.Context, code string) (models.Clan, error)
	FindAll(ctx context.Context) ([]models.Clan, error)
	FindWithoutOwnerMembership(ctx context.Context) ([]models.Clan, error)
	Create(ctx context.Context, clan models.Clan) (models.Clan, error)
	AddPoints(ctx context.Context, id string, delta int) error
}

type SQLiteClanRepository struct {
	database *sql.DB
}

func NewClanRepository(database *sql.DB) *SQLiteClanRepository {
	return &SQLiteClanRepository{database: database}
}

func (repository *SQLiteClanRepository) FindByID(ctx context.Context, id string) (models.Clan, error) {
	row := repository.database.QueryRowContext(ctx,
		"SELECT "+clanColumns+" FROM clans WHERE id = ?", id)
	clan, err := scanClan(row)
	if err != nil {
		return models.Clan{}, fmt.Errorf("finding clan by id: %w", err)
	}
	return clan, nil
}

func (repository *SQLiteClanRepository) FindByName(ctx context.Context, name string) (models.Clan, error) {
	row := repository.database.QueryRowContext(ctx,
		"SELECT "+clanColumns+" FROM clans WHERE name = ?", name)
	clan, err := scanClan(row)
	if err != nil {
		return models.Clan{}, fmt.Errorf("finding clan by name: %w", err)
	}
	return clan, nil
}

func (repository *SQLiteClanRepository) FindByInviteCode(ctx context.Context, code string) (models.Clan, error) {
	row := repository.database.QueryRowContext(ctx,
		"SELECT "+clanColumns+" FROM clans WHERE invite_code = ?", code)
	clan, err := scanClan(row)
	if err != nil {
		return models.Clan{}, fmt.Errorf("finding clan by invite code: %w", err)
	}
	return clan, nil
}

func (repository *SQLiteClanRepository) FindAll(ctx context.Context) ([]models.Clan, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT "+clanColumns+" FROM clans ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("finding all clans: %w", err)
	}
	defer rows.Close()

	return scanClans(rows)
}

// FindWithoutOwnerMembership returns clans whose owner has no membership row,
// which is what a failed second step of clan creation leaves behind.
func (repository *SQLiteClanRepository) FindWithoutOwnerMembership(ctx context.Context) ([]models.Clan, error) {
	rows, err := repository.database.QueryContext(ctx,
		`SELECT c.id, c.name, c.description, c.owner_id, c.points, c.invite_code, c.created_at
		FROM clans c
		LEFT JOIN memberships m ON m.clan_id = c.id AND m.user_id = c.owner_id
		WHERE m.user_id IS NULL
		ORDER BY c.created_at`)
	if err != nil {
		return nil, fmt.Errorf("finding orphaned clans: %w", err)
	}
	defer rows.Close()

	return scanClans(rows)
}

func (repository *SQLiteClanRepository) Create(ctx context.Context, clan models.Clan) (models.Clan, error) {
	if clan.ID == "" {
		clan.ID = uuid.New().String()
	}
	clan.CreatedAt = time.Now()

	_, err := repository.database.ExecContext(ctx,
		`INSERT INTO clans (id, name, description, owner_id, points, invite_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		clan.ID, clan.Name, clan.Description, clan.OwnerID, clan.Points, clan.InviteCode, clan.CreatedAt,
	)
	if err != nil {
		return models.Clan{}, fmt.Errorf("creating clan: %w", err)
	}
	return clan, nil
}

func (repository *SQLiteClanRepository) AddPoints(ctx context.Context, id string, delta int) error {
	result, err := repository.database.ExecContext(ctx,
		"UPDATE clans SET points = MAX(points + ?, 0) WHERE id = ?", delta, id)
	if err != nil {
		return fmt.Errorf("adding clan points: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking clan update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("adding clan points: %w", sql.ErrNoRows)
	}
	return nil
}

func scanClan(row rowScanner) (models.Clan, error) {
	var clan models.Clan
	err := row.Scan(
		&clan.ID, &clan.Name, &clan.Description, &clan.OwnerID, &clan.Points, &clan.InviteCode, &clan.CreatedAt,
	)
	return clan, err
}

func scanClans(rows *sql.Rows) ([]models.Clan, error) {
	var clans []models.Clan
	for rows.Next() {
		clan, err := scanClan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning clan: %w", err)
		}
		clans = append(clans, clan)
	}
	return clans, rows.Err()
}
