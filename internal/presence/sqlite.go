package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/repository"
)

// SQLiteStore keeps presence in the profiles table's last_seen_at column.
type SQLiteStore struct {
	profileRepo repository.ProfileRepository
}

func NewSQLiteStore(profileRepo repository.ProfileRepository) *SQLiteStore {
	return &SQLiteStore{profileRepo: profileRepo}
}

func (store *SQLiteStore) Touch(ctx context.Context, userID string, at time.Time) error {
	if err := store.profileRepo.TouchLastSeen(ctx, userID, at); err != nil {
		return fmt.Errorf("touching presence: %w", err)
	}
	return nil
}

// Online returns users seen at or after since, most recent first.
func (store *SQLiteStore) Online(ctx context.Context, since time.Time) ([]string, error) {
	profiles, err := store.profileRepo.FindSeenSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("listing online users: %w", err)
	}

	ids := make([]string, len(profiles))
	for i, profile := range profiles {
		ids[i] = profile.ID
	}
	return ids, nil
}
