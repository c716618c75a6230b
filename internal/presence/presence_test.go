package presence_test

import (
	"context"
	"testing"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/ItsHarshjsin/riseup-sub000/internal/presence"
	"github.com/ItsHarshjsin/riseup-sub000/internal/repository"
	"github.com/ItsHarshjsin/riseup-sub000/internal/testutil"
	"github.com/redis/go-redis/v9"
)

const testRedisAddr = "localhost:6379"

func TestSQLiteStore_Online(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	profileRepo := repository.NewProfileRepository(db)
	store := presence.NewSQLiteStore(profileRepo)
	ctx := context.Background()
	now := time.Now()

	var ids []string
	for _, username := range []string{"ada", "bob", "carol"} {
		profile, err := profileRepo.Create(ctx, models.Profile{
			OIDCSubject: "sub-" + username,
			Email:       username + "@example.com",
			Username:    username,
		})
		if err != nil {
			t.Fatalf("creating profile: %v", err)
		}
		ids = append(ids, profile.ID)
	}

	if err := store.Touch(ctx, ids[0], now.Add(-time.Minute)); err != nil {
		t.Fatalf("touching ada: %v", err)
	}
	if err := store.Touch(ctx, ids[1], now); err != nil {
		t.Fatalf("touching bob: %v", err)
	}
	if err := store.Touch(ctx, ids[2], now.Add(-time.Hour)); err != nil {
		t.Fatalf("touching carol: %v", err)
	}

	online, err := store.Online(ctx, now.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("listing online: %v", err)
	}
	if len(online) != 2 || online[0] != ids[1] || online[1] != ids[0] {
		t.Errorf("expected bob then ada, got %v", online)
	}
}

func TestRedisStore_Online(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}
	t.Cleanup(func() { client.Close() })

	store := presence.NewRedisStore(client, 10*time.Minute)
	client.Del(ctx, "riseup:presence")
	t.Cleanup(func() { client.Del(context.Background(), "riseup:presence") })

	now := time.Now()
	if err := store.Touch(ctx, "stale", now.Add(-time.Hour)); err != nil {
		t.Fatalf("touching stale: %v", err)
	}
	if err := store.Touch(ctx, "ada", now.Add(-time.Minute)); err != nil {
		t.Fatalf("touching ada: %v", err)
	}
	if err := store.Touch(ctx, "bob", now); err != nil {
		t.Fatalf("touching bob: %v", err)
	}

	online, err := store.Online(ctx, now.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("listing online: %v", err)
	}
	if len(online) != 2 || online[0] != "bob" || online[1] != "ada" {
		t.Errorf("expected bob then ada, got %v", online)
	}

	count, err := client.ZCard(ctx, "riseup:presence").Result()
	if err != nil {
		t.Fatalf("counting entries: %v", err)
	}
	if count != 2 {
		t.Errorf("expected stale entry trimmed, got %d entries", count)
	}
}
