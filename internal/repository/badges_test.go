package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/ItsHarshjsin/riseup-sub000/internal/repository"
	"github.com/ItsHarshjsin/riseup-sub000/internal/testutil"
)

func TestBadgeRepository_UnlockOnce(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	repo := repository.NewBadgeRepository(db)
	ctx := context.Background()
	user := createProfile(t, db, "ada")

	first, err := repo.Unlock(ctx, user.ID, "first-step", time.Now())
	if err != nil {
		t.Fatalf("unlocking badge: %v", err)
	}
	if !first {
		t.Error("expected first unlock to insert")
	}

	again, err := repo.Unlock(ctx, user.ID, "first-step", time.Now())
	if err != nil {
		t.Fatalf("unlocking badge again: %v", err)
	}
	if again {
		t.Error("expected repeated unlock to be ignored")
	}

	unlocked, err := repo.FindUnlocked(ctx, user.ID)
	if err != nil {
		t.Fatalf("finding unlocked badges: %v", err)
	}
	if len(unlocked) != 1 {
		t.Errorf("expected 1 unlocked badge, got %d", len(unlocked))
	}
}

func TestBadgeRepository_FindAll(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	repo := repository.NewBadgeRepository(db)

	badges, err := repo.FindAll(context.Background())
	if err != nil {
		t.Fatalf("finding badges: %v", err)
	}
	if len(badges) != 11 {
		t.Errorf("expected 11 seeded badges, got %d", len(badges))
	}
}

func TestMasteryRepository_Refresh(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	repo := repository.NewMasteryRepository(db)
	tasks := repository.NewTaskRepository(db)
	ctx := context.Background()
	user := createProfile(t, db, "ada")

	empty, err := repo.Refresh(ctx, user.ID, models.CategoryFitness, time.Now())
	if err != nil {
		t.Fatalf("refreshing without tasks: %v", err)
	}
	if empty.Total != 0 || empty.Progress != 0 {
		t.Errorf("expected 0/0 at 0%%, got %+v", empty)
	}

	now := time.Now()
	for i := 0; i < 3; i++ {
		task := createTask(t, tasks, user.ID, models.CategoryFitness, "2024-03-10")
		if i < 2 {
			if _, err := tasks.SetCompletion(ctx, task.ID, true, &now); err != nil {
				t.Fatalf("completing task: %v", err)
			}
		}
	}
	createTask(t, tasks, user.ID, models.CategoryLearning, "2024-03-10")

	refreshed, err := repo.Refresh(ctx, user.ID, models.CategoryFitness, time.Now())
	if err != nil {
		t.Fatalf("refreshing: %v", err)
	}
	if refreshed.Completed != 2 || refreshed.Total != 3 || refreshed.Progress != 67 {
		t.Errorf("expected 2/3 at 67%%, got %+v", refreshed)
	}

	masteries, err := repo.FindByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("finding mastery: %v", err)
	}
	if len(masteries) != 1 {
		t.Fatalf("expected only the refreshed category stored, got %d rows", len(masteries))
	}
	if masteries[0].Category != models.CategoryFitness || masteries[0].Progress != 67 || masteries[0].Total != 3 {
		t.Errorf("unexpected stored mastery %+v", masteries[0])
	}
}
