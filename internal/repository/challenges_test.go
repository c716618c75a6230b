package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/ItsHarshjsin/riseup-sub000/internal/repository"
	"github.com/ItsHarshjsin/riseup-sub000/internal/testutil"
)

func createClanChallenge(t *testing.T, db *sql.DB) (models.ClanChallenge, models.Profile, models.Profile) {
	t.Helper()
	ctx := context.Background()

	ada := createProfile(t, db, "ada")
	bob := createProfile(t, db, "bob")
	clan, err := repository.NewClanRepository(db).Create(ctx, models.Clan{Name: "Wolves", OwnerID: ada.ID, InviteCode: "w"})
	if err != nil {
		t.Fatalf("creating clan: %v", err)
	}

	challenge, err := repository.NewClanChallengeRepository(db).Create(ctx, models.ClanChallenge{
		ClanID:    clan.ID,
		Title:     "Run 5k",
		Category:  models.CategoryFitness,
		Points:    50,
		Deadline:  time.Now().Add(48 * time.Hour),
		CreatedBy: ada.ID,
	})
	if err != nil {
		t.Fatalf("creating clan challenge: %v", err)
	}
	return challenge, ada, bob
}

func TestClanChallengeRepository_AddParticipants_Idempotent(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	repo := repository.NewClanChallengeRepository(db)
	ctx := context.Background()
	challenge, ada, bob := createClanChallenge(t, db)

	if err := repo.AddParticipants(ctx, challenge.ID, []string{ada.ID}); err != nil {
		t.Fatalf("adding participants: %v", err)
	}
	if err := repo.AddParticipants(ctx, challenge.ID, []string{ada.ID, bob.ID}); err != nil {
		t.Fatalf("retrying participants: %v", err)
	}

	found, err := repo.FindByID(ctx, challenge.ID)
	if err != nil {
		t.Fatalf("finding challenge: %v", err)
	}
	if len(found.Participants) != 2 {
		t.Errorf("expected 2 participants, got %d", len(found.Participants))
	}
}

func TestClanChallengeRepository_CompleteParticipant(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	repo := repository.NewClanChallengeRepository(db)
	ctx := context.Background()
	challenge, ada, _ := createClanChallenge(t, db)
	repo.AddParticipants(ctx, challenge.ID, []string{ada.ID})

	changed, err := repo.CompleteParticipant(ctx, challenge.ID, ada.ID, time.Now())
	if err != nil {
		t.Fatalf("completing participant: %v", err)
	}
	if !changed {
		t.Error("expected first completion to change the row")
	}

	changed, err = repo.CompleteParticipant(ctx, challenge.ID, ada.ID, time.Now())
	if err != nil {
		t.Fatalf("completing participant again: %v", err)
	}
	if changed {
		t.Error("expected second completion to be a no-op")
	}

	if err := repo.MarkCompleted(ctx, challenge.ID); err != nil {
		t.Fatalf("marking challenge completed: %v", err)
	}
	challenges, err := repo.FindByClanID(ctx, challenge.ClanID)
	if err != nil {
		t.Fatalf("finding clan challenges: %v", err)
	}
	if len(challenges) != 1 || !challenges[0].Completed {
		t.Fatalf("expected one completed challenge, got %v", challenges)
	}
	if !challenges[0].Participants[0].Completed {
		t.Error("expected participant loaded as completed")
	}
}

func TestPeerChallengeRepository_UpdateStatus(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	repo := repository.NewPeerChallengeRepository(db)
	ctx := context.Background()
	ada := createProfile(t, db, "ada")
	bob := createProfile(t, db, "bob")

	challenge, err := repo.Create(ctx, models.PeerChallenge{
		ChallengerID: ada.ID,
		ChallengedID: bob.ID,
		Title:        "Read a book",
		Category:     models.CategoryLearning,
		Points:       30,
		Deadline:     time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("creating peer challenge: %v", err)
	}
	if challenge.Status != models.ChallengeStatusPending {
		t.Errorf("expected pending, got %s", challenge.Status)
	}

	moved, err := repo.UpdateStatus(ctx, challenge.ID, models.ChallengeStatusPending, models.ChallengeStatusAccepted)
	if err != nil {
		t.Fatalf("accepting challenge: %v", err)
	}
	if !moved {
		t.Error("expected pending to accepted to apply")
	}

	moved, err = repo.UpdateStatus(ctx, challenge.ID, models.ChallengeStatusPending, models.ChallengeStatusRejected)
	if err != nil {
		t.Fatalf("rejecting challenge: %v", err)
	}
	if moved {
		t.Error("expected stale transition to be refused")
	}

	forBob, err := repo.FindByUser(ctx, bob.ID)
	if err != nil {
		t.Fatalf("finding challenges: %v", err)
	}
	if len(forBob) != 1 || forBob[0].Status != models.ChallengeStatusAccepted {
		t.Errorf("expected one accepted challenge, got %v", forBob)
	}
}
