package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/ItsHarshjsin/riseup-sub000/internal/services"
	"github.com/ItsHarshjsin/riseup-sub000/internal/testutil"
)

func TestNextStatus(t *testing.T) {
	challenge := models.PeerChallenge{ChallengerID: "ada", ChallengedID: "bob"}

	tests := []struct {
		name    string
		status  models.ChallengeStatus
		actor   string
		action  services.ChallengeAction
		want    models.ChallengeStatus
		wantErr error
	}{
		{"challenged accepts", models.ChallengeStatusPending, "bob", services.ActionAccept, models.ChallengeStatusAccepted, nil},
		{"challenged rejects", models.ChallengeStatusPending, "bob", services.ActionReject, models.ChallengeStatusRejected, nil},
		{"challenger cannot accept", models.ChallengeStatusPending, "ada", services.ActionAccept, "", services.ErrForbidden},
		{"stranger cannot reject", models.ChallengeStatusPending, "carol", services.ActionReject, "", services.ErrForbidden},
		{"accept twice", models.ChallengeStatusAccepted, "bob", services.ActionAccept, "", services.ErrInvalidTransition},
		{"challenger completes", models.ChallengeStatusAccepted, "ada", services.ActionComplete, models.ChallengeStatusCompleted, nil},
		{"challenged completes", models.ChallengeStatusAccepted, "bob", services.ActionComplete, models.ChallengeStatusCompleted, nil},
		{"complete pending", models.ChallengeStatusPending, "bob", services.ActionComplete, "", services.ErrInvalidTransition},
		{"complete rejected", models.ChallengeStatusRejected, "ada", services.ActionComplete, "", services.ErrInvalidTransition},
		{"stranger completes", models.ChallengeStatusAccepted, "carol", services.ActionComplete, "", services.ErrForbidden},
		{"unknown action", models.ChallengeStatusPending, "bob", "snooze", "", services.ErrInvalidInput},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			challenge.Status = test.status
			got, err := services.NextStatus(challenge, test.actor, test.action)
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Fatalf("expected %v, got %v", test.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != test.want {
				t.Errorf("expected %s, got %s", test.want, got)
			}
		})
	}
}

func issueChallenge(t *testing.T, engine *testEngine, challenger services.Session, challenged services.Session) models.PeerChallenge {
	t.Helper()
	challenge, err := engine.challenges.IssueChallenge(context.Background(), challenger, services.NewPeerChallenge{
		ChallengedID: challenged.UserID,
		Title:        "Push-ups",
		Category:     models.CategoryFitness,
		Points:       20,
		Deadline:     time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("issuing challenge: %v", err)
	}
	return challenge
}

func TestPeerChallenge_Lifecycle(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()
	ada := engine.signUp(t, "ada")
	bob := engine.signUp(t, "bob")

	challenge := issueChallenge(t, engine, ada, bob)
	if challenge.Status != models.ChallengeStatusPending {
		t.Fatalf("expected pending challenge, got %s", challenge.Status)
	}

	_, err := engine.challenges.RespondToChallenge(ctx, ada, challenge.ID, true)
	if !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for challenger accepting, got %v", err)
	}
	stored, err := engine.repos.PeerChallenges.FindByID(ctx, challenge.ID)
	if err != nil {
		t.Fatalf("finding challenge: %v", err)
	}
	if stored.Status != models.ChallengeStatusPending {
		t.Errorf("expected status unchanged, got %s", stored.Status)
	}

	accepted, err := engine.challenges.RespondToChallenge(ctx, bob, challenge.ID, true)
	if err != nil {
		t.Fatalf("accepting: %v", err)
	}
	if accepted.Status != models.ChallengeStatusAccepted {
		t.Errorf("expected accepted, got %s", accepted.Status)
	}

	_, err = engine.challenges.RespondToChallenge(ctx, bob, challenge.ID, false)
	if !errors.Is(err, services.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition rejecting an accepted challenge, got %v", err)
	}

	completed, err := engine.challenges.CompleteChallenge(ctx, ada, challenge.ID)
	if err != nil {
		t.Fatalf("completing: %v", err)
	}
	if completed.Status != models.ChallengeStatusCompleted {
		t.Errorf("expected completed, got %s", completed.Status)
	}

	if profile := engine.profile(t, bob); profile.Points != 0 {
		t.Errorf("expected peer challenges to award no points, got %d", profile.Points)
	}
}

func TestPeerChallenge_Rejected(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()
	ada := engine.signUp(t, "ada")
	bob := engine.signUp(t, "bob")
	challenge := issueChallenge(t, engine, ada, bob)

	rejected, err := engine.challenges.RespondToChallenge(ctx, bob, challenge.ID, false)
	if err != nil {
		t.Fatalf("rejecting: %v", err)
	}
	if rejected.Status != models.ChallengeStatusRejected {
		t.Errorf("expected rejected, got %s", rejected.Status)
	}

	_, err = engine.challenges.CompleteChallenge(ctx, bob, challenge.ID)
	if !errors.Is(err, services.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestIssueChallenge_Validation(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()
	ada := engine.signUp(t, "ada")
	bob := engine.signUp(t, "bob")

	tests := []struct {
		name  string
		input services.NewPeerChallenge
		want  error
	}{
		{"self", services.NewPeerChallenge{ChallengedID: ada.UserID, Title: "Run", Category: models.CategoryFitness, Deadline: time.Now().Add(time.Hour)}, services.ErrInvalidInput},
		{"past deadline", services.NewPeerChallenge{ChallengedID: bob.UserID, Title: "Run", Category: models.CategoryFitness, Deadline: time.Now().Add(-time.Hour)}, services.ErrInvalidInput},
		{"unknown user", services.NewPeerChallenge{ChallengedID: "ghost", Title: "Run", Category: models.CategoryFitness, Deadline: time.Now().Add(time.Hour)}, services.ErrNotFound},
		{"no title", services.NewPeerChallenge{ChallengedID: bob.UserID, Category: models.CategoryFitness, Deadline: time.Now().Add(time.Hour)}, services.ErrInvalidInput},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := engine.challenges.IssueChallenge(ctx, ada, test.input)
			if !errors.Is(err, test.want) {
				t.Errorf("expected %v, got %v", test.want, err)
			}
		})
	}
}

func newClanChallenge(participants ...string) services.NewClanChallenge {
	return services.NewClanChallenge{
		Title:          "Team 10k",
		Category:       models.CategoryFitness,
		Points:         40,
		Deadline:       time.Now().Add(48 * time.Hour),
		ParticipantIDs: participants,
	}
}

func TestCompleteClanChallenge_AwardsUserAndClan(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()
	ada := engine.signUp(t, "ada")
	bob := engine.signUp(t, "bob")
	carol := engine.signUp(t, "carol")
	clan := engine.createClan(t, ada, "Early Birds")
	engine.join(t, bob, clan)

	challenge, err := engine.challenges.CreateClanChallenge(ctx, ada, newClanChallenge(ada.UserID, bob.UserID, ada.UserID))
	if err != nil {
		t.Fatalf("creating clan challenge: %v", err)
	}
	if len(challenge.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(challenge.Participants))
	}

	_, err = engine.challenges.CompleteClanChallenge(ctx, carol, challenge.ID)
	if !errors.Is(err, services.ErrForbidden) {
		t.Errorf("expected ErrForbidden for non-participant, got %v", err)
	}

	partial, err := engine.challenges.CompleteClanChallenge(ctx, ada, challenge.ID)
	if err != nil {
		t.Fatalf("completing as ada: %v", err)
	}
	if partial.Completed {
		t.Error("expected challenge open until every participant finishes")
	}

	_, err = engine.challenges.CompleteClanChallenge(ctx, ada, challenge.ID)
	if !errors.Is(err, services.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition on repeat, got %v", err)
	}

	done, err := engine.challenges.CompleteClanChallenge(ctx, bob, challenge.ID)
	if err != nil {
		t.Fatalf("completing as bob: %v", err)
	}
	if !done.Completed {
		t.Error("expected challenge completed")
	}

	if profile := engine.profile(t, ada); profile.Points != 40 {
		t.Errorf("expected ada to earn 40 points, got %d", profile.Points)
	}
	storedClan, err := engine.repos.Clans.FindByID(ctx, clan.ID)
	if err != nil {
		t.Fatalf("finding clan: %v", err)
	}
	if storedClan.Points != 80 {
		t.Errorf("expected clan to earn 80 points, got %d", storedClan.Points)
	}
}

func TestCreateClanChallenge_RequiresMembers(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()
	ada := engine.signUp(t, "ada")
	bob := engine.signUp(t, "bob")
	engine.createClan(t, ada, "Early Birds")

	_, err := engine.challenges.CreateClanChallenge(ctx, ada, newClanChallenge(bob.UserID))
	if !errors.Is(err, services.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for outsider, got %v", err)
	}

	_, err = engine.challenges.CreateClanChallenge(ctx, bob, newClanChallenge(bob.UserID))
	if !errors.Is(err, services.ErrForbidden) {
		t.Errorf("expected ErrForbidden without a clan, got %v", err)
	}
}

func TestCreateClanChallenge_PartialParticipantsAreRetried(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	repos := repositoriesFor(db)
	clanChallenges := &flakyClanChallenges{ClanChallengeRepository: repos.ClanChallenges}
	repos.ClanChallenges = clanChallenges
	engine := newEngineWith(t, db, repos)
	ctx := context.Background()
	ada := engine.signUp(t, "ada")
	bob := engine.signUp(t, "bob")
	clan := engine.createClan(t, ada, "Early Birds")
	engine.join(t, bob, clan)

	clanChallenges.failAddParticipants = true
	challenge, err := engine.challenges.CreateClanChallenge(ctx, ada, newClanChallenge(ada.UserID, bob.UserID))
	var partial *services.PartialParticipantsError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialParticipantsError, got %v", err)
	}
	if partial.ChallengeID != challenge.ID || len(partial.Missing) != 2 {
		t.Errorf("unexpected partial participants %+v", partial)
	}
	if !errors.Is(err, services.ErrPartialParticipants) {
		t.Errorf("expected ErrPartialParticipants in chain, got %v", err)
	}

	clanChallenges.failAddParticipants = false
	_, err = engine.challenges.RetryParticipants(ctx, bob, challenge.ID, partial.Missing)
	if !errors.Is(err, services.ErrForbidden) {
		t.Errorf("expected ErrForbidden for non-creator retry, got %v", err)
	}

	retried, err := engine.challenges.RetryParticipants(ctx, ada, challenge.ID, partial.Missing)
	if err != nil {
		t.Fatalf("retrying participants: %v", err)
	}
	if len(retried.Participants) != 2 {
		t.Errorf("expected 2 participants after retry, got %d", len(retried.Participants))
	}
}
