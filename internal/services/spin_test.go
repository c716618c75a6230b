package services_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/ItsHarshjsin/riseup-sub000/internal/services"
)

func newSpinService(engine *testEngine, seed int64) *services.SpinService {
	return services.NewSpinService(engine.repos.Memberships, engine.repos.Tasks, engine.tasks, seed)
}

func assertDistinctCategories(t *testing.T, proposals []services.Proposal) {
	t.Helper()
	seen := make(map[models.Category]bool)
	for _, proposal := range proposals {
		if seen[proposal.Category] {
			t.Errorf("category %s proposed twice", proposal.Category)
		}
		seen[proposal.Category] = true
	}
}

func TestSpinChallengeWheel_FallsBackWithoutTasks(t *testing.T) {
	engine := newEngine(t)
	ada := engine.signUp(t, "ada")
	clan := engine.createClan(t, ada, "Early Birds")

	proposals, err := newSpinService(engine, 42).SpinChallengeWheel(context.Background(), ada, clan.ID)
	if err != nil {
		t.Fatalf("spinning: %v", err)
	}
	if len(proposals) != 3 {
		t.Fatalf("expected 3 proposals, got %d", len(proposals))
	}
	for _, proposal := range proposals {
		if !proposal.Fallback || proposal.TaskID != "" {
			t.Errorf("expected fallback proposal, got %+v", proposal)
		}
	}
	assertDistinctCategories(t, proposals)
}

func TestSpinChallengeWheel_ProposesOpenTasks(t *testing.T) {
	engine := newEngine(t)
	ada := engine.signUp(t, "ada")
	clan := engine.createClan(t, ada, "Early Birds")
	for _, category := range models.Categories {
		addTask(t, engine, ada, category, 10)
	}

	proposals, err := newSpinService(engine, 7).SpinChallengeWheel(context.Background(), ada, clan.ID)
	if err != nil {
		t.Fatalf("spinning: %v", err)
	}
	if len(proposals) != 3 {
		t.Fatalf("expected 3 proposals, got %d", len(proposals))
	}
	for _, proposal := range proposals {
		if proposal.Fallback || proposal.TaskID == "" {
			t.Errorf("expected a proposal from an open task, got %+v", proposal)
		}
	}
	assertDistinctCategories(t, proposals)
}

func TestSpinChallengeWheel_SameSeedSameProposals(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()
	ada := engine.signUp(t, "ada")
	clan := engine.createClan(t, ada, "Early Birds")
	addTask(t, engine, ada, models.CategoryFitness, 10)
	addTask(t, engine, ada, models.CategoryFitness, 20)
	addTask(t, engine, ada, models.CategoryCreativity, 10)

	first, err := newSpinService(engine, 1234).SpinChallengeWheel(ctx, ada, clan.ID)
	if err != nil {
		t.Fatalf("first spin: %v", err)
	}
	second, err := newSpinService(engine, 1234).SpinChallengeWheel(ctx, ada, clan.ID)
	if err != nil {
		t.Fatalf("second spin: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical spins, got %+v and %+v", first, second)
	}
	if len(first) != 3 {
		t.Errorf("expected 3 proposals, got %d", len(first))
	}
	assertDistinctCategories(t, first)
}

func TestSpinChallengeWheel_RequiresMembership(t *testing.T) {
	engine := newEngine(t)
	ada := engine.signUp(t, "ada")
	bob := engine.signUp(t, "bob")
	clan := engine.createClan(t, ada, "Early Birds")

	_, err := newSpinService(engine, 1).SpinChallengeWheel(context.Background(), bob, clan.ID)
	if !errors.Is(err, services.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestAcceptSpinProposal_AddsTask(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()
	ada := engine.signUp(t, "ada")
	clan := engine.createClan(t, ada, "Early Birds")
	spin := newSpinService(engine, 3)

	proposals, err := spin.SpinChallengeWheel(ctx, ada, clan.ID)
	if err != nil {
		t.Fatalf("spinning: %v", err)
	}

	task, err := spin.AcceptSpinProposal(ctx, ada, proposals[0])
	if err != nil {
		t.Fatalf("accepting proposal: %v", err)
	}
	if task.Title != proposals[0].Title || task.Category != proposals[0].Category || task.Points != proposals[0].Points {
		t.Errorf("task %+v does not match proposal %+v", task, proposals[0])
	}
}
