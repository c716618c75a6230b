package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/ItsHarshjsin/riseup-sub000/internal/repository"
)

const (
	spinSlots         = 3
	spinCandidateSize = 20
)

// Proposal is one slot of a wheel spin. TaskID is set when the proposal came
// from one of the caller's open tasks.
type Proposal struct {
	Category    models.Category `json:"category"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Points      int             `json:"points"`
	TaskID      string          `json:"task_id,omitempty"`
	Fallback    bool            `json:"fallback"`
}

// fallbackProposals fill slots whose category had no open tasks, in order.
var fallbackProposals = []Proposal{
	{
		Category:    models.CategoryFitness,
		Title:       "Take a 20 minute walk",
		Description: "Get outside and move for twenty minutes.",
		Points:      15,
		Fallback:    true,
	},
	{
		Category:    models.CategoryLearning,
		Title:       "Read for 15 minutes",
		Description: "Pick up a book or article and read for fifteen minutes.",
		Points:      10,
		Fallback:    true,
	},
	{
		Category:    models.CategoryMindfulness,
		Title:       "Meditate for 10 minutes",
		Description: "Sit quietly and focus on your breathing for ten minutes.",
		Points:      10,
		Fallback:    true,
	},
}

type SpinService struct {
	membershipRepo repository.MembershipRepository
	taskRepo       repository.TaskRepository
	tasks          *TaskService

	mu     sync.Mutex
	random *rand.Rand
}

// NewSpinService draws from a source seeded with seed, so a fixed seed gives
// a repeatable sequence of spins.
func NewSpinService(membershipRepo repository.MembershipRepository, taskRepo repository.TaskRepository, tasks *TaskService, seed int64) *SpinService {
	return &SpinService{
		membershipRepo: membershipRepo,
		taskRepo:       taskRepo,
		tasks:          tasks,
		random:         rand.New(rand.NewSource(seed)),
	}
}

// SpinChallengeWheel proposes three tasks from three distinct categories drawn
// without replacement. Each proposal is one of the caller's open tasks in that
// category, picked uniformly from up to 20 candidates. Slots with no
// candidate are filled from the fallback proposals. Nothing is written.
func (service *SpinService) SpinChallengeWheel(ctx context.Context, session Session, clanID string) ([]Proposal, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}

	membership, inClan, err := findMembership(ctx, service.membershipRepo, session.UserID)
	if err != nil {
		return nil, err
	}
	if !inClan || membership.ClanID != clanID {
		return nil, fmt.Errorf("spinning for a clan you are not in: %w", ErrForbidden)
	}

	categories := service.pickCategories(spinSlots)

	proposals := make([]Proposal, 0, spinSlots)
	incomplete := false
	for _, category := range categories {
		candidates, err := service.taskRepo.FindAll(ctx, repository.TaskFilter{
			UserID:    &session.UserID,
			Category:  &category,
			Completed: &incomplete,
			Limit:     spinCandidateSize,
		})
		if err != nil {
			return nil, storeError("finding spin candidates", err)
		}
		if len(candidates) == 0 {
			continue
		}

		task := candidates[service.intn(len(candidates))]
		proposals = append(proposals, Proposal{
			Category:    task.Category,
			Title:       task.Title,
			Description: task.Description,
			Points:      task.Points,
			TaskID:      task.ID,
		})
	}

	return fillWithFallbacks(proposals), nil
}

// fillWithFallbacks tops proposals up to three slots, skipping fallbacks
// whose category is already proposed.
func fillWithFallbacks(proposals []Proposal) []Proposal {
	used := make(map[models.Category]bool, len(proposals))
	for _, proposal := range proposals {
		used[proposal.Category] = true
	}
	for _, fallback := range fallbackProposals {
		if len(proposals) == spinSlots {
			break
		}
		if used[fallback.Category] {
			continue
		}
		proposals = append(proposals, fallback)
	}
	return proposals
}

// AcceptSpinProposal adds the chosen proposal to today's tasks.
func (service *SpinService) AcceptSpinProposal(ctx context.Context, session Session, proposal Proposal) (models.Task, error) {
	return service.tasks.AddTask(ctx, session, NewTask{
		Title:       proposal.Title,
		Description: proposal.Description,
		Category:    proposal.Category,
		Points:      proposal.Points,
	})
}

func (service *SpinService) pickCategories(count int) []models.Category {
	service.mu.Lock()
	defer service.mu.Unlock()

	pool := make([]models.Category, len(models.Categories))
	copy(pool, models.Categories)
	service.random.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	return pool[:count]
}

func (service *SpinService) intn(n int) int {
	service.mu.Lock()
	defer service.mu.Unlock()

	return service.random.Intn(n)
}
