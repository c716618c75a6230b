package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/ItsHarshjsin/riseup-sub000/internal/querycache"
	"github.com/ItsHarshjsin/riseup-sub000/internal/repository"
)

const DefaultTaskPoints = 10

type NewTask struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    models.Category `json:"category"`
	Points      int             `json:"points"`
}

type TaskService struct {
	taskRepo repository.TaskRepository
	progress *ProgressService
	cache    *querycache.Cache
	now      func() time.Time
}

func NewTaskService(taskRepo repository.TaskRepository, progress *ProgressService, cache *querycache.Cache) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
		progress: progress,
		cache:    cache,
		now:      time.Now,
	}
}

func (service *TaskService) today() string {
	return service.now().Format(models.DateLayout)
}

// AddTask creates an uncompleted task dated today. Points are only awarded on
// completion.
func (service *TaskService) AddTask(ctx context.Context, session Session, input NewTask) (models.Task, error) {
	if err := requireSession(session); err != nil {
		return models.Task{}, err
	}

	title := cleanLine(input.Title)
	if title == "" {
		return models.Task{}, fmt.Errorf("title is required: %w", ErrInvalidInput)
	}
	if !input.Category.Valid() {
		return models.Task{}, fmt.Errorf("unknown category %q: %w", input.Category, ErrInvalidInput)
	}
	points := input.Points
	if points == 0 {
		points = DefaultTaskPoints
	}
	if points < 0 {
		return models.Task{}, fmt.Errorf("points must be positive: %w", ErrInvalidInput)
	}

	task, err := service.taskRepo.Create(ctx, models.Task{
		UserID:      session.UserID,
		Title:       title,
		Description: cleanText(input.Description),
		Category:    input.Category,
		Points:      points,
		TaskDate:    service.today(),
	})
	if err != nil {
		return models.Task{}, storeError("creating task", err)
	}

	invalidate(service.cache,
		userKey(KindTasks, session.UserID),
		userKey(KindTaskHistory, session.UserID),
	)

	if _, err := service.progress.RefreshMastery(ctx, session.UserID, task.Category); err != nil {
		slog.Error("refreshing mastery after new task", "task_id", task.ID, "error", err)
		return task, err
	}
	return task, nil
}

// ToggleTaskCompletion flips a task owned by the caller. Only today's tasks
// can be toggled. Completing awards the task's points and un-completing takes
// them back, so two toggles in a row leave the profile where it started.
func (service *TaskService) ToggleTaskCompletion(ctx context.Context, session Session, taskID string) (models.Task, error) {
	if err := requireSession(session); err != nil {
		return models.Task{}, err
	}

	task, err := service.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return models.Task{}, storeError("finding task", err)
	}
	if task.UserID != session.UserID {
		return models.Task{}, fmt.Errorf("task belongs to another user: %w", ErrForbidden)
	}
	if task.TaskDate != service.today() {
		return models.Task{}, fmt.Errorf("task dated %s is not today's: %w", task.TaskDate, ErrInvalidTransition)
	}

	completed := !task.Completed
	var completedAt *time.Time
	if completed {
		now := service.now()
		completedAt = &now
	}

	moved, err := service.taskRepo.SetCompletion(ctx, task.ID, completed, completedAt)
	if err != nil {
		return models.Task{}, storeError("toggling task", err)
	}
	if !moved {
		return models.Task{}, fmt.Errorf("task changed while toggling: %w", ErrInvalidTransition)
	}
	task.Completed = completed
	task.CompletedAt = completedAt

	invalidate(service.cache, userKey(KindTasks, session.UserID), userKey(KindMastery, session.UserID))

	delta := task.Points
	if !completed {
		delta = -task.Points
	}

	_, err = service.progress.Apply(ctx, session.UserID, delta, task.Category)
	invalidate(service.cache, progressKeys(session.UserID)...)
	if err != nil {
		slog.Error("updating progress after toggle", "task_id", task.ID, "error", err)
		return task, fmt.Errorf("updating progress: %w", err)
	}

	return task, nil
}
