package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/google/uuid"
)

const (
	OrderByCreatedAtAsc    = "created_at ASC, id ASC"
	OrderByTaskDateDesc    = "task_date DESC, created_at ASC"
	OrderByCompletedAtDesc = "completed_at DESC NULLS LAST, created_at ASC"
)

const taskColumns = `id, user_id, title, description, category, points,
	completed, task_date, completed_at, created_at`

type TaskFilter struct {
	UserID    *string
	TaskDate  *string
	DateFrom  *string
	DateTo    *string
	Category  *models.Category
	Completed *bool
	OrderBy   string
	Limit     int
}

type TaskRepository interface {
	FindByID(ctx context.Context, id string) (models.Task, error)
	FindAll(ctx context.Context, filter TaskFilter) ([]models.Task, error)
	Create(ctx context.Context, task models.Task) (models.Task, error)
	SetCompletion(ctx context.Context, id string, completed bool, completedAt *time.Time) (bool, error)
	CompletedDates(ctx context.Context, userID string) ([]string, error)
}

type SQLiteTaskRepository struct {
	database *sql.DB
}

func NewTaskRepository(database *sql.DB) *SQLiteTaskRepository {
	return &SQLiteTaskRepository{database: database}
}

func (repository *SQLiteTaskRepository) FindByID(ctx context.Context, id string) (models.Task, error) {
	row := repository.database.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	task, err := scanTask(row)
	if err != nil {
		return models.Task{}, fmt.Errorf("finding task by id: %w", err)
	}
	return task, nil
}

func (repository *SQLiteTaskRepository) FindAll(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE 1=1"

	var args []interface{}

	if filter.UserID != nil {
		query += " AND user_id = ?"
		args = append(args, *filter.UserID)
	}
	if filter.TaskDate != nil {
		query += " AND task_date = ?"
		args = append(args, *filter.TaskDate)
	}
	if filter.DateFrom != nil {
		query += " AND task_date >= ?"
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query += " AND task_date <= ?"
		args = append(args, *filter.DateTo)
	}
	if filter.Category != nil {
		query += " AND category = ?"
		args = append(args, string(*filter.Category))
	}
	if filter.Completed != nil {
		query += " AND completed = ?"
		args = append(args, *filter.Completed)
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = OrderByCreatedAtAsc
	}
	query += " ORDER BY " + orderBy

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := repository.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (repository *SQLiteTaskRepository) Create(ctx context.Context, task models.Task) (models.Task, error) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	task.CreatedAt = time.Now()

	_, err := repository.database.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, title, description, category, points,
			completed, task_date, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.UserID, task.Title, task.Description, task.Category, task.Points,
		task.Completed, task.TaskDate, task.CompletedAt, task.CreatedAt,
	)
	if err != nil {
		return models.Task{}, fmt.Errorf("creating task: %w", err)
	}
	return task, nil
}

// SetCompletion writes completed and completed_at together so the two never
// disagree on disk. The row only changes when its stored completed flag is the
// opposite of completed; it reports false when nothing moved.
func (repository *SQLiteTaskRepository) SetCompletion(ctx context.Context, id string, completed bool, completedAt *time.Time) (bool, error) {
	if !completed {
		completedAt = nil
	}

	result, err := repository.database.ExecContext(ctx,
		"UPDATE tasks SET completed = ?, completed_at = ? WHERE id = ? AND completed = ?",
		completed, completedAt, id, !completed,
	)
	if err != nil {
		return false, fmt.Errorf("setting task completion: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking task update: %w", err)
	}
	return affected > 0, nil
}

// CompletedDates returns the distinct days on which the user completed at
// least one task, newest first.
func (repository *SQLiteTaskRepository) CompletedDates(ctx context.Context, userID string) ([]string, error) {
	rows, err := repository.database.QueryContext(ctx,
		`SELECT DISTINCT task_date FROM tasks
		WHERE user_id = ? AND completed = 1
		ORDER BY task_date DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding completed dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("scanning completed date: %w", err)
		}
		dates = append(dates, date)
	}
	return dates, rows.Err()
}

func scanTask(row rowScanner) (models.Task, error) {
	var task models.Task
	err := row.Scan(
		&task.ID, &task.UserID, &task.Title, &task.Description, &task.Category, &task.Points,
		&task.Completed, &task.TaskDate, &task.CompletedAt, &task.CreatedAt,
	)
	return task, err
}

func scanTasks(rows *sql.Rows) ([]models.Task, error) {
	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
