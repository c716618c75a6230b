package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/middleware"
	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/ItsHarshjsin/riseup-sub000/internal/services"
	"github.com/go-chi/chi/v5"
)

type TaskHandler struct {
	taskService *services.TaskService
	queries     *services.Queries
}

func NewTaskHandler(taskService *services.TaskService, queries *services.Queries) *TaskHandler {
	return &TaskHandler{taskService: taskService, queries: queries}
}

// List returns the caller's tasks for ?date=YYYY-MM-DD, today by default.
func (handler *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date != "" {
		if _, err := time.Parse(models.DateLayout, date); err != nil {
			writeError(w, fmt.Errorf("date must be YYYY-MM-DD: %w", services.ErrInvalidInput))
			return
		}
	}

	result, err := handler.queries.Tasks(r.Context(), middleware.GetSession(r.Context()), date)
	writeResult(w, result, err)
}

func (handler *TaskHandler) History(w http.ResponseWriter, r *http.Request) {
	result, err := handler.queries.TaskHistory(r.Context(), middleware.GetSession(r.Context()))
	writeResult(w, result, err)
}

func (handler *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.NewTask
	if !decodeJSON(w, r, &input) {
		return
	}

	task, err := handler.taskService.AddTask(r.Context(), middleware.GetSession(r.Context()), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (handler *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	task, err := handler.taskService.ToggleTaskCompletion(r.Context(), middleware.GetSession(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
