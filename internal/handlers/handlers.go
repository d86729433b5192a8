package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"mytodo/internal/models"
	"mytodo/internal/todo"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	tasks *todo.Store
	log   *logrus.Logger
}

// New creates a new Handlers instance.
func New(tasks *todo.Store, log *logrus.Logger) *Handlers {
	return &Handlers{
		tasks: tasks,
		log:   log,
	}
}

// Router builds the chi router serving the task API.
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: h.log, NoColor: true}))
	r.Use(middleware.Recoverer)

	r.Get("/api/tasks", h.ListTasks)
	r.Post("/api/tasks", h.CreateTask)
	r.Post("/api/tasks/clear-completed", h.ClearCompleted)
	r.Put("/api/tasks/{id}", h.UpdateTask)
	r.Delete("/api/tasks/{id}", h.DeleteTask)
	r.Post("/api/tasks/{id}/toggle", h.ToggleTask)
	r.Put("/api/filter", h.SetFilter)
	r.Get("/api/counts", h.Counts)

	return r
}

// TaskList is the response body of every task endpoint.
type TaskList struct {
	Filter models.Filter `json:"filter"`
	Tasks  []models.Task `json:"tasks"`
	Counts models.Counts `json:"counts"`
}

// parseID extracts and parses an integer ID from URL parameters.
func parseID(r *http.Request, param string) (int64, error) {
	idStr := chi.URLParam(r, param)
	return strconv.ParseInt(idStr, 10, 64)
}

// readText reads the task text from a JSON body or form value.
func readText(r *http.Request) (string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return "", err
		}
		return payload.Text, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.FormValue("text"), nil
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}

func (h *Handlers) respondServerError(w http.ResponseWriter, err error) {
	h.log.WithError(err).Error("internal server error")
	respondError(w, http.StatusInternalServerError, "internal server error")
}

func respondJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// respondView renders the current filtered view.
func (h *Handlers) respondView(w http.ResponseWriter, code int) {
	h.respondViewOf(w, code, h.tasks.Filter())
}

func (h *Handlers) respondViewOf(w http.ResponseWriter, code int, f models.Filter) {
	tasks := []models.Task{}
	for t := range h.tasks.ViewOf(f) {
		tasks = append(tasks, t)
	}
	respondJSON(w, code, TaskList{
		Filter: f,
		Tasks:  tasks,
		Counts: h.tasks.Counts(),
	})
}
