package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"mytodo/internal/models"
	"mytodo/internal/todo"
)

// ListTasks returns the tasks matching the active filter, or the filter
// given in the query string.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	f := h.tasks.Filter()
	if q := r.URL.Query().Get("filter"); q != "" {
		parsed, err := models.ParseFilter(q)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		f = parsed
	}

	h.respondViewOf(w, http.StatusOK, f)
}

// CreateTask adds a new task.
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	text, err := readText(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.tasks.Add(text); err != nil {
		if errors.Is(err, todo.ErrDuplicateTask) {
			respondError(w, http.StatusConflict, "a task with this text already exists")
			return
		}
		if errors.Is(err, todo.ErrIDsExhausted) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		h.respondServerError(w, err)
		return
	}

	// Empty text is silently ignored.
	code := http.StatusOK
	if models.NormalizeText(text) != "" {
		code = http.StatusCreated
	}
	h.respondView(w, code)
}

// UpdateTask replaces the text of a task.
func (h *Handlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	text, err := readText(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.tasks.Edit(id, text); err != nil {
		h.respondServerError(w, err)
		return
	}

	h.respondView(w, http.StatusOK)
}

// DeleteTask deletes a task.
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	if _, err := h.tasks.Delete(id); err != nil {
		h.respondServerError(w, err)
		return
	}

	h.respondView(w, http.StatusOK)
}

// ToggleTask toggles the completion status of a task.
func (h *Handlers) ToggleTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	if _, err := h.tasks.Toggle(id); err != nil {
		h.respondServerError(w, err)
		return
	}

	h.respondView(w, http.StatusOK)
}

// ClearCompleted removes all completed tasks. The client must pass
// confirm=true after asking the user.
func (h *Handlers) ClearCompleted(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

	if _, err := h.tasks.ClearCompleted(confirmed); err != nil {
		if errors.Is(err, todo.ErrConfirmationRequired) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.respondServerError(w, err)
		return
	}

	h.respondView(w, http.StatusOK)
}

// SetFilter changes the active filter.
func (h *Handlers) SetFilter(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Filter string `json:"filter"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}

	f, err := models.ParseFilter(payload.Filter)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.tasks.SetFilter(f)

	h.respondView(w, http.StatusOK)
}

// Counts returns the task counts.
func (h *Handlers) Counts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.tasks.Counts())
}
