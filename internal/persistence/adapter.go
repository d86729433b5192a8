// Package persistence reads and writes the task collection to a durable slot.
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/sirupsen/logrus"

	"mytodo/internal/models"
	"mytodo/internal/store"
)

// DefaultKey is the slot the task collection is stored under.
const DefaultKey = "myTodoApp_todos"

const saveTimeout = 5 * time.Second

// ErrCorrupt marks a stored value that does not decode to a task collection.
var ErrCorrupt = errors.New("corrupt persisted tasks")

// storedTask mirrors models.Task with every field required.
type storedTask struct {
	ID        *int64     `json:"id" validate:"required,gt=0"`
	Text      *string    `json:"text" validate:"required,notblank"`
	Completed *bool      `json:"completed" validate:"required"`
	CreatedAt *time.Time `json:"createdAt" validate:"required"`
}

// Adapter serializes the task collection to a single key in a store.Store.
type Adapter struct {
	store    store.Store
	key      string
	log      *logrus.Logger
	validate *validator.Validate
}

// New creates an Adapter writing to key in st.
func New(st store.Store, key string, log *logrus.Logger) *Adapter {
	v := validator.New(validator.WithRequiredStructEnabled())
	// notblank ships with validator but is not registered by default.
	_ = v.RegisterValidation("notblank", validators.NotBlank)

	return &Adapter{
		store:    st,
		key:      key,
		log:      log,
		validate: v,
	}
}

// Load reads the collection. A missing slot yields an empty collection; a
// corrupted one is cleared and also yields an empty collection. Only a
// failure to read the slot itself is returned.
func (a *Adapter) Load(ctx context.Context) ([]models.Task, error) {
	raw, err := a.store.Get(ctx, a.key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []models.Task{}, nil
		}
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}

	tasks, err := a.decode([]byte(raw))
	if err != nil {
		a.log.WithError(err).WithField("key", a.key).Warn("discarding corrupted persisted tasks")
		if err := a.store.Delete(ctx, a.key); err != nil {
			a.log.WithError(err).WithField("key", a.key).Error("failed to clear corrupted slot")
		}
		return []models.Task{}, nil
	}

	a.log.WithFields(logrus.Fields{"key": a.key, "count": len(tasks)}).Debug("loaded tasks")
	return tasks, nil
}

// Save overwrites the slot with the full collection.
func (a *Adapter) Save(ctx context.Context, tasks []models.Task) error {
	if tasks == nil {
		tasks = []models.Task{}
	}

	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}

	if err := a.store.Set(ctx, a.key, string(data)); err != nil {
		return fmt.Errorf("failed to write tasks: %w", err)
	}
	return nil
}

// Observer returns a change observer that saves every snapshot. Save
// failures are logged and never reach the caller.
func (a *Adapter) Observer() func([]models.Task) {
	return func(tasks []models.Task) {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()

		if err := a.Save(ctx, tasks); err != nil {
			a.log.WithError(err).WithFields(logrus.Fields{
				"key":   a.key,
				"count": len(tasks),
			}).Error("failed to save tasks")
		}
	}
}

func (a *Adapter) decode(data []byte) ([]models.Task, error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, fmt.Errorf("%w: value is null", ErrCorrupt)
	}

	var stored []storedTask
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	tasks := make([]models.Task, 0, len(stored))
	seen := make(map[int64]struct{}, len(stored))
	for i, st := range stored {
		if err := a.validate.Struct(st); err != nil {
			return nil, fmt.Errorf("%w: task %d: %v", ErrCorrupt, i, err)
		}
		if _, dup := seen[*st.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrCorrupt, *st.ID)
		}
		seen[*st.ID] = struct{}{}

		task := models.Task{
			ID:        *st.ID,
			Text:      *st.Text,
			Completed: *st.Completed,
			CreatedAt: *st.CreatedAt,
		}
		if err := task.Validate(); err != nil {
			return nil, fmt.Errorf("%w: task %d: %v", ErrCorrupt, i, err)
		}
		tasks = append(tasks, task)
	}

	return tasks, nil
}
