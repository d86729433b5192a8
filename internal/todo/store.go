// Package todo holds the in-memory task collection and its mutation rules.
package todo

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"mytodo/internal/models"
)

var (
	// ErrDuplicateTask is returned by Add when a task with the same
	// normalized text already exists.
	ErrDuplicateTask = errors.New("task already exists")
	// ErrConfirmationRequired is returned by ClearCompleted when the caller
	// has not confirmed the deletion.
	ErrConfirmationRequired = errors.New("clearing completed tasks requires confirmation")
	// ErrNotLoaded is returned by mutating operations before Load.
	ErrNotLoaded = errors.New("task store not loaded")
	// ErrAlreadyLoaded is returned by a second call to Load.
	ErrAlreadyLoaded = errors.New("task store already loaded")
	// ErrInvalidID is returned by Load for an id outside 1..models.MaxID.
	ErrInvalidID = errors.New("task id out of range")
	// ErrIDsExhausted is returned by Add once models.MaxID has been issued.
	ErrIDsExhausted = errors.New("no task ids left")
)

// Observer is notified with a snapshot of the collection after every change.
type Observer func(tasks []models.Task)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithObserver registers the change observer.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// Store owns the ordered task collection, the id allocator and the active filter.
type Store struct {
	mu       sync.Mutex
	tasks    []models.Task
	nextID   int64
	filter   models.Filter
	loaded   bool
	now      func() time.Time
	observer Observer
}

// New creates an empty, not yet loaded Store.
func New(opts ...Option) *Store {
	s := &Store{
		nextID: 1,
		filter: models.FilterAll,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the collection with tasks and derives the next id as
// max(id)+1. It must be called once before any mutation is accepted.
func (s *Store) Load(tasks []models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return ErrAlreadyLoaded
	}

	nextID := int64(1)
	for _, t := range tasks {
		if t.ID <= 0 || t.ID > models.MaxID {
			return fmt.Errorf("%w: %d", ErrInvalidID, t.ID)
		}
		if t.ID >= nextID {
			nextID = t.ID + 1
		}
	}

	s.tasks = slices.Clone(tasks)
	s.nextID = nextID
	s.loaded = true
	return nil
}

// Add appends a new active task. Empty text is ignored.
func (s *Store) Add(rawText string) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return nil, ErrNotLoaded
	}

	text := models.NormalizeText(rawText)
	if text == "" {
		return s.snapshot(), nil
	}

	key := models.DuplicateKey(text)
	for _, t := range s.tasks {
		if models.DuplicateKey(t.Text) == key {
			return s.snapshot(), fmt.Errorf("%w: %q", ErrDuplicateTask, text)
		}
	}

	if s.nextID > models.MaxID {
		return s.snapshot(), ErrIDsExhausted
	}

	s.tasks = append(s.tasks, models.Task{
		ID:        s.nextID,
		Text:      text,
		Completed: false,
		CreatedAt: s.now(),
	})
	s.nextID++

	return s.changed(), nil
}

// Toggle flips the completed flag of the task with the given id.
func (s *Store) Toggle(id int64) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return nil, ErrNotLoaded
	}

	i := s.indexOf(id)
	if i < 0 {
		return s.snapshot(), nil
	}
	s.tasks[i].Completed = !s.tasks[i].Completed

	return s.changed(), nil
}

// Edit replaces the text of the task with the given id. The duplicate
// check applied by Add is not applied here.
func (s *Store) Edit(id int64, newText string) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return nil, ErrNotLoaded
	}

	text := models.NormalizeText(newText)
	if text == "" {
		return s.snapshot(), nil
	}

	i := s.indexOf(id)
	if i < 0 || s.tasks[i].Text == text {
		return s.snapshot(), nil
	}
	s.tasks[i].Text = text

	return s.changed(), nil
}

// Delete removes the task with the given id.
func (s *Store) Delete(id int64) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return nil, ErrNotLoaded
	}

	i := s.indexOf(id)
	if i < 0 {
		return s.snapshot(), nil
	}
	s.tasks = slices.Delete(s.tasks, i, i+1)

	return s.changed(), nil
}

// ClearCompleted removes every completed task. The caller must obtain the
// user's confirmation first and pass confirmed=true.
func (s *Store) ClearCompleted(confirmed bool) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return nil, ErrNotLoaded
	}
	if !confirmed {
		return s.snapshot(), ErrConfirmationRequired
	}

	before := len(s.tasks)
	s.tasks = slices.DeleteFunc(s.tasks, func(t models.Task) bool { return t.Completed })
	if len(s.tasks) == before {
		return s.snapshot(), nil
	}

	return s.changed(), nil
}

// SetFilter sets the active filter.
func (s *Store) SetFilter(f models.Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
}

// Filter returns the active filter.
func (s *Store) Filter() models.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// FilteredView returns a lazy sequence of the tasks matching the active
// filter, in collection order. The sequence can be ranged over repeatedly.
func (s *Store) FilteredView() iter.Seq[models.Task] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return viewOf(s.tasks, s.filter)
}

// ViewOf is like FilteredView but uses f instead of the active filter.
func (s *Store) ViewOf(f models.Filter) iter.Seq[models.Task] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return viewOf(s.tasks, f)
}

// Tasks returns a copy of the full collection.
func (s *Store) Tasks() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Counts returns the total, active and completed task counts.
func (s *Store) Counts() models.Counts {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := models.Counts{Total: len(s.tasks)}
	for _, t := range s.tasks {
		if t.Completed {
			c.Completed++
		}
	}
	c.Active = c.Total - c.Completed
	return c
}

// viewOf copies tasks so ranging over the sequence never races with a
// later mutation of the store.
func viewOf(tasks []models.Task, f models.Filter) iter.Seq[models.Task] {
	src := slices.Clone(tasks)
	return func(yield func(models.Task) bool) {
		for _, t := range src {
			if !f.Matches(t) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

func (s *Store) indexOf(id int64) int {
	return slices.IndexFunc(s.tasks, func(t models.Task) bool { return t.ID == id })
}

// snapshot is never nil so an empty collection serializes as [].
func (s *Store) snapshot() []models.Task {
	out := make([]models.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// changed notifies the observer while the lock is held so saves happen in
// mutation order, and returns the new snapshot.
func (s *Store) changed() []models.Task {
	snap := s.snapshot()
	if s.observer != nil {
		s.observer(s.snapshot())
	}
	return snap
}
