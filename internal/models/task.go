package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// MaxID is the largest id a task may carry. It stays one below the int64
// limit so the allocator's next value, max(id)+1, cannot overflow.
const MaxID int64 = math.MaxInt64 - 1

// Task represents a single entry in the to-do list.
type Task struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks that the task has valid field values.
func (t *Task) Validate() error {
	if t.ID <= 0 {
		return errors.New("id must be positive")
	}

	if t.ID > MaxID {
		return errors.New("id out of range")
	}

	if strings.TrimSpace(t.Text) == "" {
		return errors.New("text is required")
	}

	if t.CreatedAt.IsZero() {
		return errors.New("createdAt is required")
	}

	return nil
}

// NormalizeText trims surrounding whitespace from user input and replaces
// invalid UTF-8 with U+FFFD, so the stored text is exactly what JSON
// encoding writes.
func NormalizeText(s string) string {
	return strings.TrimSpace(strings.ToValidUTF8(s, "\uFFFD"))
}

// DuplicateKey returns the key used to detect duplicate tasks:
// the trimmed text, case-folded.
func DuplicateKey(s string) string {
	return strings.ToLower(NormalizeText(s))
}

// Filter selects which tasks a view shows.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// ParseFilter converts a user-supplied filter name. An empty string means All.
func ParseFilter(s string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterActive:
		return FilterActive, nil
	case FilterCompleted:
		return FilterCompleted, nil
	default:
		return "", fmt.Errorf("filter must be 'all', 'active', or 'completed', got %q", s)
	}
}

// Matches reports whether the task belongs in a view with this filter.
func (f Filter) Matches(t Task) bool {
	switch f {
	case FilterActive:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	default:
		return true
	}
}

// Counts summarizes the collection.
type Counts struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
}
