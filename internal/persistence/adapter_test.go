package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mytodo/internal/models"
	"mytodo/internal/store"
	"mytodo/internal/todo"
)

func setupAdapter(t *testing.T) (*Adapter, *store.SQLiteStore, *logtest.Hook) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log, hook := logtest.NewNullLogger()
	return New(st, DefaultKey, log), st, hook
}

// failingStore fails every operation.
type failingStore struct {
	err error
}

func (f failingStore) Get(context.Context, string) (string, error) { return "", f.err }
func (f failingStore) Set(context.Context, string, string) error { return f.err }
func (f failingStore) Delete(context.Context, string) error { return f.err }
func (f failingStore) Close() error { return nil }

func TestLoad_MissingSlotIsEmpty(t *testing.T) {
	a, _, hook := setupAdapter(t)

	tasks, err := a.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
	assert.Empty(t, hook.AllEntries())
}

func TestSaveThenLoad_RoundTrip(t *testing.T) {
	a, _, _ := setupAdapter(t)
	ctx := context.Background()

	created := time.Date(2024, 1, 2, 3, 4, 5, 600000000, time.UTC)
	want := []models.Task{
		{ID: 1, Text: "Buy milk", Completed: true, CreatedAt: created},
		{ID: 3, Text: "Walk dog", Completed: false, CreatedAt: created.Add(time.Hour)},
		{ID: 2, Text: "Call mum", Completed: false, CreatedAt: created.Add(2 * time.Hour)},
	}

	require.NoError(t, a.Save(ctx, want))

	got, err := a.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSave_WritesJSONArray(t *testing.T) {
	a, st, _ := setupAdapter(t)
	ctx := context.Background()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, a.Save(ctx, []models.Task{{ID: 1, Text: "Buy milk", CreatedAt: created}}))

	raw, err := st.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"text":"Buy milk","completed":false,"createdAt":"2024-01-02T03:04:05Z"}]`, raw)
}

func TestSave_EmptyCollectionWritesEmptyArray(t *testing.T) {
	a, st, _ := setupAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, nil))

	raw, err := st.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}

func TestLoad_AcceptsBrowserTimestamps(t *testing.T) {
	a, st, _ := setupAdapter(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, DefaultKey,
		`[{"id":7,"text":"From the browser","completed":false,"createdAt":"2024-03-01T10:20:30.123Z"}]`))

	tasks, err := a.Load(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, int64(7), tasks[0].ID)
	assert.Equal(t, 123000000, tasks[0].CreatedAt.Nanosecond())
}

func TestLoad_CorruptedSlotIsClearedAndEmpty(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not json", `not json`},
		{"null", `null`},
		{"object", `{"id":1}`},
		{"string", `"tasks"`},
		{"array of numbers", `[1,2,3]`},
		{"null element", `[null]`},
		{"missing id", `[{"text":"a","completed":false,"createdAt":"2024-01-01T00:00:00Z"}]`},
		{"missing completed", `[{"id":1,"text":"a","createdAt":"2024-01-01T00:00:00Z"}]`},
		{"missing createdAt", `[{"id":1,"text":"a","completed":false}]`},
		{"string id", `[{"id":"1","text":"a","completed":false,"createdAt":"2024-01-01T00:00:00Z"}]`},
		{"zero id", `[{"id":0,"text":"a","completed":false,"createdAt":"2024-01-01T00:00:00Z"}]`},
		{"negative id beside valid task", `[{"id":1,"text":"keep me","completed":false,"createdAt":"2024-01-01T00:00:00Z"},{"id":-9223372036854775808,"text":"b","completed":false,"createdAt":"2024-01-01T00:00:00Z"}]`},
		{"int64 max id", `[{"id":9223372036854775807,"text":"a","completed":false,"createdAt":"2024-01-01T00:00:00Z"}]`},
		{"blank text", `[{"id":1,"text":"  ","completed":false,"createdAt":"2024-01-01T00:00:00Z"}]`},
		{"zero timestamp", `[{"id":1,"text":"a","completed":false,"createdAt":"0001-01-01T00:00:00Z"}]`},
		{"bad timestamp", `[{"id":1,"text":"a","completed":false,"createdAt":"yesterday"}]`},
		{"duplicate ids", `[{"id":1,"text":"a","completed":false,"createdAt":"2024-01-01T00:00:00Z"},{"id":1,"text":"b","completed":false,"createdAt":"2024-01-01T00:00:00Z"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, st, hook := setupAdapter(t)
			ctx := context.Background()
			require.NoError(t, st.Set(ctx, DefaultKey, tt.value))

			tasks, err := a.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, tasks)

			_, err = st.Get(ctx, DefaultKey)
			assert.ErrorIs(t, err, store.ErrNotFound, "corrupted slot should be cleared")

			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, logrus.WarnLevel, entry.Level)
			logged, ok := entry.Data[logrus.ErrorKey].(error)
			require.True(t, ok, "warning should carry the decode error")
			assert.ErrorIs(t, logged, ErrCorrupt)
		})
	}
}

func TestLoad_MaxIDSurvivesRestart(t *testing.T) {
	a, _, hook := setupAdapter(t)
	ctx := context.Background()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, a.Save(ctx, []models.Task{
		{ID: 1, Text: "keep me", CreatedAt: created},
		{ID: models.MaxID, Text: "big", CreatedAt: created},
	}))

	loaded, err := a.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	tasks := todo.New(todo.WithObserver(a.Observer()))
	require.NoError(t, tasks.Load(loaded))
	_, err = tasks.Add("new")
	require.ErrorIs(t, err, todo.ErrIDsExhausted)

	reloaded, err := a.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, loaded, reloaded)
	assert.Empty(t, hook.AllEntries())
}

func TestSaveThenLoad_InvalidUTF8TextRoundTrips(t *testing.T) {
	a, _, _ := setupAdapter(t)
	ctx := context.Background()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tasks := todo.New(
		todo.WithClock(func() time.Time { return created }),
		todo.WithObserver(a.Observer()),
	)
	require.NoError(t, tasks.Load(nil))
	added, err := tasks.Add("bad\xffbyte")
	require.NoError(t, err)

	loaded, err := a.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, added, loaded)
}

func TestLoad_ReadFailureIsReturned(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	boom := errors.New("disk on fire")
	a := New(failingStore{err: boom}, DefaultKey, log)

	_, err := a.Load(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestObserver_LogsSaveFailure(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	a := New(failingStore{err: errors.New("read-only")}, DefaultKey, log)

	assert.NotPanics(t, func() {
		a.Observer()([]models.Task{{ID: 1, Text: "a", CreatedAt: time.Now()}})
	})

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "failed to save tasks", hook.LastEntry().Message)
}

func TestObserver_PersistsTaskStoreChanges(t *testing.T) {
	a, _, _ := setupAdapter(t)
	ctx := context.Background()

	loaded, err := a.Load(ctx)
	require.NoError(t, err)

	first := todo.New(todo.WithObserver(a.Observer()))
	require.NoError(t, first.Load(loaded))
	first.Add("Buy milk")
	first.Add("Walk dog")
	first.Toggle(2)
	first.Delete(1)

	reloaded, err := a.Load(ctx)
	require.NoError(t, err)

	second := todo.New()
	require.NoError(t, second.Load(reloaded))
	require.Len(t, second.Tasks(), 1)
	assert.True(t, second.Tasks()[0].Completed)

	tasks, err := second.Add("Feed cat")
	require.NoError(t, err)
	assert.Equal(t, int64(3), tasks[1].ID, "next id continues past the loaded max")
}
