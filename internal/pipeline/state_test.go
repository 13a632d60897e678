package pipeline

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nlq/internal/intent"
)

func sampleState(id string) State {
	return State{
		RequestID:     id,
		OriginalQuery: "show me sales trend",
		Intent: intent.RawIntent{
			"intent_type": "trend",
			"metric":      "net sales",
		},
		MissingFields: []string{"time_range"},
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	require.NoError(t, store.Save(sampleState("req-1")))

	got, err := store.Load("req-1")
	require.NoError(t, err)
	assert.Equal(t, "show me sales trend", got.OriginalQuery)
	assert.Equal(t, []string{"time_range"}, got.MissingFields)

	require.NoError(t, store.Delete("req-1"))
	_, err = store.Load("req-1")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	current := time.Now()
	store.now = func() time.Time { return current }

	require.NoError(t, store.Save(sampleState("req-1")))

	current = current.Add(2 * time.Minute)
	_, err := store.Load("req-1")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestMemoryStoreDeleteAbsentIsNoop(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	assert.NoError(t, store.Delete("never-saved"))
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "states.db"), time.Minute)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(sampleState("req-1")))

	got, err := store.Load("req-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, "show me sales trend", got.OriginalQuery)
	assert.Equal(t, "net sales", got.Intent["metric"])
	assert.Equal(t, []string{"time_range"}, got.MissingFields)

	require.NoError(t, store.Delete("req-1"))
	_, err = store.Load("req-1")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestSQLiteStoreSaveOverwrites(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "states.db"), time.Minute)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(sampleState("req-1")))

	updated := sampleState("req-1")
	updated.MissingFields = []string{"metric", "time_range"}
	require.NoError(t, store.Save(updated))

	got, err := store.Load("req-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"metric", "time_range"}, got.MissingFields)
}

func TestSQLiteStoreExpiry(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "states.db"), time.Minute)
	require.NoError(t, err)
	defer store.Close()

	current := time.Now()
	store.now = func() time.Time { return current }
	require.NoError(t, store.Save(sampleState("req-1")))

	current = current.Add(2 * time.Minute)
	_, err = store.Load("req-1")
	assert.ErrorIs(t, err, ErrStateNotFound,
		"expired state must look exactly like an absent one")
}

func TestSQLiteStoreUnknownID(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "states.db"), time.Minute)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Load("nope")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

// failingStore always errors, standing in for a broken backend.
type failingStore struct{}

func (failingStore) Save(State) error          { return errors.New("disk on fire") }
func (failingStore) Load(string) (State, error) { return State{}, errors.New("disk on fire") }
func (failingStore) Delete(string) error       { return errors.New("disk on fire") }

func TestFallbackStoreSwitchesOnBackendFailure(t *testing.T) {
	fallback := NewMemoryStore(time.Minute)
	store := NewFallbackStore(failingStore{}, fallback, nil)

	require.NoError(t, store.Save(sampleState("req-1")))

	got, err := store.Load("req-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", got.RequestID)

	require.NoError(t, store.Delete("req-1"))
	_, err = store.Load("req-1")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestFallbackStorePassesNotFoundThrough(t *testing.T) {
	primary := NewMemoryStore(time.Minute)
	fallback := NewMemoryStore(time.Minute)
	store := NewFallbackStore(primary, fallback, nil)

	_, err := store.Load("unknown")
	assert.ErrorIs(t, err, ErrStateNotFound)
	assert.False(t, store.useFallback(), "a miss is an answer, not a backend failure")
}

func TestFallbackStoreStaysDegraded(t *testing.T) {
	fallback := NewMemoryStore(time.Minute)
	store := NewFallbackStore(failingStore{}, fallback, nil)

	require.NoError(t, store.Save(sampleState("req-1")))
	assert.True(t, store.useFallback())

	// Later operations go straight to the fallback.
	require.NoError(t, store.Save(sampleState("req-2")))
	got, err := store.Load("req-2")
	require.NoError(t, err)
	assert.Equal(t, "req-2", got.RequestID)
}
