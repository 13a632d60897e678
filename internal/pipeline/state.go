package pipeline

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"nlq/internal/intent"
)

// DefaultStateTTL is how long a clarification can wait for its answer.
const DefaultStateTTL = time.Hour

// ErrStateNotFound is returned by Load for unknown or expired request ids.
// The two cases are deliberately indistinguishable.
var ErrStateNotFound = errors.New("pipeline state not found")

// State is a suspended pipeline waiting on clarification answers. It is
// single-use: resuming consumes it whether or not the resume succeeds.
type State struct {
	RequestID     string           `json:"request_id"`
	OriginalQuery string           `json:"original_query"`
	Intent        intent.RawIntent `json:"intent"`
	MissingFields []string         `json:"missing_fields"`
}

// StateStore persists suspended pipelines with a TTL.
type StateStore interface {
	Save(state State) error
	Load(requestID string) (State, error)
	Delete(requestID string) error
}

// ===== IN-MEMORY STORE =====

type memoryEntry struct {
	state     State
	expiresAt time.Time
}

// MemoryStore keeps states in a mutex-guarded map. States die with the
// process; that is acceptable for a single-node deployment and for tests.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates a MemoryStore. ttl <= 0 means DefaultStateTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Save stores a state, resetting its TTL.
func (s *MemoryStore) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[state.RequestID] = memoryEntry{
		state:     state,
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

// Load returns a saved state, or ErrStateNotFound if absent or expired.
func (s *MemoryStore) Load(requestID string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[requestID]
	if !ok {
		return State{}, ErrStateNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, requestID)
		return State{}, ErrStateNotFound
	}
	return entry.state, nil
}

// Delete removes a state. Deleting an absent state is not an error.
func (s *MemoryStore) Delete(requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, requestID)
	return nil
}

// ===== FALLBACK DECORATOR =====

// FallbackStore wraps a durable store with an in-memory fallback. The first
// backend failure flips the store to the fallback for the rest of the process
// lifetime; backend trouble degrades durability, never availability.
// ErrStateNotFound is a real answer, not a backend failure, and passes
// through untouched.
type FallbackStore struct {
	primary  StateStore
	fallback *MemoryStore
	logger   *zap.Logger

	mu       sync.Mutex
	degraded bool
}

// NewFallbackStore wraps primary with an in-memory fallback.
func NewFallbackStore(primary StateStore, fallback *MemoryStore, logger *zap.Logger) *FallbackStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackStore{primary: primary, fallback: fallback, logger: logger}
}

func (s *FallbackStore) useFallback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *FallbackStore) degrade(op string, err error) {
	s.mu.Lock()
	already := s.degraded
	s.degraded = true
	s.mu.Unlock()
	if !already {
		s.logger.Warn("state store backend failed, switching to in-memory fallback",
			zap.String("op", op), zap.Error(err))
	}
}

// Save writes to the primary store, falling back on backend failure.
func (s *FallbackStore) Save(state State) error {
	if !s.useFallback() {
		if err := s.primary.Save(state); err == nil {
			return nil
		} else {
			s.degrade("save", err)
		}
	}
	return s.fallback.Save(state)
}

// Load reads from the primary store, falling back on backend failure.
func (s *FallbackStore) Load(requestID string) (State, error) {
	if !s.useFallback() {
		state, err := s.primary.Load(requestID)
		if err == nil || errors.Is(err, ErrStateNotFound) {
			return state, err
		}
		s.degrade("load", err)
	}
	return s.fallback.Load(requestID)
}

// Delete removes from the primary store, falling back on backend failure.
func (s *FallbackStore) Delete(requestID string) error {
	if !s.useFallback() {
		if err := s.primary.Delete(requestID); err == nil {
			return nil
		} else {
			s.degrade("delete", err)
		}
	}
	return s.fallback.Delete(requestID)
}
