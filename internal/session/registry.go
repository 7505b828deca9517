package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxSessions bounds the number of open sessions
const DefaultMaxSessions = 32

// Registry holds independent sessions keyed by id
type Registry struct {
	docs     DocumentService
	analyzer TextAnalyzer
	opts     Options
	max      int

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry. maxSessions <= 0 selects
// DefaultMaxSessions.
func NewRegistry(docs DocumentService, analyzer TextAnalyzer, opts Options, maxSessions int) *Registry {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Registry{
		docs:     docs,
		analyzer: analyzer,
		opts:     opts,
		max:      maxSessions,
		sessions: make(map[string]*Session),
	}
}

// Create opens a new IDLE session
func (r *Registry) Create() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.max {
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManySessions, r.max)
	}

	s := New(uuid.NewString(), r.docs, r.analyzer, r.opts)
	r.sessions[s.ID()] = s
	r.opts.Metrics.SetActiveSessions(len(r.sessions))
	r.opts.Logger.Debug("session created", zap.String("session", s.ID()))
	return s, nil
}

// Get returns the session with the given id
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return s, nil
}

// Close resets and forgets a session
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	s.Reset()
	r.opts.Metrics.SetActiveSessions(n)
	r.opts.Logger.Debug("session closed", zap.String("session", id))
	return nil
}

// CloseAll resets and forgets every session
func (r *Registry) CloseAll() {
	for _, id := range r.IDs() {
		_ = r.Close(id)
	}
}

// Len returns the number of open sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs returns the open session ids in sorted order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
