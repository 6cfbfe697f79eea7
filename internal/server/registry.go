package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"screenline/internal/store"
	"screenline/internal/wizard"
)

// ErrSessionNotFound is returned for session ids with no live session and
// no persisted drafts to rehydrate from.
var ErrSessionNotFound = errors.New("session not found")

// sessionHandle serializes access to one wizard session. The wizard itself
// assumes a single logical caller; the handle provides that under HTTP
// concurrency.
type sessionHandle struct {
	mu   sync.Mutex
	sess *wizard.Session
}

// Registry owns the live wizard sessions and maps each to its own scoped
// draft store. Sessions survive process restarts through those drafts: a
// GET on an unknown id rehydrates from persisted state when any exists.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*sessionHandle

	// NewStore yields the draft store scoped to one session id.
	NewStore func(id string) store.Store
	// Quiet overrides the draft debounce period, mainly for tests.
	Quiet time.Duration
}

func NewRegistry(newStore func(id string) store.Store) *Registry {
	return &Registry{
		sessions: make(map[string]*sessionHandle),
		NewStore: newStore,
	}
}

// Create mints a fresh session id and an empty session behind it.
func (r *Registry) Create(ctx context.Context) (string, *wizard.Session) {
	id := uuid.New().String()
	sess := wizard.New(wizard.Options{Store: r.NewStore(id), Quiet: r.Quiet})

	r.mu.Lock()
	r.sessions[id] = &sessionHandle{sess: sess}
	r.mu.Unlock()
	return id, sess
}

// acquire returns the handle for id with its lock held. Unknown ids are
// rehydrated from the scoped store when it holds any draft.
func (r *Registry) acquire(ctx context.Context, id string) (*sessionHandle, error) {
	r.mu.Lock()
	h, ok := r.sessions[id]
	if !ok {
		st := r.NewStore(id)
		if !hasAnyDraft(ctx, st) {
			r.mu.Unlock()
			return nil, ErrSessionNotFound
		}
		sess := wizard.New(wizard.Options{Store: st, Quiet: r.Quiet})
		sess.Restore(ctx)
		h = &sessionHandle{sess: sess}
		r.sessions[id] = h
	}
	r.mu.Unlock()

	h.mu.Lock()
	return h, nil
}

// With runs fn against the session for id, holding its lock.
func (r *Registry) With(ctx context.Context, id string, fn func(sess *wizard.Session) error) error {
	h, err := r.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer h.mu.Unlock()
	return fn(h.sess)
}

func hasAnyDraft(ctx context.Context, st store.Store) bool {
	for _, key := range []string{store.KeyStepDraft, store.KeyProfileDraft, store.KeyAnswersDraft} {
		var raw json.RawMessage
		if found, err := st.Load(ctx, key, &raw); err == nil && found {
			return true
		}
	}
	return false
}
