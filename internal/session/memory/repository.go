// Package memory holds live roll drafting sessions for the lifetime of
// the process. A restart drops every draft, which callers observe as an
// expired session.
package memory

import (
	"sync"

	"github.com/louisbranch/mist-engine/internal/session/domain"
	"github.com/louisbranch/mist-engine/internal/tags"
)

// Repository stores sessions keyed by creator and purpose. Get and Put
// exchange deep copies so handlers never share draft state; each mutation
// reloads the session, applies its change, and writes it back.
type Repository struct {
	mu       sync.Mutex
	sessions map[domain.Key]domain.Session
}

// NewRepository creates an empty session repository.
func NewRepository() *Repository {
	return &Repository{sessions: make(map[domain.Key]domain.Session)}
}

// Get returns the session stored under the key.
func (r *Repository) Get(key domain.Key) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[key]
	if !ok {
		return domain.Session{}, false
	}
	return clone(session), true
}

// Put stores the session under its key, replacing any previous draft.
func (r *Repository) Put(session domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.Key] = clone(session)
}

// Delete removes the session stored under the key.
func (r *Repository) Delete(key domain.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}

// Len reports the number of live sessions.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func clone(session domain.Session) domain.Session {
	session.Help = tags.CloneEntities(session.Help)
	session.Hinder = tags.CloneEntities(session.Hinder)
	if session.BurnedTag != nil {
		burned := *session.BurnedTag
		session.BurnedTag = &burned
	}
	if session.ExcludedTags != nil {
		excluded := make([]tags.Key, len(session.ExcludedTags))
		copy(excluded, session.ExcludedTags)
		session.ExcludedTags = excluded
	}
	return session
}
