package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/layzeechat/layzee/pkg/network"
)

var (
	ErrNotFound          = errors.New("session not found")
	ErrDuplicateSession  = errors.New("duplicate session")
	ErrInvalidTransition = errors.New("invalid transition")
)

// Registry is the single source of truth for sessions.
// It is not safe for concurrent use, the owner guards it.
type Registry struct {
	sessions map[network.Uid]*Session
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[network.Uid]*Session, 16), now: time.Now}
}

func (r *Registry) Create(id network.Uid) (Session, error) {
	if _, ok := r.sessions[id]; ok {
		return Session{}, fmt.Errorf("%w: %v", ErrDuplicateSession, id)
	}
	s := &Session{Id: id, State: Idle, CreatedAt: r.now()}
	r.sessions[id] = s
	return *s, nil
}

// Get returns a copy of the session.
func (r *Registry) Get(id network.Uid) (Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return *s, nil
}

func (r *Registry) Has(id network.Uid) bool { _, ok := r.sessions[id]; return ok }

// Transition moves the session into the new state if the move is legal.
// The partner is kept only in Paired.
func (r *Registry) Transition(id network.Uid, to State, opts ...Option) (Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	if !CanTransition(s.State, to) {
		return *s, fmt.Errorf("%w: %v %v -> %v", ErrInvalidTransition, id, s.State, to)
	}
	next := *s
	for _, opt := range opts {
		opt(&next)
	}
	if to == Paired {
		if next.PartnerId == network.EmptyUid || next.PartnerId == id {
			return *s, fmt.Errorf("%w: %v needs a partner to be paired", ErrInvalidTransition, id)
		}
	} else {
		next.PartnerId = network.EmptyUid
	}
	if to == Queued {
		next.gen++
	}
	next.State = to
	*s = next
	return next, nil
}

// Join notes that the participant joined the proximity pool again.
func (r *Registry) Join(id network.Uid) (Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	s.joins++
	return *s, nil
}

// Destroy removes the session, it's fine to call it for unknown ids.
func (r *Registry) Destroy(id network.Uid) bool {
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

func (r *Registry) Len() int { return len(r.sessions) }

// ForEach calls fn with a copy of every session.
func (r *Registry) ForEach(fn func(s Session)) {
	for _, s := range r.sessions {
		fn(*s)
	}
}
