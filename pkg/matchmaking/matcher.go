// Package matchmaking pairs participants from the wait queue
// and keeps the pairings.
//
// Nothing here is safe for concurrent use: the owner serializes
// every call with its own lock.
package matchmaking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/layzeechat/layzee/pkg/network"
	"github.com/layzeechat/layzee/pkg/session"
)

// Match is a successful pairing for the requester.
type Match struct {
	PartnerId network.Uid
	// Tag is the common interest, empty for random matches.
	Tag string
}

func (m *Match) HasTag() bool { return m != nil && m.Tag != "" }

// Detached describes a torn down pairing.
type Detached struct {
	Pair
	// Partner is the side that has to be notified.
	Partner network.Uid
}

type Matcher struct {
	sessions *session.Registry
	queue    Queue
	pairs    *Pairings
}

func NewMatcher(sessions *session.Registry) *Matcher {
	return &Matcher{sessions: sessions, pairs: NewPairings()}
}

func (m *Matcher) Sessions() *session.Registry { return m.sessions }
func (m *Matcher) Queue() *Queue               { return &m.queue }
func (m *Matcher) Pairings() *Pairings         { return m.pairs }

// FindMatch resolves a find request of the requester.
//
// Any current pairing of the requester is detached first and
// returned so the caller can notify that partner. With no match
// the requester is left Searching at the queue tail and the match is nil.
func (m *Matcher) FindMatch(id network.Uid, tags []string) (*Match, *Detached, error) {
	s, err := m.sessions.Get(id)
	if err != nil {
		return nil, nil, err
	}

	var detached *Detached
	if s.IsPaired() {
		if detached, err = m.Detach(id); err != nil {
			return nil, nil, err
		}
	}
	m.queue.Remove(id)

	if _, err = m.sessions.Transition(id, session.Searching, session.WithTags(tags)); err != nil {
		return nil, detached, err
	}

	entry, tag, ok := m.queue.Match(id, tags)
	if !ok {
		m.queue.Push(id, tags)
		return nil, detached, nil
	}
	if err = m.Pair(id, entry.Id, ""); err != nil {
		m.queue.Push(id, tags)
		return nil, detached, err
	}
	return &Match{PartnerId: entry.Id, Tag: tag}, detached, nil
}

// Pair links two sessions, both have to be in a state that can become Paired.
// The claim of the geo records is set for proximity pairs only.
func (m *Matcher) Pair(a, b network.Uid, claim string) error {
	sa, err := m.sessions.Get(a)
	if err != nil {
		return err
	}
	sb, err := m.sessions.Get(b)
	if err != nil {
		return err
	}
	if !session.CanTransition(sa.State, session.Paired) || !session.CanTransition(sb.State, session.Paired) {
		return fmt.Errorf("%w: can't pair %v (%v) with %v (%v)",
			session.ErrInvalidTransition, a, sa.State, b, sb.State)
	}
	if err = m.pairs.Add(a, b, claim); err != nil {
		return err
	}
	m.queue.Remove(a)
	m.queue.Remove(b)
	_, errA := m.sessions.Transition(a, session.Paired, session.WithPartner(b))
	_, errB := m.sessions.Transition(b, session.Paired, session.WithPartner(a))
	return errors.Join(errA, errB)
}

// Detach tears down the pairing of id, both sides become Idle.
// It returns nil when there was no pairing.
func (m *Matcher) Detach(id network.Uid) (*Detached, error) {
	pair, ok := m.pairs.Remove(id)
	if !ok {
		return nil, nil
	}
	partner := pair.Other(id)
	var errs []error
	for _, sid := range []network.Uid{id, partner} {
		if !m.sessions.Has(sid) {
			continue
		}
		if _, err := m.sessions.Transition(sid, session.Idle); err != nil {
			errs = append(errs, err)
		}
	}
	return &Detached{Pair: pair, Partner: partner}, errors.Join(errs...)
}

// Dequeue removes id from the wait queue.
func (m *Matcher) Dequeue(id network.Uid) bool { return m.queue.Remove(id) }

// Check verifies the invariants between the sessions, queue and pairings.
func (m *Matcher) Check() error {
	if err := m.pairs.Check(); err != nil {
		return err
	}
	for _, id := range m.queue.Ids() {
		s, err := m.sessions.Get(id)
		if err != nil {
			return fmt.Errorf("queued %v: %w", id, err)
		}
		if s.State != session.Searching {
			return fmt.Errorf("queued %v is %v", id, s.State)
		}
	}
	var err error
	m.sessions.ForEach(func(s session.Session) {
		partner, paired := m.pairs.Partner(s.Id)
		switch {
		case s.IsPaired() != paired:
			err = fmt.Errorf("%v is %v, in pairings: %v", s.Id, s.State, paired)
		case paired && partner != s.PartnerId:
			err = fmt.Errorf("%v partner %v != %v", s.Id, s.PartnerId, partner)
		case s.State == session.Searching && !m.queue.Has(s.Id):
			err = fmt.Errorf("%v is searching but not queued", s.Id)
		}
	})
	return err
}

// NormalizeTags trims the tags, drops empty and repeated ones
// keeping the order, and limits their number and length.
func NormalizeTags(tags []string, maxTags, maxLength int) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if maxLength > 0 && len([]rune(t)) > maxLength {
			t = string([]rune(t)[:maxLength])
		}
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if maxTags > 0 && len(out) == maxTags {
			break
		}
	}
	return out
}
