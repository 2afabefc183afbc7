// Package session keeps the matchmaking state of every connected participant.
package session

import (
	"time"

	"github.com/layzeechat/layzee/pkg/network"
)

type State uint8

const (
	// Idle is a connected participant who doesn't look for anyone.
	Idle State = iota
	// Queued is a participant with a proximity search in flight.
	Queued
	// Searching is a participant waiting in the random/tag queue.
	Searching
	// Paired is a participant in a conversation.
	Paired
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Queued:
		return "queued"
	case Searching:
		return "searching"
	case Paired:
		return "paired"
	default:
		return "unknown"
	}
}

type Point struct {
	Lat float64
	Lng float64
}

type Session struct {
	Id        network.Uid
	State     State
	Tags      []string
	PartnerId network.Uid
	Location  *Point
	CreatedAt time.Time

	// gen changes every time the session enters Queued,
	// so a late proximity result can tell it was superseded.
	gen uint64
	// joins counts the proximity pool joins.
	joins uint64
}

func (s Session) Gen() uint64 { return s.gen }

func (s Session) Joins() uint64 { return s.joins }

func (s Session) IsPaired() bool { return s.State == Paired }

type Option func(*Session)

// WithPartner sets the partner, required when entering Paired.
func WithPartner(id network.Uid) Option { return func(s *Session) { s.PartnerId = id } }

// WithTags replaces the last used interest tags.
func WithTags(tags []string) Option { return func(s *Session) { s.Tags = tags } }

// WithLocation replaces the last known location.
func WithLocation(p *Point) Option { return func(s *Session) { s.Location = p } }

var transitions = map[State][]State{
	Idle:      {Searching, Queued},
	Searching: {Searching, Paired, Idle, Queued},
	Queued:    {Paired, Idle, Searching},
	Paired:    {Searching, Idle},
}

// CanTransition tells if the state machine allows from -> to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
