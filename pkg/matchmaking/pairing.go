package matchmaking

import (
	"errors"
	"fmt"

	"github.com/layzeechat/layzee/pkg/network"
)

var ErrAlreadyPaired = errors.New("already paired")

type Pair struct {
	A, B network.Uid
	// Nearby marks pairs made by proximity, they hold busy geo records.
	Nearby bool
	// Claim is the geo store claim of a proximity pair.
	Claim string
}

// Other returns the other side of the pair.
func (p Pair) Other(id network.Uid) network.Uid {
	if p.A == id {
		return p.B
	}
	return p.A
}

// Pairings is a symmetric partner map, every key's value
// maps back to the key.
type Pairings struct {
	partners map[network.Uid]network.Uid
	claims   map[network.Uid]string
}

func NewPairings() *Pairings {
	return &Pairings{
		partners: make(map[network.Uid]network.Uid, 16),
		claims:   make(map[network.Uid]string, 16),
	}
}

// Add pairs a with b, a non-empty claim makes it a proximity pair.
func (p *Pairings) Add(a, b network.Uid, claim string) error {
	if a == b {
		return fmt.Errorf("%w: %v with itself", ErrAlreadyPaired, a)
	}
	if _, ok := p.partners[a]; ok {
		return fmt.Errorf("%w: %v", ErrAlreadyPaired, a)
	}
	if _, ok := p.partners[b]; ok {
		return fmt.Errorf("%w: %v", ErrAlreadyPaired, b)
	}
	p.partners[a], p.partners[b] = b, a
	if claim != "" {
		p.claims[a], p.claims[b] = claim, claim
	}
	return nil
}

func (p *Pairings) Partner(id network.Uid) (network.Uid, bool) {
	partner, ok := p.partners[id]
	return partner, ok
}

// IsNearby tells id is in a pair made by proximity.
func (p *Pairings) IsNearby(id network.Uid) bool { return p.claims[id] != "" }

// Remove drops both directions of the pair of id.
func (p *Pairings) Remove(id network.Uid) (Pair, bool) {
	partner, ok := p.partners[id]
	if !ok {
		return Pair{}, false
	}
	claim := p.claims[id]
	pair := Pair{A: id, B: partner, Nearby: claim != "", Claim: claim}
	delete(p.partners, id)
	delete(p.partners, partner)
	delete(p.claims, id)
	delete(p.claims, partner)
	return pair, true
}

func (p *Pairings) Len() int { return len(p.partners) }

// Check verifies the map is a perfect involution.
func (p *Pairings) Check() error {
	for a, b := range p.partners {
		if a == b {
			return fmt.Errorf("%v is paired with itself", a)
		}
		if back, ok := p.partners[b]; !ok || back != a {
			return fmt.Errorf("one-sided pair %v -> %v -> %v", a, b, back)
		}
		if p.claims[a] != p.claims[b] {
			return fmt.Errorf("asymmetric claim %v <-> %v", a, b)
		}
	}
	return nil
}
