package nearby

import (
	"context"
	"sync"
	"time"

	"github.com/layzeechat/layzee/pkg/network"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[network.Uid]Record
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{records: make(map[network.Uid]Record, 16), ttl: ttl, now: time.Now}
}

func (m *MemoryStore) Upsert(_ context.Context, id network.Uid, p Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.get(id)
	if err != nil {
		r = Record{Id: id}
	}
	r.Point, r.LastActiveAt = p, m.now()
	m.records[id] = r
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id network.Uid) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *MemoryStore) ClaimNearest(_ context.Context, id network.Uid, radius float64, exclude ...network.Uid) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	self, err := m.get(id)
	if err != nil {
		return Record{}, err
	}
	if self.Busy {
		return Record{}, ErrNoMatch
	}
	candidates := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		if !m.expired(r) {
			candidates = append(candidates, r)
		}
	}
	partner, ok := nearest(self, radius, candidates, exclude)
	if !ok {
		return Record{}, ErrNoMatch
	}
	claim := newClaim()
	self.Busy, self.Claim = true, claim
	partner.Busy, partner.Claim = true, claim
	m.records[self.Id], m.records[partner.Id] = self, partner
	return partner, nil
}

func (m *MemoryStore) Release(_ context.Context, claim string) error {
	if claim == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.records {
		if r.Claim == claim {
			r.Busy, r.Claim = false, ""
			m.records[id] = r
		}
	}
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, id network.Uid) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.get(id)
	delete(m.records, id)
	return r, err
}

func (m *MemoryStore) Expire(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, r := range m.records {
		if m.expired(r) {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) get(id network.Uid) (Record, error) {
	r, ok := m.records[id]
	if !ok || m.expired(r) {
		return Record{}, ErrNoRecord
	}
	return r, nil
}

func (m *MemoryStore) expired(r Record) bool {
	return m.ttl > 0 && m.now().Sub(r.LastActiveAt) > m.ttl
}
