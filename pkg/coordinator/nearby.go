package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/layzeechat/layzee/pkg/api"
	"github.com/layzeechat/layzee/pkg/logger"
	"github.com/layzeechat/layzee/pkg/nearby"
	"github.com/layzeechat/layzee/pkg/network"
	"github.com/layzeechat/layzee/pkg/session"
)

// claimAttempts bounds the claims of one search whose candidates turn out unusable.
const claimAttempts = 3

// JoinNearby puts the user into the proximity pool, invalid locations are ignored.
// A user talking to a proximity partner keeps its record busy.
func (m *Matchmaker) JoinNearby(ctx context.Context, id network.Uid, loc *api.Location) error {
	if !loc.Valid() {
		return nil
	}
	m.mu.Lock()
	_, err := m.matcher.Sessions().Join(id)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	ctx, cancel := m.storeContext(ctx)
	defer cancel()
	if err = m.store.Upsert(ctx, id, toPoint(loc)); err != nil {
		m.metrics.nearbyErrors.Inc()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	m.mu.Lock()
	known := m.matcher.Sessions().Has(id)
	m.mu.Unlock()
	if !known {
		// disconnected while the store was busy
		m.forget(id, "")
		return ErrNotFound
	}
	m.log.Debug().Str(logger.ClientField, id.Short()).Msgf("Joined the pool at %v,%v", loc.Lat, loc.Lng)
	return nil
}

// search identifies one proximity search of a user.
type search struct {
	id network.Uid
	// gen is the session generation the search runs under
	gen uint64
	// joins is the pool join count at the start
	joins uint64
}

// FindNearby pairs the user with the closest free user of the pool.
//
// The user is Queued while the store is asked, anything that changes
// the state of the user in the meantime makes the result stale.
// A stale result is dropped and its claim is released.
func (m *Matchmaker) FindNearby(ctx context.Context, id network.Uid, radius float64, loc *api.Location) (err error) {
	radius = m.radius(radius)

	var (
		q       = search{id: id}
		release string
	)
	m.locked(func(out *outbox) {
		var s session.Session
		if s, err = m.matcher.Sessions().Get(id); err != nil {
			return
		}
		if s.IsPaired() {
			d, derr := m.matcher.Detach(id)
			if derr != nil {
				err = derr
				return
			}
			release = m.detached(d, out)
		}
		m.matcher.Dequeue(id)
		if s.State == session.Queued {
			// a repeated search supersedes the one in flight
			m.toIdle(id)
		}
		var opts []session.Option
		if loc.Valid() {
			opts = append(opts, session.WithLocation(&session.Point{Lat: loc.Lat, Lng: loc.Lng}))
		}
		if s, err = m.matcher.Sessions().Transition(id, session.Queued, opts...); err != nil {
			return
		}
		q.gen, q.joins = s.Gen(), s.Joins()
	})
	if err != nil {
		m.release(release)
		return err
	}

	ctx, cancel := m.storeContext(ctx)
	defer cancel()

	m.releaseCtx(ctx, release)
	if loc.Valid() {
		// a partner may have claimed the record meanwhile, the upsert keeps that claim
		if err = m.store.Upsert(ctx, id, toPoint(loc)); err != nil {
			return m.nearbyFailed(q, err)
		}
	}

	var exclude []network.Uid
	for attempt := 1; ; attempt++ {
		partner, err := m.store.ClaimNearest(ctx, id, radius, exclude...)
		switch {
		case errors.Is(err, nearby.ErrNoRecord), errors.Is(err, nearby.ErrNoMatch):
			m.noNearby(q)
			return nil
		case err != nil:
			return m.nearbyFailed(q, err)
		}

		var accepted, current, gone bool
		last := attempt == claimAttempts
		m.locked(func(out *outbox) {
			if current = m.isCurrent(q); !current {
				return
			}
			gone = !m.matcher.Sessions().Has(partner.Id)
			if accepted = m.pairNearby(id, partner.Id, partner.Claim); accepted {
				m.paired(id, partner.Id, NearbyTag, matchNearby, out)
				return
			}
			if last {
				m.toIdle(id)
				out.notify(m.crowd.findById(id), (*User).SendNoNearbyFound)
			}
		})
		if accepted {
			return nil
		}
		m.log.Debug().Str(logger.ClientField, id.Short()).
			Msgf("Nearby result with %v dropped, current: %v", partner.Id.Short(), current)
		if gone {
			m.remove(ctx, partner.Id)
		}
		m.releaseCtx(ctx, partner.Claim)
		if !current {
			m.settle(q)
			return nil
		}
		if last {
			return nil
		}
		exclude = append(exclude, partner.Id)
	}
}

func (m *Matchmaker) remove(ctx context.Context, id network.Uid) {
	if _, err := m.store.Remove(ctx, id); err != nil && !errors.Is(err, nearby.ErrNoRecord) {
		m.metrics.nearbyErrors.Inc()
		m.log.Warn().Err(err).Msgf("couldn't remove geo record of %v", id)
	}
}

// settle removes the record of a user who left or disconnected
// during a superseded search, the search might have written it back.
// A user who joined the pool again since the search started keeps it.
func (m *Matchmaker) settle(q search) {
	m.mu.Lock()
	s, err := m.matcher.Sessions().Get(q.id)
	left := err != nil || (s.State == session.Idle && s.Joins() == q.joins)
	m.mu.Unlock()
	if !left {
		return
	}
	ctx, cancel := m.storeContext(context.Background())
	defer cancel()
	m.remove(ctx, q.id)
}

// pairNearby checks the claimed partner can still talk and pairs it,
// a partner that only waits in the pool is taken from Idle through Queued.
func (m *Matchmaker) pairNearby(id, partner network.Uid, claim string) bool {
	ps, err := m.matcher.Sessions().Get(partner)
	if err != nil || ps.IsPaired() {
		return false
	}
	if ps.State == session.Idle {
		if _, err = m.matcher.Sessions().Transition(partner, session.Queued); err != nil {
			return false
		}
	}
	if err = m.matcher.Pair(id, partner, claim); err != nil {
		m.log.Error().Err(err).Msgf("nearby pair %v <-> %v", id, partner)
		if ps.State == session.Idle {
			m.toIdle(partner)
		}
		return false
	}
	return true
}

// isCurrent tells the user still waits for the proximity search q.
func (m *Matchmaker) isCurrent(q search) bool {
	s, err := m.matcher.Sessions().Get(q.id)
	return err == nil && s.State == session.Queued && s.Gen() == q.gen
}

func (m *Matchmaker) toIdle(id network.Uid) {
	if _, err := m.matcher.Sessions().Transition(id, session.Idle); err != nil {
		m.log.Error().Err(err).Msg("back to idle")
	}
}

func (m *Matchmaker) noNearby(q search) {
	current := true
	m.locked(func(out *outbox) {
		if current = m.isCurrent(q); !current {
			return
		}
		m.toIdle(q.id)
		out.notify(m.crowd.findById(q.id), (*User).SendNoNearbyFound)
	})
	if !current {
		m.settle(q)
	}
}

// nearbyFailed reports the store failure to the requester only.
func (m *Matchmaker) nearbyFailed(q search, err error) error {
	var current bool
	m.locked(func(out *outbox) {
		if current = m.isCurrent(q); !current {
			return
		}
		m.toIdle(q.id)
		out.notify(m.crowd.findById(q.id), (*User).SendNearbyError)
	})
	if !current {
		m.settle(q)
		return nil
	}
	m.metrics.nearbyErrors.Inc()
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (m *Matchmaker) radius(r float64) float64 {
	if r <= 0 {
		r = m.conf.Nearby.DefaultRadius
	}
	if limit := m.conf.Nearby.MaxRadius; limit > 0 && r > limit {
		r = limit
	}
	return r
}

func toPoint(l *api.Location) nearby.Point { return nearby.Point{Lat: l.Lat, Lng: l.Lng} }
