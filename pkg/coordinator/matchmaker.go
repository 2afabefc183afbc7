package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/layzeechat/layzee/pkg/config"
	"github.com/layzeechat/layzee/pkg/logger"
	"github.com/layzeechat/layzee/pkg/matchmaking"
	"github.com/layzeechat/layzee/pkg/nearby"
	"github.com/layzeechat/layzee/pkg/network"
	"github.com/layzeechat/layzee/pkg/session"
)

// Matchmaker owns the sessions, the queue and the pairings
// of all connected users.
//
// Every state change happens under one lock. The events produced by a change
// are collected into an outbox and sent after the state lock is handed over
// to the send lock, so the users see them in the order of the changes.
// The geospatial store is never called under the state lock.
type Matchmaker struct {
	mu      sync.Mutex
	sendMu  sync.Mutex
	matcher *matchmaking.Matcher
	crowd   Crowd

	store   nearby.Store
	conf    config.CoordinatorConfig
	metrics *Metrics
	reports *Reports
	log     *logger.Logger
}

type outbox []func()

func (o *outbox) push(fn func()) { *o = append(*o, fn) }

// notify queues the event for u, nil users are skipped.
func (o *outbox) notify(u *User, fn func(u *User)) {
	if u != nil {
		o.push(func() { fn(u) })
	}
}

func NewMatchmaker(conf config.CoordinatorConfig, store nearby.Store, metrics *Metrics, log *logger.Logger) *Matchmaker {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	log = log.Extend(log.With().Str(logger.ModuleField, "mm"))
	return &Matchmaker{
		matcher: matchmaking.NewMatcher(session.NewRegistry()),
		crowd:   NewCrowd(),
		store:   store,
		conf:    conf,
		metrics: metrics,
		reports: NewReports(log, metrics.reports),
		log:     log,
	}
}

// locked runs fn under the state lock and sends what it queued.
func (m *Matchmaker) locked(fn func(out *outbox)) {
	var out outbox
	m.mu.Lock()
	fn(&out)
	m.updateGauges()
	m.sendMu.Lock()
	m.mu.Unlock()
	for _, send := range out {
		send()
	}
	m.sendMu.Unlock()
}

func (m *Matchmaker) updateGauges() {
	m.metrics.online.Set(float64(m.matcher.Sessions().Len()))
	m.metrics.queue.Set(float64(m.matcher.Queue().Len()))
	m.metrics.pairs.Set(float64(m.matcher.Pairings().Len() / 2))
}

// Connect registers a new user, it gets its id and everyone gets the new count.
func (m *Matchmaker) Connect(u *User) (err error) {
	m.locked(func(out *outbox) {
		if _, err = m.matcher.Sessions().Create(u.Id); err != nil {
			return
		}
		m.crowd.add(u)
		ice := m.conf.Webrtc.IceServers
		out.notify(u, func(u *User) { u.SendMe(ice) })
		m.broadcastUserCount(out)
	})
	if err == nil {
		u.log.Info().Msg("Connected")
	}
	return
}

func (m *Matchmaker) broadcastUserCount(out *outbox) {
	n := m.crowd.Len()
	m.crowd.each(func(u *User) { out.notify(u, func(u *User) { u.SendUserCount(n) }) })
}

// Find matches the user by the tags with someone from the queue
// or puts the user into the queue.
func (m *Matchmaker) Find(id network.Uid, tags []string) (err error) {
	tags = matchmaking.NormalizeTags(tags, m.conf.Matchmaking.MaxTags, m.conf.Matchmaking.MaxTagLength)
	var claim string
	m.locked(func(out *outbox) { claim, err = m.find(id, tags, out) })
	m.release(claim)
	return
}

// Next is the find with the last used tags.
func (m *Matchmaker) Next(id network.Uid) (err error) {
	var claim string
	m.locked(func(out *outbox) {
		var s session.Session
		if s, err = m.matcher.Sessions().Get(id); err != nil {
			return
		}
		claim, err = m.find(id, s.Tags, out)
	})
	m.release(claim)
	return
}

func (m *Matchmaker) find(id network.Uid, tags []string, out *outbox) (claim string, err error) {
	match, detached, err := m.matcher.FindMatch(id, tags)
	claim = m.detached(detached, out)
	if err != nil {
		return claim, err
	}
	if match == nil {
		m.log.Debug().Str(logger.ClientField, id.Short()).Strs("tags", tags).
			Msgf("Waiting in the queue of %v", m.matcher.Queue().Len())
		return claim, nil
	}
	kind := matchRandom
	if match.HasTag() {
		kind = matchTag
	}
	m.paired(id, match.PartnerId, match.Tag, kind, out)
	return claim, nil
}

// paired queues partnerFound for both sides, the requester is the initiator.
func (m *Matchmaker) paired(requester, partner network.Uid, tag, kind string, out *outbox) {
	m.metrics.matches.WithLabelValues(kind).Inc()
	m.log.Info().Msgf("Pair %v <-> %v (%v %v)", requester.Short(), partner.Short(), kind, tag)
	out.notify(m.crowd.findById(requester), func(u *User) { u.SendPartnerFound(partner, true, tag) })
	out.notify(m.crowd.findById(partner), func(u *User) { u.SendPartnerFound(requester, false, tag) })
}

// detached notifies the partner of a torn down pairing and
// returns the geo claim to free for proximity pairs.
func (m *Matchmaker) detached(d *matchmaking.Detached, out *outbox) string {
	if d == nil {
		return ""
	}
	out.notify(m.crowd.findById(d.Partner), (*User).SendPartnerDisconnected)
	return d.Claim
}

// Leave ends the search or the conversation of the user, the user stays connected.
func (m *Matchmaker) Leave(id network.Uid) (err error) {
	var claim string
	m.locked(func(out *outbox) {
		var s session.Session
		if s, err = m.matcher.Sessions().Get(id); err != nil {
			return
		}
		claim = m.teardown(s, out)
		if s.State != session.Idle && s.State != session.Paired {
			_, err = m.matcher.Sessions().Transition(id, session.Idle)
		}
	})
	if errors.Is(err, ErrNotFound) {
		return
	}
	m.forget(id, claim)
	return
}

// Cleanup drops everything known about the user, it is safe to repeat.
func (m *Matchmaker) Cleanup(id network.Uid) {
	var (
		claim string
		known bool
	)
	m.locked(func(out *outbox) {
		u := m.crowd.remove(id)
		s, err := m.matcher.Sessions().Get(id)
		if err == nil {
			known = true
			claim = m.teardown(s, out)
			m.matcher.Sessions().Destroy(id)
		}
		if u != nil || known {
			m.broadcastUserCount(out)
		}
	})
	if !known {
		return
	}
	m.forget(id, claim)
	m.log.Info().Str(logger.ClientField, id.Short()).Msg("Disconnected")
}

// teardown removes the user from the queue and its pairing,
// the partner becomes Idle. It returns the geo claim of a proximity pair.
func (m *Matchmaker) teardown(s session.Session, out *outbox) string {
	m.matcher.Dequeue(s.Id)
	d, err := m.matcher.Detach(s.Id)
	if err != nil {
		m.log.Error().Err(err).Msgf("detach %v", s.Id)
	}
	return m.detached(d, out)
}

// forget removes the geo record of the user and frees its proximity partner.
func (m *Matchmaker) forget(id network.Uid, claim string) {
	ctx, cancel := m.storeContext(context.Background())
	defer cancel()
	m.remove(ctx, id)
	m.releaseCtx(ctx, claim)
}

// release frees the geo records of a claim, failures are only logged.
func (m *Matchmaker) release(claim string) {
	if claim == "" {
		return
	}
	ctx, cancel := m.storeContext(context.Background())
	defer cancel()
	m.releaseCtx(ctx, claim)
}

func (m *Matchmaker) releaseCtx(ctx context.Context, claim string) {
	if claim == "" {
		return
	}
	if err := m.store.Release(ctx, claim); err != nil {
		m.metrics.nearbyErrors.Inc()
		m.log.Warn().Err(err).Msgf("couldn't release claim %v", claim)
	}
}

func (m *Matchmaker) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.conf.Nearby.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.conf.Nearby.StoreTimeout)
}

// DisconnectAll closes the connections of all users,
// each of them is cleaned up by its own handler.
func (m *Matchmaker) DisconnectAll() {
	m.mu.Lock()
	users := make([]*User, 0, m.crowd.Len())
	m.crowd.each(func(u *User) { users = append(users, u) })
	m.mu.Unlock()
	for _, u := range users {
		u.Disconnect()
	}
}

// Online returns the number of the connected users.
func (m *Matchmaker) Online() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.crowd.Len()
}

// Session returns a copy of the state of the user.
func (m *Matchmaker) Session(id network.Uid) (session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matcher.Sessions().Get(id)
}

// Check verifies the consistency of the whole state.
func (m *Matchmaker) Check() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.matcher.Check(); err != nil {
		return err
	}
	var err error
	m.matcher.Sessions().ForEach(func(s session.Session) {
		if m.crowd.findById(s.Id) == nil {
			err = fmt.Errorf("session %v has no connection", s.Id)
		}
	})
	return err
}
