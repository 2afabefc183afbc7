package coordinator

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/layzeechat/layzee/pkg/api"
	"github.com/layzeechat/layzee/pkg/network"
)

// Signal forwards the opaque handshake payload to the target as is.
func (m *Matchmaker) Signal(from, to network.Uid, payload json.RawMessage) error {
	return m.relay(api.Signal, from, to, func(u *User) { u.SendSignal(from, payload) })
}

// RelayMessage forwards the chat text to the target.
func (m *Matchmaker) RelayMessage(from, to network.Uid, text string) error {
	return m.relay(api.Message, from, to, func(u *User) { u.SendMessage(from, text) })
}

func (m *Matchmaker) relay(t api.PT, from, to network.Uid, send func(u *User)) (err error) {
	m.locked(func(out *outbox) {
		if !m.matcher.Sessions().Has(from) {
			err = ErrNotFound
			return
		}
		target := m.crowd.findById(to)
		if target == nil || to == from {
			err = fmt.Errorf("%w: %v", ErrUnknownTarget, to)
			return
		}
		if m.conf.Matchmaking.StrictRelay {
			if partner, ok := m.matcher.Pairings().Partner(from); !ok || partner != to {
				err = fmt.Errorf("%w: %v is not the partner", ErrUnknownTarget, to)
				return
			}
		}
		out.notify(target, send)
	})
	if err != nil {
		m.metrics.dropped.WithLabelValues(t.String()).Inc()
	}
	return
}

// Report records the abuse report of the user against the target,
// the pairing stays as it is.
func (m *Matchmaker) Report(from, target network.Uid) (Report, error) {
	m.mu.Lock()
	known := m.matcher.Sessions().Has(from)
	partner, _ := m.matcher.Pairings().Partner(from)
	m.mu.Unlock()
	if !known {
		return Report{}, ErrNotFound
	}
	return m.reports.Record(from, target, partner == target && target != network.EmptyUid)
}
