package coordinator

import (
	"context"
	"errors"

	"github.com/layzeechat/layzee/pkg/api"
	"github.com/layzeechat/layzee/pkg/logger"
	"github.com/layzeechat/layzee/pkg/network"
)

// handle dispatches one packet of the user.
// Proximity searches wait for the store, so they run on their own.
func (h *Hub) handle(ctx context.Context, u *User, data []byte) {
	in, err := api.Decode(data)
	if err != nil {
		u.log.Warn().Err(err).Msg("malformed packet")
		u.SendError(err)
		return
	}
	u.log.Debug().Str(logger.DirectionField, "→").Msgf("%v", in.T)

	switch in.T {
	case api.Find:
		if rq := unwrap[api.FindRequest](u, in); rq != nil {
			h.done(u, in.T, h.mm.Find(u.Id, rq.Tags))
		}
	case api.Next:
		h.done(u, in.T, h.mm.Next(u.Id))
	case api.JoinNearby:
		if rq := unwrap[api.JoinNearbyRequest](u, in); rq != nil {
			h.done(u, in.T, h.mm.JoinNearby(ctx, u.Id, rq.Location))
		}
	case api.FindNearby:
		if rq := unwrap[api.FindNearbyRequest](u, in); rq != nil {
			go func() { h.done(u, in.T, h.mm.FindNearby(ctx, u.Id, rq.Radius, rq.Location)) }()
		}
	case api.Signal:
		if rq := unwrap[api.SignalRequest](u, in); rq != nil {
			h.done(u, in.T, h.mm.Signal(u.Id, network.Uid(rq.To), rq.Signal))
		}
	case api.Message:
		if rq := unwrap[api.MessageRequest](u, in); rq != nil {
			h.done(u, in.T, h.mm.RelayMessage(u.Id, network.Uid(rq.To), rq.Text))
		}
	case api.Report:
		if rq := unwrap[api.ReportRequest](u, in); rq != nil {
			_, err = h.mm.Report(u.Id, network.Uid(rq.PartnerId))
			h.done(u, in.T, err)
		}
	case api.Leave:
		h.done(u, in.T, h.mm.Leave(u.Id))
	default:
		u.log.Warn().Msgf("unknown packet: %v", in.T)
		u.SendError(api.ErrUnknown)
	}
}

// done logs the outcome of the request, the user is never told about
// the dropped relays and the state errors.
func (h *Hub) done(u *User, t api.PT, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownTarget), errors.Is(err, ErrNotFound):
		u.log.Debug().Err(err).Msgf("%v dropped", t)
	case errors.Is(err, ErrStoreUnavailable):
		u.log.Warn().Err(err).Msgf("%v failed", t)
	default:
		u.log.Error().Err(err).Msgf("%v failed", t)
	}
}

func unwrap[T any](u *User, in api.In) *T {
	rq, err := api.UnwrapChecked[T](in.Payload)
	if err != nil {
		u.log.Warn().Err(err).Msgf("malformed %v payload", in.T)
		u.SendError(err)
		return nil
	}
	return rq
}
