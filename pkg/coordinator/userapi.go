package coordinator

import (
	"github.com/goccy/go-json"
	"github.com/layzeechat/layzee/pkg/api"
	"github.com/layzeechat/layzee/pkg/config"
	"github.com/layzeechat/layzee/pkg/network"
)

// NearbyTag is the matched tag of proximity pairs.
const NearbyTag = "Nearby"

const storeErrorMessage = "Database connection failed"

// SendMe tells the user its own id and the ICE servers to use.
func (u *User) SendMe(ice []config.IceServer) {
	u.Notify(api.Me, api.MeResponse{Id: u.Id.String(), Ice: ice})
}

func (u *User) SendPartnerFound(partner network.Uid, initiator bool, tag string) {
	rs := api.PartnerFoundResponse{PartnerId: partner.String(), Initiator: initiator}
	if tag != "" {
		rs.MatchedTag = &tag
	}
	u.Notify(api.PartnerFound, rs)
}

func (u *User) SendPartnerDisconnected() { u.Notify(api.PartnerDisconnected, nil) }

func (u *User) SendNoNearbyFound() { u.Notify(api.NoNearbyFound, nil) }

func (u *User) SendNearbyError() {
	u.Notify(api.NearbyError, api.NearbyErrorResponse{Message: storeErrorMessage})
}

func (u *User) SendSignal(from network.Uid, signal json.RawMessage) {
	u.Notify(api.Signal, api.SignalResponse{Signal: signal, From: from.String()})
}

func (u *User) SendMessage(from network.Uid, text string) {
	u.Notify(api.Message, api.MessageResponse{Text: text, From: from.String()})
}

func (u *User) SendUserCount(n int) { u.Notify(api.UserCount, api.UserCountResponse{Count: n}) }

func (u *User) SendError(err error) { u.Notify(api.Error, api.ErrorResponse{Message: err.Error()}) }
