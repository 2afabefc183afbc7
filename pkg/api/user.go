package api

import (
	"github.com/goccy/go-json"
	"github.com/layzeechat/layzee/pkg/config"
)

type (
	Location struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}

	FindRequest struct {
		Tags []string `json:"tags"`
	}
	JoinNearbyRequest struct {
		Location *Location `json:"location"`
	}
	FindNearbyRequest struct {
		Radius   float64   `json:"radius"`
		Location *Location `json:"location,omitempty"`
	}
	SignalRequest struct {
		Signal json.RawMessage `json:"signal"`
		To     string          `json:"to"`
	}
	MessageRequest struct {
		Text string `json:"text"`
		To   string `json:"to"`
	}
	ReportRequest struct {
		PartnerId string `json:"partnerId"`
	}

	MeResponse struct {
		Id  string             `json:"id"`
		Ice []config.IceServer `json:"ice,omitempty"`
	}
	PartnerFoundResponse struct {
		PartnerId  string  `json:"partnerId"`
		Initiator  bool    `json:"initiator"`
		MatchedTag *string `json:"matchedTag"`
	}
	NearbyErrorResponse struct {
		Message string `json:"message"`
	}
	SignalResponse struct {
		Signal json.RawMessage `json:"signal"`
		From   string          `json:"from"`
	}
	MessageResponse struct {
		Text string `json:"text"`
		From string `json:"from"`
	}
	UserCountResponse struct {
		Count int `json:"count"`
	}
	ErrorResponse struct {
		Message string `json:"message"`
	}
)

// Valid checks the coordinates are real ones, zero values
// are rejected as the browsers send them when geolocation fails.
func (l *Location) Valid() bool {
	if l == nil || (l.Lat == 0 && l.Lng == 0) {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}
