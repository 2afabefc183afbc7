// Package api defines the event API between participants and the coordinator.
//
// Each event is a JSON-encoded "packet" of the following structure:
//
//	t - (required) one of the predefined event types;
//	p - (optional) event payload with arbitrary data.
//
// The packets differentiate by their types with which it is possible
// to unwrap the payload into distinct request/response data structures.
// Signaling payloads are kept as raw JSON and never decoded.
//
// Example:
//
//	{"t":"partnerFound","p":{"partnerId":"cfv68irdrc3ifu3jn6bg","initiator":true,"matchedTag":"music"}}
package api

import (
	"fmt"

	"github.com/goccy/go-json"
)

type PT string

type In struct {
	T       PT              `json:"t"`
	Payload json.RawMessage `json:"p,omitempty"` // should be json.RawMessage for 2-pass unmarshal
}

func (i In) GetPayload() []byte { return i.Payload }
func (i In) GetType() PT        { return i.T }

type Out struct {
	T       PT  `json:"t"`
	Payload any `json:"p,omitempty"`
}

// Participant requests.
const (
	Find       PT = "find"
	Next       PT = "next"
	JoinNearby PT = "joinNearby"
	FindNearby PT = "findNearby"
	Signal     PT = "signal"
	Message    PT = "message"
	Report     PT = "report"
	Leave      PT = "leave"
)

// Coordinator events.
const (
	Me                  PT = "me"
	PartnerFound        PT = "partnerFound"
	NoNearbyFound       PT = "noNearbyFound"
	NearbyError         PT = "nearbyError"
	PartnerDisconnected PT = "partnerDisconnected"
	UserCount           PT = "userCount"
	Error               PT = "error"
)

func (p PT) String() string { return string(p) }

var (
	ErrMalformed = fmt.Errorf("malformed")
	ErrUnknown   = fmt.Errorf("unknown packet type")
)

// Decode reads one incoming packet.
func Decode(data []byte) (In, error) {
	var in In
	if err := json.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if in.T == "" {
		return in, fmt.Errorf("%w: no type", ErrMalformed)
	}
	return in, nil
}

// Encode makes a packet of the type t with the payload.
func Encode(t PT, payload any) ([]byte, error) { return json.Marshal(Out{T: t, Payload: payload}) }

func Unwrap[T any](data []byte) *T {
	out := new(T)
	if len(data) == 0 {
		return out
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}

// UnwrapChecked is the same as Unwrap but with the error returned.
func UnwrapChecked[T any](data []byte) (*T, error) {
	if v := Unwrap[T](data); v != nil {
		return v, nil
	}
	return nil, ErrMalformed
}
