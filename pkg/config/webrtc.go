package config

// Webrtc holds the ICE servers handed to the participants,
// the coordinator itself never opens peer connections.
type Webrtc struct {
	IceServers []IceServer
}

type IceServer struct {
	Urls       string `json:"urls,omitempty"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}
