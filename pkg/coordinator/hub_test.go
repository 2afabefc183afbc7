package coordinator

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/layzeechat/layzee/pkg/api"
	"github.com/layzeechat/layzee/pkg/logger"
	"github.com/layzeechat/layzee/pkg/nearby"
	"github.com/layzeechat/layzee/pkg/network"
	"github.com/layzeechat/layzee/pkg/network/httpx"
	"github.com/layzeechat/layzee/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	conf := testConfig()
	mm := NewMatchmaker(conf, nearby.NewMemoryStore(time.Hour), nil, logger.Nop())
	hub := NewHub(conf, mm, logger.Nop())
	h := httpx.NewServeMux("")
	h.HandleFunc("/ws", hub.handleWebsocketUserConnection)
	h.HandleW("/health", hub.handleHealth)
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return hub, server
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func dial(t *testing.T, server *httptest.Server) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	c := &testClient{t: t, conn: conn}
	me := c.expect(api.Me)
	c.id = api.Unwrap[api.MeResponse](me.Payload).Id
	require.NotEmpty(t, c.id)
	return c
}

func (c *testClient) send(t api.PT, payload string) {
	c.t.Helper()
	msg := `{"t":"` + string(t) + `"`
	if payload != "" {
		msg += `,"p":` + payload
	}
	msg += "}"
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(msg)))
}

// expect reads until the event of type t, other events are skipped.
func (c *testClient) expect(t api.PT) api.In {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := c.conn.ReadMessage()
		require.NoError(c.t, err, "waiting for %v", t)
		in, err := api.Decode(data)
		require.NoError(c.t, err)
		if in.T == t {
			return in
		}
	}
}

func waitState(t *testing.T, hub *Hub, id string, state session.State) {
	t.Helper()
	assert.Eventually(t, func() bool {
		s, err := hub.mm.Session(network.Uid(id))
		return err == nil && s.State == state
	}, time.Second, 10*time.Millisecond)
}

func TestHubConversation(t *testing.T) {
	hub, server := newTestHub(t)

	a := dial(t, server)
	b := dial(t, server)
	assert.NotEqual(t, a.id, b.id)

	a.send(api.Find, `{"tags":["go","music"]}`)
	waitState(t, hub, a.id, session.Searching)
	b.send(api.Find, `{"tags":["music"]}`)

	fa := api.Unwrap[api.PartnerFoundResponse](a.expect(api.PartnerFound).Payload)
	fb := api.Unwrap[api.PartnerFoundResponse](b.expect(api.PartnerFound).Payload)
	assert.Equal(t, b.id, fa.PartnerId)
	assert.Equal(t, a.id, fb.PartnerId)
	assert.True(t, fb.Initiator)
	require.NotNil(t, fa.MatchedTag)
	assert.Equal(t, "music", *fa.MatchedTag)

	b.send(api.Signal, `{"signal":{"type":"offer","sdp":"x"},"to":"`+a.id+`"}`)
	sig := api.Unwrap[api.SignalResponse](a.expect(api.Signal).Payload)
	assert.Equal(t, b.id, sig.From)
	assert.JSONEq(t, `{"type":"offer","sdp":"x"}`, string(sig.Signal))

	a.send(api.Message, `{"text":"hello","to":"`+b.id+`"}`)
	msg := api.Unwrap[api.MessageResponse](b.expect(api.Message).Payload)
	assert.Equal(t, "hello", msg.Text)

	_ = b.conn.Close()
	a.expect(api.PartnerDisconnected)
	count := api.Unwrap[api.UserCountResponse](a.expect(api.UserCount).Payload)
	assert.Equal(t, 1, count.Count)

	assert.Eventually(t, func() bool { return hub.mm.Online() == 1 }, time.Second, 10*time.Millisecond)
	assert.NoError(t, hub.mm.Check())
}

func TestHubNearby(t *testing.T) {
	hub, server := newTestHub(t)

	a := dial(t, server)
	b := dial(t, server)

	a.send(api.JoinNearby, `{"location":{"lat":52.52,"lng":13.405}}`)
	assert.Eventually(t, func() bool {
		_, err := hub.mm.store.Get(context.Background(), network.Uid(a.id))
		return err == nil
	}, time.Second, 10*time.Millisecond)
	b.send(api.FindNearby, `{"radius":50000,"location":{"lat":52.5352,"lng":13.1995}}`)

	fb := api.Unwrap[api.PartnerFoundResponse](b.expect(api.PartnerFound).Payload)
	assert.Equal(t, a.id, fb.PartnerId)
	require.NotNil(t, fb.MatchedTag)
	assert.Equal(t, NearbyTag, *fb.MatchedTag)
	a.expect(api.PartnerFound)

	c := dial(t, server)
	c.send(api.FindNearby, `{}`)
	c.expect(api.NoNearbyFound)
}

func TestHubBadPackets(t *testing.T) {
	_, server := newTestHub(t)
	a := dial(t, server)

	require.NoError(t, a.conn.WriteMessage(websocket.TextMessage, []byte(`{oops`)))
	a.expect(api.Error)

	a.send("dance", "")
	rs := api.Unwrap[api.ErrorResponse](a.expect(api.Error).Payload)
	assert.Equal(t, api.ErrUnknown.Error(), rs.Message)

	a.send(api.Find, `{"tags":"nope"}`)
	a.expect(api.Error)

	// still alive
	a.send(api.Find, `{"tags":[]}`)
	a.send(api.Leave, "")
	b := dial(t, server)
	assert.NotEmpty(t, b.id)
}

func TestHealth(t *testing.T) {
	_, server := newTestHub(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "API is running", string(body))
}

func TestHubDrain(t *testing.T) {
	hub, server := newTestHub(t)
	a := dial(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, hub.Drain(ctx))
	assert.Zero(t, hub.mm.Online())
	_, err := hub.mm.Session(network.Uid(a.id))
	assert.ErrorIs(t, err, ErrNotFound)

	// nobody gets in while the hub drains
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	_ = resp.Body.Close()
	assert.Zero(t, hub.mm.Online())
}
