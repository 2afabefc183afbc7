package websocket

import (
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/layzeechat/layzee/pkg/logger"
)

const (
	// 64 KB is enough for SDP blobs
	maxMessageSize = 64 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	writeWait      = 10 * time.Second

	defaultSendBuffer = 256
)

var (
	ErrClosed     = errors.New("connection closed")
	ErrBufferFull = errors.New("send buffer is full")
)

type WS struct {
	conn peerConn
	send chan []byte
	quit chan struct{}
	once sync.Once

	OnMessage WSMessageHandler

	pingPong bool
	log      *logger.Logger

	Done chan struct{}
}

type WSMessageHandler func(message []byte, err error)

type Upgrader struct {
	websocket.Upgrader
}

var DefaultUpgrader = Upgrader{
	Upgrader: websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		WriteBufferPool: &sync.Pool{},
	},
}

// NewUpgrader makes an upgrader that only accepts the given origin,
// empty origin accepts everything.
func NewUpgrader(origin string) *Upgrader {
	u := DefaultUpgrader
	u.CheckOrigin = func(r *http.Request) bool {
		if origin == "" {
			return true
		}
		return r.Header.Get("Origin") == origin
	}
	return &u
}

// NewServerWithConn wraps an upgraded server connection,
// the server side keeps the connection alive with pings.
func NewServerWithConn(conn *websocket.Conn, sendBuffer int, log *logger.Logger) *WS {
	return newSocket(conn, true, sendBuffer, log)
}

func NewClient(address url.URL, log *logger.Logger) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, defaultSendBuffer, log), nil
}

func newSocket(conn *websocket.Conn, pingPong bool, sendBuffer int, log *logger.Logger) *WS {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	if log == nil {
		log = logger.Default()
	}
	return &WS{
		conn:      peerConn{sock: conn, writeWait: writeWait},
		send:      make(chan []byte, sendBuffer),
		quit:      make(chan struct{}),
		OnMessage: func([]byte, error) {},
		pingPong:  pingPong,
		log:       log,
		Done:      make(chan struct{}),
	}
}

// Listen starts the read and write pumps.
// The returned channel is closed when both of them are finished.
func (ws *WS) Listen() chan struct{} {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); ws.writer() }()
	go func() { defer wg.Done(); ws.reader() }()
	go func() { wg.Wait(); close(ws.Done) }()
	return ws.Done
}

// reader pumps messages from the websocket connection to the OnMessage callback.
// Blocking, must be called as goroutine. Serializes all websocket reads.
func (ws *WS) reader() {
	defer ws.Close()
	pong := time.Duration(0)
	if ws.pingPong {
		pong = pongTime
	}
	ws.conn.keepAlive(maxMessageSize, pong)
	for {
		message, err := ws.conn.read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ws.log.Warn().Err(err).Msg("ws read")
			}
			return
		}
		ws.OnMessage(message, nil)
	}
}

// writer pumps messages from the send channel to the websocket connection.
// Blocking, must be called as goroutine. Serializes all websocket writes.
func (ws *WS) writer() {
	var ping <-chan time.Time
	if ws.pingPong {
		ticker := time.NewTicker(pingTime)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer func() { _ = ws.conn.close() }()
	for {
		select {
		case message := <-ws.send:
			if err := ws.conn.write(websocket.TextMessage, message); err != nil {
				ws.log.Debug().Err(err).Msg("ws write")
				ws.Close()
				return
			}
		case <-ping:
			if err := ws.conn.ping(); err != nil {
				ws.Close()
				return
			}
		case <-ws.quit:
			ws.conn.goodbye()
			return
		}
	}
}

// Write queues the data without blocking.
// A consumer that can't keep up with its buffer is disconnected.
func (ws *WS) Write(data []byte) error {
	select {
	case <-ws.quit:
		return ErrClosed
	default:
	}
	select {
	case ws.send <- data:
		return nil
	case <-ws.quit:
		return ErrClosed
	default:
		ws.log.Warn().Msg("ws send buffer overflow, closing")
		ws.Close()
		return ErrBufferFull
	}
}

// Close signals both pumps to stop, safe to call many times.
func (ws *WS) Close() { ws.once.Do(func() { close(ws.quit) }) }
