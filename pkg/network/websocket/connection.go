package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// peerConn is the socket of one participant with bounded reads and writes.
// Reads belong to the reader pump only, writes to the writer pump only.
type peerConn struct {
	sock      *websocket.Conn
	writeWait time.Duration
}

// keepAlive limits the incoming packets and, with pong, expects the peer
// to answer pings within that time.
func (c *peerConn) keepAlive(limit int64, pong time.Duration) {
	c.sock.SetReadLimit(limit)
	if pong <= 0 {
		return
	}
	_ = c.sock.SetReadDeadline(time.Now().Add(pong))
	c.sock.SetPongHandler(func(string) error { return c.sock.SetReadDeadline(time.Now().Add(pong)) })
}

// read returns the next data packet, control frames are handled by gorilla.
func (c *peerConn) read() ([]byte, error) {
	_, data, err := c.sock.ReadMessage()
	return data, err
}

func (c *peerConn) write(t int, data []byte) error {
	if err := c.sock.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.sock.WriteMessage(t, data)
}

func (c *peerConn) ping() error { return c.write(websocket.PingMessage, nil) }

// goodbye tells the peer the socket is closing normally.
func (c *peerConn) goodbye() {
	_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *peerConn) close() error { return c.sock.Close() }
