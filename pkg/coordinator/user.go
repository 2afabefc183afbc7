package coordinator

import (
	"github.com/layzeechat/layzee/pkg/api"
	"github.com/layzeechat/layzee/pkg/logger"
	"github.com/layzeechat/layzee/pkg/network"
)

// Conn is the outgoing side of a participant connection.
// Write must never block.
type Conn interface {
	Write(data []byte) error
	Close()
}

type User struct {
	Id   network.Uid
	conn Conn
	log  *logger.Logger
}

func NewUser(id network.Uid, conn Conn, log *logger.Logger) *User {
	return &User{
		Id:   id,
		conn: conn,
		log:  log.Extend(log.With().Str(logger.ClientField, id.Short())),
	}
}

// Notify sends the event to the user without waiting.
func (u *User) Notify(t api.PT, payload any) {
	data, err := api.Encode(t, payload)
	if err != nil {
		u.log.Error().Err(err).Msgf("couldn't encode %v", t)
		return
	}
	if err = u.conn.Write(data); err != nil {
		u.log.Debug().Str(logger.DirectionField, "←").Err(err).Msgf("%v was not sent", t)
	}
}

func (u *User) Disconnect() { u.conn.Close() }
