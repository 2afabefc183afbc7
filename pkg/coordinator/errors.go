package coordinator

import (
	"errors"

	"github.com/layzeechat/layzee/pkg/session"
)

var (
	ErrStoreUnavailable = errors.New("geospatial store unavailable")
	ErrUnknownTarget    = errors.New("unknown relay target")

	ErrDuplicateSession  = session.ErrDuplicateSession
	ErrInvalidTransition = session.ErrInvalidTransition
	ErrNotFound          = session.ErrNotFound
)
