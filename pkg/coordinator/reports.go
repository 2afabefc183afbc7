package coordinator

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/layzeechat/layzee/pkg/logger"
	"github.com/layzeechat/layzee/pkg/network"
	"github.com/prometheus/client_golang/prometheus"
)

type Report struct {
	Id     uuid.UUID
	From   network.Uid
	Target network.Uid
	// Partner tells the target was the current partner of the reporter.
	Partner bool
	At      time.Time
}

// Reports records abuse reports into the log, nothing else is done with them.
type Reports struct {
	log    *logger.Logger
	metric prometheus.Counter
}

func NewReports(log *logger.Logger, metric prometheus.Counter) *Reports {
	return &Reports{log: log.Extend(log.With().Str(logger.ModuleField, "report")), metric: metric}
}

func (r *Reports) Record(from, target network.Uid, partner bool) (Report, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return Report{}, err
	}
	rep := Report{Id: id, From: from, Target: target, Partner: partner, At: time.Now()}
	r.log.Info().
		Str("id", rep.Id.String()).
		Str("from", from.String()).
		Str("target", target.String()).
		Bool("partner", partner).
		Time("at", rep.At).
		Msg("Abuse report")
	r.metric.Inc()
	return rep, nil
}
