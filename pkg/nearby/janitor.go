package nearby

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/layzeechat/layzee/pkg/logger"
)

// Janitor periodically expires the stale records of a store
// and closes the store on shutdown.
type Janitor struct {
	store Store
	every time.Duration
	log   *logger.Logger

	done chan struct{}
	stop sync.Once
	wg   sync.WaitGroup
}

func NewJanitor(store Store, every time.Duration, log *logger.Logger) *Janitor {
	return &Janitor{
		store: store,
		every: every,
		log:   log.Extend(log.With().Str(logger.ModuleField, "janitor")),
		done:  make(chan struct{}),
	}
}

func (j *Janitor) Run() {
	if j.every <= 0 {
		return
	}
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		t := time.NewTicker(j.every)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				j.Sweep(context.Background())
			case <-j.done:
				return
			}
		}
	}()
}

// Sweep runs one expiry pass.
func (j *Janitor) Sweep(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, j.every+time.Second)
	defer cancel()
	n, err := j.store.Expire(ctx)
	if err != nil {
		j.log.Warn().Err(err).Msg("expire failed")
		return 0
	}
	if n > 0 {
		j.log.Debug().Msgf("expired %v records", n)
	}
	return n
}

// Shutdown stops the sweeps and closes the store, only the first call does anything.
func (j *Janitor) Shutdown(ctx context.Context) (err error) {
	j.stop.Do(func() { err = j.shutdown(ctx) })
	return
}

func (j *Janitor) shutdown(ctx context.Context) error {
	close(j.done)
	stopped := make(chan struct{})
	go func() { j.wg.Wait(); close(stopped) }()

	var result *multierror.Error
	select {
	case <-stopped:
	case <-ctx.Done():
		result = multierror.Append(result, ctx.Err())
	}
	if err := j.store.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (j *Janitor) String() string { return "nearby janitor" }
