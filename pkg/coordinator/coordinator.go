package coordinator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/layzeechat/layzee/pkg/config"
	"github.com/layzeechat/layzee/pkg/logger"
	"github.com/layzeechat/layzee/pkg/monitoring"
	"github.com/layzeechat/layzee/pkg/nearby"
	"github.com/layzeechat/layzee/pkg/network/httpx"
	"github.com/layzeechat/layzee/pkg/os"
	"github.com/layzeechat/layzee/pkg/service"
	"github.com/prometheus/client_golang/prometheus"
)

const lockName = "coordinator.lock"

type Coordinator struct {
	service.Group

	conf   config.CoordinatorConfig
	mm     *Matchmaker
	hub    *Hub
	server *httpx.Server
	lock   *os.Flock
	log    *logger.Logger
}

// New makes the coordinator with all its services.
// Only one coordinator can use the same data dir.
func New(conf config.CoordinatorConfig, log *logger.Logger) (c *Coordinator, err error) {
	if err = os.CheckCreateDir(conf.Coordinator.DataDir); err != nil {
		return nil, err
	}
	lock, err := os.NewFileLock(filepath.Join(conf.Coordinator.DataDir, lockName))
	if err != nil {
		return nil, err
	}
	if err = lock.TryLock(); err != nil {
		return nil, fmt.Errorf("data dir %v: %w", conf.Coordinator.DataDir, err)
	}
	defer func() {
		if err != nil {
			_ = lock.Unlock()
		}
	}()

	store, err := NewStore(conf, log)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	mm := NewMatchmaker(conf, store, NewMetrics(reg), log)
	hub := NewHub(conf, mm, log)

	server, err := httpx.NewServer(
		conf.Coordinator.Server.GetAddr(),
		func(*httpx.Server) httpx.Handler {
			h := httpx.NewServeMux("")
			h.HandleFunc("/ws", hub.handleWebsocketUserConnection)
			h.HandleW("/health", hub.handleHealth)
			return h
		},
		httpx.WithServerConfig(conf.Coordinator.Server),
		httpx.WithCertCache(filepath.Join(conf.Coordinator.DataDir, "certs")),
		httpx.WithLogger(log),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	c = &Coordinator{conf: conf, mm: mm, hub: hub, server: server, lock: lock, log: log}
	c.Add(nearby.NewJanitor(store, conf.Nearby.ExpireEvery, log))
	if conf.Coordinator.Monitoring.IsEnabled() {
		mon, err := monitoring.New(conf.Coordinator.Monitoring, reg, log)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		c.Add(mon)
	}
	c.Add(server)
	return c, nil
}

// NewStore opens the geospatial store selected in the config.
func NewStore(conf config.CoordinatorConfig, log *logger.Logger) (nearby.Store, error) {
	switch conf.Nearby.Store {
	case config.StoreSqlite:
		path := conf.Nearby.Path
		if !filepath.IsAbs(path) && path != ":memory:" {
			path = filepath.Join(conf.Coordinator.DataDir, path)
		}
		log.Info().Msgf("Nearby store: sqlite %v", path)
		return nearby.NewSQLiteStore(path, conf.Nearby.TTL)
	case config.StoreMemory, "":
		log.Info().Msg("Nearby store: memory")
		return nearby.NewMemoryStore(conf.Nearby.TTL), nil
	default:
		return nil, fmt.Errorf("unknown nearby store: %v", conf.Nearby.Store)
	}
}

func (c *Coordinator) Matchmaker() *Matchmaker { return c.mm }

func (c *Coordinator) Addr() string { return c.server.Addr }

// Shutdown disconnects everyone and waits for their cleanup
// before the store is closed.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	var result *multierror.Error
	if err := c.hub.Drain(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Group.Shutdown(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.lock.Unlock(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
