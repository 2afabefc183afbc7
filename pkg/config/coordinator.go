package config

import (
	"time"

	"github.com/spf13/pflag"
)

type CoordinatorConfig struct {
	Coordinator Coordinator
	Matchmaking Matchmaking
	Nearby      Nearby
	Webrtc      Webrtc
}

type Coordinator struct {
	Debug bool
	// LogJson switches the console logs to JSON lines.
	LogJson bool
	// DataDir keeps the instance lock and the sqlite store.
	DataDir    string `default:"data"`
	Monitoring Monitoring
	// Origin restricts websocket upgrades to one origin, empty allows all.
	Origin string
	Server Server
}

type Matchmaking struct {
	MaxTags      int `default:"10"`
	MaxTagLength int `default:"32"`
	// SendBuffer is the outgoing event queue size of each participant.
	SendBuffer int `default:"256"`
	// StrictRelay allows signal and message relay only to the current partner.
	StrictRelay bool
}

type Nearby struct {
	// Store is either memory or sqlite.
	Store         string        `default:"memory"`
	Path          string        `default:"nearby.db"`
	DefaultRadius float64       `default:"100000"`
	MaxRadius     float64       `default:"1000000"`
	StoreTimeout  time.Duration `default:"20s"`
	TTL           time.Duration `default:"1h"`
	ExpireEvery   time.Duration `default:"1m"`
}

const (
	StoreMemory = "memory"
	StoreSqlite = "sqlite"
	confFlag    = "c-conf"
)

// NewCoordinatorConfig loads the config from the file given with
// the c-conf flag (or the default locations) and env.
func NewCoordinatorConfig(args []string) (conf CoordinatorConfig, err error) {
	err = LoadConfig(&conf, configPath(args))
	return
}

func (c *CoordinatorConfig) WithFlags(fs *pflag.FlagSet) {
	c.Coordinator.Server.WithFlags(fs)
	fs.BoolVar(&c.Coordinator.Debug, "debug", c.Coordinator.Debug, "Enable debug logs")
	fs.BoolVar(&c.Coordinator.LogJson, "log.json", c.Coordinator.LogJson, "Write JSON logs")
	fs.StringVar(&c.Coordinator.DataDir, "data", c.Coordinator.DataDir, "Data directory")
	fs.IntVar(&c.Coordinator.Monitoring.Port, "monitoring.port", c.Coordinator.Monitoring.Port, "Monitoring server port")
	fs.BoolVar(&c.Coordinator.Monitoring.MetricEnabled, "monitoring.metric", c.Coordinator.Monitoring.MetricEnabled, "Enable prometheus metric for server")
	fs.BoolVar(&c.Coordinator.Monitoring.ProfilingEnabled, "monitoring.pprof", c.Coordinator.Monitoring.ProfilingEnabled, "Enable golang pprof for server")
	fs.StringVar(&c.Nearby.Store, "nearby.store", c.Nearby.Store, "Geospatial store: [memory, sqlite]")
	fs.String(confFlag, "", "Set custom configuration file path")
}

// ParseFlags binds the config to the command-line flags and parses them.
func (c *CoordinatorConfig) ParseFlags(fs *pflag.FlagSet, args []string) error {
	c.WithFlags(fs)
	return fs.Parse(args)
}
