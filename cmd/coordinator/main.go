package main

import (
	"context"
	goflag "flag"
	"fmt"
	stdos "os"
	"time"

	"github.com/layzeechat/layzee/pkg/config"
	"github.com/layzeechat/layzee/pkg/coordinator"
	"github.com/layzeechat/layzee/pkg/logger"
	"github.com/layzeechat/layzee/pkg/os"
	flag "github.com/spf13/pflag"
)

var Version = "?"

const shutdownTimeout = 10 * time.Second

func main() {
	conf, err := config.NewCoordinatorConfig(stdos.Args[1:])
	if err != nil {
		fmt.Fprintf(stdos.Stderr, "config: %v\n", err)
		stdos.Exit(1)
	}
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	if err = conf.ParseFlags(flag.CommandLine, stdos.Args[1:]); err != nil {
		fmt.Fprintf(stdos.Stderr, "flags: %v\n", err)
		stdos.Exit(2)
	}

	log := logger.NewConsole(conf.Coordinator.Debug, "c", false)
	if conf.Coordinator.LogJson {
		log = logger.New(conf.Coordinator.Debug)
	}

	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}
	c, err := coordinator.New(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("coordinator init")
	}
	c.Start()

	<-os.ExpectTermination()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("service shutdown errors")
	}
}
