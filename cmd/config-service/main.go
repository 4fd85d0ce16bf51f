package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/pflag"

	"github.com/iotline/monitoring-config/internal/pkg/api/simulationapi"
	"github.com/iotline/monitoring-config/internal/pkg/api/telemetryapi"
	"github.com/iotline/monitoring-config/internal/pkg/env"
	"github.com/iotline/monitoring-config/internal/pkg/log"
	"github.com/iotline/monitoring-config/internal/pkg/service/common/bootflag"
	"github.com/iotline/monitoring-config/internal/pkg/service/common/distlock"
	"github.com/iotline/monitoring-config/internal/pkg/service/common/etcdclient"
	"github.com/iotline/monitoring-config/internal/pkg/service/seeder"
	"github.com/iotline/monitoring-config/internal/pkg/service/seeder/config"
	"github.com/iotline/monitoring-config/internal/pkg/service/seeder/template"
	"github.com/iotline/monitoring-config/internal/pkg/utils/errors"
)

func main() {
	if err := run(); err != nil {
		fmt.Println(errors.PrefixError(err, "fatal error").Error()) // nolint:forbidigo
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration.
	envs, err := env.FromOs()
	if err != nil {
		return errors.Errorf("cannot load envs: %w", err)
	}
	cfg, err := config.LoadFrom(os.Args, envs)
	if errors.Is(err, pflag.ErrHelp) {
		// Stop on --help flag
		return nil
	} else if err != nil {
		return err
	}

	// Create logger.
	logger := log.NewServiceLogger(os.Stdout, cfg.DebugLog).WithComponent("configService") // nolint:forbidigo
	logger.Infof(ctx, "configuration: %s", cfg.Dump())

	// Connect to etcd, it holds the seed mutex and the completion flag.
	etcdClient, err := etcdclient.New(ctx, cfg.Etcd, etcdclient.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := etcdClient.Close(); err != nil {
			logger.Warnf(ctx, "cannot close etcd connection: %s", err)
		}
	}()

	// Create lock provider, the session lease bounds how long a crashed instance blocks others.
	lockCfg := distlock.NewConfig()
	lockCfg.TTL = cfg.MutexTTL
	locks, err := distlock.NewProvider(ctx, lockCfg, logger, etcdClient)
	if err != nil {
		return err
	}

	// Template files live next to the executable by default.
	var templates *template.DirLoader
	if cfg.TemplateDir != "" {
		templates = template.NewDirLoader(cfg.TemplateDir)
	} else if templates, err = template.NewDefaultDirLoader(); err != nil {
		// No lock is held yet, the session can be closed
		if closeErr := locks.Close(ctx); closeErr != nil {
			logger.Warnf(ctx, "%s", closeErr)
		}
		return err
	}

	telemetryAPI := telemetryapi.New(logger, cfg.TelemetryAPIURL)
	simulationAPI := simulationapi.New(logger, cfg.SimulationAPIURL)

	err = seeder.New(cfg, seeder.Dependencies{
		Logger:      logger,
		Clock:       clockwork.NewRealClock(),
		Mutex:       locks.NewMutex(seeder.MutexName),
		Flags:       bootflag.NewStore(logger, etcdClient, bootflag.DefaultPrefix),
		Groups:      telemetryAPI,
		Rules:       telemetryAPI,
		Simulations: simulationAPI,
		Templates:   templates,
	}).TrySeed(ctx)
	if err != nil {
		// A closed session would revoke the lease and free the seed lock,
		// after a failed seed the lock must stay held until the lease expires.
		locks.Orphan(ctx)
		return err
	}

	if err := locks.Close(ctx); err != nil {
		logger.Warnf(ctx, "%s", err)
	}
	return nil
}
