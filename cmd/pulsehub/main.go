// Command pulsehub runs either the presence hub or a peer agent,
// selected by configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"pulsehub/agent"
	"pulsehub/bus"
	"pulsehub/config"
	"pulsehub/hub"
	"pulsehub/logging"
	"pulsehub/shutdown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to a TOML config file (default: pulsehub.toml if present)")
		interactive = flag.Bool("interactive", false, "prompt for mode and identity on stdin")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pulsehub: %v\n", err)
		os.Exit(1)
	}
	if *interactive {
		if err := config.Prompt(os.Stdin, os.Stdout, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "pulsehub: %v\n", err)
			os.Exit(1)
		}
	}

	log := logging.New()
	log.SetLevel(logging.ParseLevel(cfg.LogLevel))

	var runErr error
	switch cfg.Mode {
	case config.ModeServer:
		runErr = runServer(cfg, log)
	case config.ModeClient:
		runErr = runClient(cfg, log)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "pulsehub: %v\n", runErr)
		os.Exit(1)
	}
}

func runServer(cfg config.Config, log *logging.Logger) error {
	var mirror bus.MessageBus
	if cfg.NATSURL != "" {
		natsCfg := bus.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		nb, err := bus.NewNATSBus(natsCfg)
		if err != nil {
			return fmt.Errorf("presence mirror: %w", err)
		}
		mirror = nb
		log.Info("presence mirror connected", map[string]interface{}{"url": cfg.NATSURL})
	}

	h := hub.New(hub.Config{
		Addr:          cfg.Addr(),
		StaleTimeout:  cfg.StaleTimeout,
		SweepInterval: cfg.SweepInterval,
		Mirror:        mirror,
		Logger:        log,
	})
	if err := h.Start(context.Background()); err != nil {
		return err
	}

	coord := newCoordinator(log)
	coord.RegisterFuncWithPhase("hub", h.Stop, 10)
	if mirror != nil {
		coord.RegisterFuncWithPhase("mirror", func(ctx context.Context) error {
			return mirror.Close()
		}, 20)
	}
	coord.HandleSignals()

	<-coord.Done()
	return coord.Err()
}

func runClient(cfg config.Config, log *logging.Logger) error {
	a, err := agent.New(agent.Config{
		ServerURL:         cfg.ServerURL,
		Name:              cfg.ClientName,
		Location:          cfg.ClientLocation,
		HeartbeatInterval: cfg.HeartbeatInterval,
		Logger:            log,
	})
	if err != nil {
		return err
	}
	if err := a.Start(context.Background()); err != nil {
		return err
	}

	coord := newCoordinator(log)
	coord.RegisterFuncWithPhase("agent", func(ctx context.Context) error {
		return a.Stop()
	}, 10)
	coord.HandleSignals()

	<-coord.Done()
	return coord.Err()
}

func newCoordinator(log *logging.Logger) *shutdown.Coordinator {
	cfg := shutdown.DefaultConfig()
	cfg.OnProgress = func(name string, phase int, took time.Duration, err error) {
		fields := map[string]interface{}{
			"component": name,
			"phase":     phase,
			"took":      took.String(),
		}
		if err != nil {
			fields["error"] = err.Error()
			log.Warn("shutdown handler failed", fields)
			return
		}
		log.Info("shutdown handler done", fields)
	}
	return shutdown.NewCoordinator(cfg)
}
