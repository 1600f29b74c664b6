package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/vigil/config"
	"github.com/teranos/vigil/engine"
	"github.com/teranos/vigil/jsonconfig"
	"github.com/teranos/vigil/logger"
	"github.com/teranos/vigil/mailer"
	"github.com/teranos/vigil/object"
	"github.com/teranos/vigil/server"
)

var (
	configPath    string
	moduleConfigs []string
)

// ServeCmd runs the diagnostics engine until interrupted.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the diagnostics engine",
	Long: `Run the diagnostics engine.

Loads vigil.toml (or --config), applies any --module-config JSON files,
starts the scheduler and worker pool, and serves status over HTTP until
interrupted.`,
	RunE: runServe,
}

func init() {
	ServeCmd.Flags().StringVar(&configPath, "config", "", "path to vigil.toml")
	ServeCmd.Flags().StringArrayVar(&moduleConfigs, "module-config", nil,
		"JSON module configuration file (repeatable)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.ComponentLogger("vigild")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mail := mailer.New(mailer.Config{
		Server:       cfg.Email.Server,
		Port:         cfg.Email.Port,
		From:         cfg.Email.From,
		DefaultTo:    cfg.Email.To,
		MaxPerMinute: cfg.Email.MaxPerMinute,
	}, logger.ComponentLogger("vigil.mailer"))

	var srv *server.Server
	eng := engine.New(engine.Config{
		Workers:      cfg.Engine.Workers,
		GuardBudget:  cfg.Engine.GuardBudget(),
		ThrottleWarn: cfg.Engine.ThrottleWarn,
		ThrottleHigh: cfg.Engine.ThrottleHigh,
	}, engine.Callbacks{
		ComponentHealth: func(name string, health int64) {
			if srv != nil {
				srv.BroadcastHealth(name, health)
			}
		},
		UserAlert: func(text string) {
			_ = mail.SendAlert("", "vigil alert", text)
		},
		RecoveryStarted: func(rule, instance string) {
			log.Infow("recovery in progress", "object", rule, "instance", instance)
		},
		TestResult: func(name, instance string, result object.Result, value int64) {
			log.Debugw("test result", "object", name, "instance", instance,
				"result", result.String(), "value", value)
		},
	})

	applier := jsonconfig.New(eng, nil, mail, logger.ComponentLogger("vigil.jsonconfig"))
	for _, path := range moduleConfigs {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := applier.Apply(path, data); err != nil {
			return err
		}
		log.Infow("module configuration applied", "file", path)
	}

	eng.Start()
	defer eng.Stop()

	if cfg.Server.Enabled {
		srv = server.New(eng, cfg.Server.Port, logger.ComponentLogger("vigil.server"))
		srv.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(ctx)
		}()
	}

	// Live-reload the engine tunables when the config file changes.
	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, logger.ComponentLogger("vigil.config"))
		if err != nil {
			log.Warnw("config watch unavailable", "error", err)
		} else {
			defer watcher.Close()
			watcher.OnReload(func(next *config.Config) error {
				eng.SetThrottleThresholds(next.Engine.ThrottleWarn, next.Engine.ThrottleHigh)
				return nil
			})
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	log.Infow("shutting down", "signal", s.String())
	return nil
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}
