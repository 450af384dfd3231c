package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/camtower/camtower/pkg/alerting"
	"github.com/camtower/camtower/pkg/api"
	"github.com/camtower/camtower/pkg/config"
	"github.com/camtower/camtower/pkg/db"
	"github.com/camtower/camtower/pkg/notify"
	"github.com/camtower/camtower/pkg/probe"
	"github.com/camtower/camtower/pkg/scheduler"
)

const shutdownTimeout = 30 * time.Second

// Config is the top-level camtower configuration.
type Config struct {
	ListenAddr        string               `json:"listen_addr" env:"CAMTOWER_LISTEN_ADDR"`
	DBPath            string               `json:"db_path" env:"CAMTOWER_DB_PATH"`
	ScanInterval      config.Duration      `json:"scan_interval"`
	Schedule          string               `json:"schedule,omitempty"`
	ProbeTimeout      config.Duration      `json:"probe_timeout"`
	SuppressionWindow config.Duration      `json:"suppression_window"`
	ICMPCount         int                  `json:"icmp_count"`
	SNMPCommunity     string               `json:"snmp_community" env:"CAMTOWER_SNMP_COMMUNITY"`
	LaunchRate        int                  `json:"launch_rate"`
	CheckRetention    config.Duration      `json:"check_retention"`
	Webhook           notify.WebhookConfig `json:"webhook"`
	Debug             bool                 `json:"debug" env:"CAMTOWER_DEBUG"`
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8090"
	}

	if cfg.DBPath == "" {
		cfg.DBPath = "/var/lib/camtower/camtower.db"
	}

	if cfg.ScanInterval == 0 {
		cfg.ScanInterval = config.Duration(5 * time.Minute)
	}

	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = config.Duration(5 * time.Second)
	}

	if cfg.SuppressionWindow == 0 {
		cfg.SuppressionWindow = config.Duration(10 * time.Minute)
	}

	if cfg.ICMPCount == 0 {
		cfg.ICMPCount = 3
	}

	if cfg.CheckRetention == 0 {
		cfg.CheckRetention = config.Duration(30 * 24 * time.Hour)
	}
}

func main() {
	configPath := flag.String("config", "/etc/camtower/camtower.json", "Path to config file")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var cfg Config
	if err := config.LoadAndValidate(*configPath, &cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	applyDefaults(&cfg)

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("error closing database")
		}
	}()

	var sink notify.Sink = notify.NewLogSink()
	if cfg.Webhook.Enabled {
		sink = notify.NewWebhookSink(cfg.Webhook)
	}

	engine := alerting.NewEngine(database, sink, time.Duration(cfg.SuppressionWindow))
	apiServer := api.NewServer(database, database, database)

	prober := probe.NewProber(probe.Config{
		Timeout:       time.Duration(cfg.ProbeTimeout),
		ICMPCount:     cfg.ICMPCount,
		SNMPCommunity: cfg.SNMPCommunity,
	}, database, engine, apiServer.Hub())

	sched, err := scheduler.New(scheduler.Config{
		Interval:   time.Duration(cfg.ScanInterval),
		Schedule:   cfg.Schedule,
		LaunchRate: cfg.LaunchRate,
	}, database, prober)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)

	go func() {
		if err := sched.Start(ctx); err != nil && ctx.Err() == nil {
			select {
			case errChan <- err:
			default:
				log.Error().Err(err).Msg("scheduler error")
			}
		}
	}()

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("starting HTTP server")

		if err := apiServer.Start(cfg.ListenAddr); err != nil {
			select {
			case errChan <- err:
			default:
				log.Error().Err(err).Msg("HTTP server error")
			}
		}
	}()

	go runRetention(ctx, database, time.Duration(cfg.CheckRetention))

	handleShutdown(cancel, sched, errChan)
}

// runRetention trims old check history once a day. Alert rows are
// never deleted.
func runRetention(ctx context.Context, database db.Service, retention time.Duration) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := database.CleanOldChecks(retention)
			if err != nil {
				log.Error().Err(err).Msg("failed to clean old checks")
				continue
			}

			if n > 0 {
				log.Info().Int64("removed", n).Msg("cleaned old check history")
			}
		}
	}
}

func handleShutdown(cancel context.CancelFunc, sched *scheduler.Scheduler, errChan chan error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received signal, initiating shutdown")
	case err := <-errChan:
		log.Error().Err(err).Msg("fatal error, initiating shutdown")
	}

	// Stop the scheduler before canceling the shared context so
	// in-flight cycles finish on their own probe timeouts instead of
	// being aborted mid-probe. The wait is bounded.
	stopped := make(chan struct{})

	go func() {
		sched.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		log.Warn().Msg("shutdown timeout reached, exiting with probes in flight")
	}

	cancel()
}
