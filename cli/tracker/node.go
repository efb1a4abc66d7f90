package tracker

import (
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	global_config "github.com/xrplwatch/valtrack/cli/config"
	"github.com/xrplwatch/valtrack/logging"
	"github.com/xrplwatch/valtrack/logging/fields"
	"github.com/xrplwatch/valtrack/monitoring/metrics"
	"github.com/xrplwatch/valtrack/registry"
	"github.com/xrplwatch/valtrack/tracker"
)

type config struct {
	global_config.GlobalConfig `yaml:"global"`
	Tracker                    tracker.Options `yaml:"tracker"`

	MetricsAPIPort int  `yaml:"MetricsAPIPort" env:"METRICS_API_PORT" env-description:"Port to listen on for the metrics API"`
	EnableProfile  bool `yaml:"EnableProfile" env:"ENABLE_PROFILE" env-description:"flag that indicates whether go profiling tools are enabled"`
}

var cfg config

var globalArgs global_config.Args

// StartTrackerCmd starts the validator tracker.
var StartTrackerCmd = &cobra.Command{
	Use:   "start-tracker",
	Short: "Starts tracking the validator list and validation votes",
	Run: func(cmd *cobra.Command, args []string) {
		logger, err := setupGlobal()
		if err != nil {
			log.Fatal("could not create logger ", err)
		}
		defer logging.CapturePanic(logger)

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		node, err := tracker.New(logger, cfg.Tracker, registry.Callbacks{
			OnUnlData: func(update registry.UnlData) {
				logger.Info("validator list update",
					fields.MasterKey(update.PublicKey),
					fields.SigningKey(update.SigningKey),
					fields.Sequence(update.Sequence),
					fields.Name(update.Name),
					zap.Bool("new_validator", update.IsNewValidator),
					zap.Bool("from_manifests_stream", update.IsFromManifestsStream))
			},
			OnValidation: func(vote registry.Vote) {
				logger.Debug("validation",
					fields.LedgerHash(vote.LedgerHash),
					fields.LedgerIndex(vote.LedgerIndex),
					fields.MasterKey(vote.MasterKey),
					fields.Name(vote.Name),
					zap.Bool("on_unl", vote.IsOnUNL),
					zap.Bool("full", vote.Full))
			},
			OnStreamClose: func(address string, err error) {
				logger.Warn("stream closed", fields.Address(address), zap.Error(err))
			},
		})
		if err != nil {
			logger.Fatal("could not create tracker", zap.Error(err))
		}

		if err := node.Start(ctx); err != nil {
			logger.Fatal("could not start tracker", zap.Error(err))
		}

		if cfg.MetricsAPIPort > 0 {
			handler := metrics.NewHandler(logger.Named(logging.NameMetricsHandler), cfg.EnableProfile, node.Registry())
			addr := fmt.Sprintf(":%d", cfg.MetricsAPIPort)
			if err := handler.Start(http.NewServeMux(), addr); err != nil {
				logger.Error("could not start metrics handler", zap.Error(err))
			}
			go metrics.ReportRuntimeStats(logger, time.Minute, ctx.Done())
		}

		<-ctx.Done()
		logger.Info("shutting down")
		if err := node.Stop(); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	},
}

func setupGlobal() (*zap.Logger, error) {
	if globalArgs.ConfigPath != "" {
		if err := cleanenv.ReadConfig(globalArgs.ConfigPath, &cfg); err != nil {
			return nil, fmt.Errorf("could not read config: %w", err)
		}
	}
	if err := logging.SetGlobalLogger(cfg.LogLevel, cfg.LogLevelFormat, cfg.LogFormat, cfg.LogFilePath); err != nil {
		return nil, fmt.Errorf("logging.SetGlobalLogger: %w", err)
	}
	return zap.L().Named(logging.NameTrackerNode), nil
}

func init() {
	global_config.ProcessArgs(&cfg, &globalArgs, StartTrackerCmd)
}
