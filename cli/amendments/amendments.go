package amendments

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aquasecurity/table"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	global_config "github.com/xrplwatch/valtrack/cli/config"
	"github.com/xrplwatch/valtrack/logging"
	"github.com/xrplwatch/valtrack/registry"
	"github.com/xrplwatch/valtrack/tracker"
)

type config struct {
	global_config.GlobalConfig `yaml:"global"`
	Tracker                    tracker.Options `yaml:"tracker"`

	RenderInterval time.Duration `yaml:"RenderInterval" env:"RENDER_INTERVAL" env-default:"30s" env-description:"How often the ballot table is printed"`
}

var cfg config

var globalArgs global_config.Args

// StartTallyCmd runs a demonstration consumer that tallies amendment ballots
// from the live validation feed and prints them periodically.
var StartTallyCmd = &cobra.Command{
	Use:   "amendments",
	Short: "Tallies amendment ballots from live validation votes",
	Run: func(cmd *cobra.Command, args []string) {
		if globalArgs.ConfigPath != "" {
			if err := cleanenv.ReadConfig(globalArgs.ConfigPath, &cfg); err != nil {
				log.Fatal("could not read config ", err)
			}
		}
		if err := logging.SetGlobalLogger(cfg.LogLevel, cfg.LogLevelFormat, cfg.LogFormat, cfg.LogFilePath); err != nil {
			log.Fatal("could not create logger ", err)
		}
		logger := zap.L().Named(logging.NameAmendmentTally)
		defer logging.CapturePanic(logger)

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		ballots := newTally()

		// ballots only count identities on the current list
		cfg.Tracker.RequireMasterKey = true

		node, err := tracker.New(logger, cfg.Tracker, registry.Callbacks{
			OnValidation: func(vote registry.Vote) {
				if vote.IsOnUNL {
					ballots.record(vote.Amendments, vote.MasterKey, vote.ReceivedAt)
				}
			},
		})
		if err != nil {
			logger.Fatal("could not create tracker", zap.Error(err))
		}
		if err := node.Start(ctx); err != nil {
			logger.Fatal("could not start tracker", zap.Error(err))
		}

		if cfg.RenderInterval <= 0 {
			cfg.RenderInterval = 30 * time.Second
		}
		ticker := time.NewTicker(cfg.RenderInterval)
		defer ticker.Stop()

		for {
			select {
			case now := <-ticker.C:
				render(ballots, len(node.Registry().Validators()), now)
			case <-ctx.Done():
				if err := node.Stop(); err != nil {
					logger.Error("shutdown error", zap.Error(err))
				}
				return
			}
		}
	},
}

func render(ballots *tally, unlSize int, now time.Time) {
	rows := ballots.rows(now)
	if len(rows) == 0 {
		fmt.Println("no amendment votes observed yet")
		return
	}

	tbl := table.New(os.Stdout)
	tbl.SetHeaders("Amendment", "Votes", "Support")
	for _, row := range rows {
		support := "n/a"
		if unlSize > 0 {
			support = fmt.Sprintf("%.1f%%", 100*float64(row.votes)/float64(unlSize))
		}
		tbl.AddRow(row.amendment, fmt.Sprintf("%d", row.votes), support)
	}
	fmt.Printf("\nAmendment ballots at %s (UNL size %d)\n", now.UTC().Format(time.RFC3339), unlSize)
	tbl.Render()
}

func init() {
	global_config.ProcessArgs(&cfg, &globalArgs, StartTallyCmd)
}
