package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"unitimeline/internal/aggregator"
	"unitimeline/internal/config"
	"unitimeline/internal/normalize"
	"unitimeline/internal/participation"
	"unitimeline/internal/tiss"
	"unitimeline/internal/tuwel"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "unitimeline",
		Usage: "Merge LMS deadlines and catalog exam dates into one timeline.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: config.DefaultPath(), EnvVars: []string{"UNITIMELINE_CONFIG"}, Usage: "Path to the YAML config file."},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error. Overrides the config file."},
		},
		Commands: []*cli.Command{
			timelineCommand(),
			weeklyCommand(),
			todoCommand(),
			examAlertsCommand(),
			exportCalendarCommand(),
			publishCalendarCommand(),
			trackParticipationCommand(),
			participationStatsCommand(),
			rcCommand(),
		},
	}
}

// env is what every command needs: the effective config and a logger.
type env struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	loc        *time.Location
}

func loadEnv(c *cli.Context) (*env, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:        cfg,
		configPath: path,
		logger:     setupLogger(cfg.LogLevel),
		loc:        loc,
	}, nil
}

func (e *env) now() time.Time { return time.Now().In(e.loc) }

func (e *env) aggregator() (*aggregator.Aggregator, error) {
	if e.cfg.LMS.Token == "" {
		return nil, fmt.Errorf("no LMS token configured; set TUWEL_TOKEN or lms.token in %s", e.configPath)
	}
	lms := tuwel.NewClient(e.logger, e.cfg.LMS.BaseURL, e.cfg.LMS.Token, e.cfg.LMS.Timeout)

	var catalog aggregator.Catalog
	if !e.cfg.Catalog.Disabled {
		catalog = tiss.NewClient(e.logger, e.cfg.Catalog.BaseURL, e.cfg.Catalog.Timeout)
	}
	return aggregator.New(e.logger, lms, catalog, normalize.New(e.loc)), nil
}

func (e *env) store() *participation.Store {
	return participation.NewStore(e.logger, e.cfg.StoreDir(e.configPath), e.cfg.Participation.DefaultGroupSize)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
