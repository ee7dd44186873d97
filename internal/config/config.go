package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"unitimeline/internal/models"
)

const (
	dirName  = ".unitimeline"
	fileName = "config.yaml"
)

// Dashboard widgets a user can enable.
const (
	WidgetTimeline      = "timeline"
	WidgetTodo          = "todo"
	WidgetWeekly        = "weekly"
	WidgetExamAlerts    = "exam_alerts"
	WidgetParticipation = "participation"
)

var knownWidgets = []string{WidgetTimeline, WidgetTodo, WidgetWeekly, WidgetExamAlerts, WidgetParticipation}

// LMSConfig points at the learning platform's web service.
type LMSConfig struct {
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	Token   string        `yaml:"token" env:"TOKEN"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// CatalogConfig points at the course catalog API. Disabled skips exam dates.
type CatalogConfig struct {
	BaseURL  string        `yaml:"base_url" env:"BASE_URL"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
	Disabled bool          `yaml:"disabled" env:"DISABLED"`
}

// ExportConfig controls the calendar file export.
type ExportConfig struct {
	Path           string        `yaml:"path" env:"PATH"`
	CalendarName   string        `yaml:"calendar_name" env:"CALENDAR_NAME"`
	RequireEntries bool          `yaml:"require_entries" env:"REQUIRE_ENTRIES"`
	EventDuration  time.Duration `yaml:"event_duration" env:"EVENT_DURATION"`
}

// ParticipationConfig controls the participation store.
type ParticipationConfig struct {
	// Dir defaults to "participation" next to the config file.
	Dir              string `yaml:"dir" env:"DIR"`
	DefaultGroupSize int    `yaml:"default_group_size" env:"DEFAULT_GROUP_SIZE"`
}

// CalDAVConfig is the optional publish destination.
type CalDAVConfig struct {
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
	Calendar string `yaml:"calendar" env:"CALENDAR"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA zone used for timestamps without offset and for
	// "today" (default Europe/Vienna).
	Timezone string `yaml:"timezone" env:"TIMELINE_TIMEZONE"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	LMS           LMSConfig           `yaml:"lms" envPrefix:"TUWEL_"`
	Catalog       CatalogConfig       `yaml:"catalog" envPrefix:"TISS_"`
	Export        ExportConfig        `yaml:"export" envPrefix:"EXPORT_"`
	Participation ParticipationConfig `yaml:"participation" envPrefix:"PARTICIPATION_"`
	CalDAV        CalDAVConfig        `yaml:"caldav" envPrefix:"CALDAV_"`

	// Widgets lists the enabled dashboard widgets, a subset of the Widget* constants.
	Widgets []string `yaml:"widgets" env:"WIDGETS" envSeparator:","`
}

// DefaultPath returns $HOME/.unitimeline/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(dirName, fileName)
	}
	return filepath.Join(home, dirName, fileName)
}

func defaultExportPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "unified_timeline.ics"
	}
	return filepath.Join(home, "Downloads", "unified_timeline.ics")
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone: models.InstitutionZone,
		LogLevel: "info",
		LMS: LMSConfig{
			BaseURL: "https://tuwel.tuwien.ac.at",
			Timeout: 15 * time.Second,
		},
		Catalog: CatalogConfig{
			BaseURL: "https://tiss.tuwien.ac.at/api",
			Timeout: 10 * time.Second,
		},
		Export: ExportConfig{
			Path:          defaultExportPath(),
			CalendarName:  "Uni Timeline",
			EventDuration: time.Hour,
		},
		Participation: ParticipationConfig{DefaultGroupSize: 1},
		Widgets:       slices.Clone(knownWidgets),
	}
}

// Normalize fills in missing/zero values and drops unknown options so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = def.LogLevel
	}
	if c.LMS.BaseURL == "" {
		c.LMS.BaseURL = def.LMS.BaseURL
	}
	if c.LMS.Timeout <= 0 {
		c.LMS.Timeout = def.LMS.Timeout
	}
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = def.Catalog.BaseURL
	}
	if c.Catalog.Timeout <= 0 {
		c.Catalog.Timeout = def.Catalog.Timeout
	}
	if c.Export.Path == "" {
		c.Export.Path = def.Export.Path
	}
	if c.Export.CalendarName == "" {
		c.Export.CalendarName = def.Export.CalendarName
	}
	if c.Export.EventDuration <= 0 {
		c.Export.EventDuration = def.Export.EventDuration
	}
	if c.Participation.DefaultGroupSize < 1 {
		c.Participation.DefaultGroupSize = def.Participation.DefaultGroupSize
	}

	if c.Widgets == nil {
		c.Widgets = def.Widgets
	} else {
		widgets := make([]string, 0, len(c.Widgets))
		for _, w := range c.Widgets {
			w = strings.ToLower(strings.TrimSpace(w))
			if slices.Contains(knownWidgets, w) && !slices.Contains(widgets, w) {
				widgets = append(widgets, w)
			}
		}
		c.Widgets = widgets
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	return loc, nil
}

// StoreDir is the participation store directory for a config loaded from configPath.
func (c *Config) StoreDir(configPath string) string {
	if c.Participation.Dir != "" {
		return c.Participation.Dir
	}
	return filepath.Join(filepath.Dir(configPath), "participation")
}

// WidgetEnabled reports whether the named widget is enabled.
func (c *Config) WidgetEnabled(name string) bool {
	return slices.Contains(c.Widgets, name)
}

// Load loads configuration from the given YAML path and applies environment
// overrides.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (parent directory created as needed).
//   - Otherwise the YAML is read into Config.
//   - Environment variables override file values; the result is normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes cfg to path atomically via a temp file + rename, with 0600
// permissions on the result.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".unitimeline-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
