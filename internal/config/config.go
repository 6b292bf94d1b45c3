package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	// Bundled zone database so the configured zone resolves on hosts without
	// /usr/share/zoneinfo.
	_ "time/tzdata"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"

	"monthcal/internal/calendar"
	"monthcal/internal/model"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions. Environment variables (MONTHCAL_*) override the file.

var ErrEmptyPath = errors.New("config path is empty")

// GroupConfig describes a visibility group (category) of records.
type GroupConfig struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Color string `yaml:"color" json:"color"`
	// Active groups are shown unless a request picks its own set.
	Active bool `yaml:"active" json:"active"`
}

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown in the UI.
	Name string `yaml:"name" json:"name"`
	// Group is the group id records from this source belong to. Defaults to ID.
	Group string `yaml:"group" json:"group"`
}

// LayoutConfig selects the line assignment behaviour of the month view.
type LayoutConfig struct {
	// Policy is "reserve" (default) or "first_fit".
	Policy string `yaml:"policy" json:"policy"`
	// MaxVisibleLines caps lines per date; 0 disables the "+N more" overflow.
	MaxVisibleLines int `yaml:"max_visible_lines" json:"max_visible_lines"`
	// TimeFormat is a Go time layout for TIMED records.
	TimeFormat string `yaml:"time_format" json:"time_format"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone every civil date is resolved in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// for pulling ICS sources into the database.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Database is the SQLite file holding records and groups.
	Database string `yaml:"database" json:"database"`

	// CacheDir holds the HTTP cache of ICS bodies.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Preview is where `monthcal capture` writes the PNG served at /preview.png.
	Preview string `yaml:"preview" json:"preview"`

	// LogLevel is "debug", "info" or "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	Layout LayoutConfig `yaml:"layout" json:"layout"`

	Groups []GroupConfig `yaml:"groups" json:"groups"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// envOverrides lists the variables that may override the file.
type envOverrides struct {
	Listen    string `env:"MONTHCAL_LISTEN"`
	Timezone  string `env:"MONTHCAL_TIMEZONE"`
	WeekStart string `env:"MONTHCAL_WEEK_START"`
	Database  string `env:"MONTHCAL_DATABASE"`
	LogLevel  string `env:"MONTHCAL_LOG_LEVEL"`
	Policy    string `env:"MONTHCAL_LINE_POLICY"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    calendar.DefaultTimeZone,
		WeekStart:   "sunday",
		RefreshCron: "*/15 * * * *",
		Database:    "/var/lib/monthcal/monthcal.db",
		CacheDir:    "/var/lib/monthcal/ics-cache",
		Preview:     "/var/lib/monthcal/preview.png",
		LogLevel:    "info",
		Layout: LayoutConfig{
			Policy:     calendar.PolicyReserve.String(),
			TimeFormat: calendar.DefaultTimeLayout,
		},
		Groups:    []GroupConfig{},
		ICS:       []ICSConfig{},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday", "sunday":
		c.WeekStart = strings.ToLower(c.WeekStart)
	default:
		// Unknown value; 한국 달력 관례대로 일요일 시작.
		c.WeekStart = "sunday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.Database == "" {
		c.Database = def.Database
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.Preview == "" {
		c.Preview = def.Preview
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if _, err := calendar.ParseLinePolicy(c.Layout.Policy); err != nil || c.Layout.Policy == "" {
		c.Layout.Policy = def.Layout.Policy
	}
	if c.Layout.MaxVisibleLines < 0 {
		c.Layout.MaxVisibleLines = 0
	}
	if c.Layout.TimeFormat == "" {
		c.Layout.TimeFormat = def.Layout.TimeFormat
	}
	if c.Groups == nil {
		c.Groups = []GroupConfig{}
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			if c.ICS[i].Name != "" {
				c.ICS[i].ID = c.ICS[i].Name
			} else {
				c.ICS[i].ID = c.ICS[i].URL
			}
		}
		if c.ICS[i].Group == "" {
			c.ICS[i].Group = c.ICS[i].ID
		}
	}
}

// ApplyEnv overrides fields from MONTHCAL_* environment variables.
func (c *Config) ApplyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	if o.Listen != "" {
		c.Listen = o.Listen
	}
	if o.Timezone != "" {
		c.Timezone = o.Timezone
	}
	if o.WeekStart != "" {
		c.WeekStart = o.WeekStart
	}
	if o.Database != "" {
		c.Database = o.Database
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.Policy != "" {
		c.Layout.Policy = o.Policy
	}
	c.Normalize()
	return nil
}

// Location resolves Timezone. An unknown zone is an error rather than a
// silent fallback, since every date key depends on it.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// WeekStartDay maps WeekStart to a time.Weekday.
func (c *Config) WeekStartDay() time.Weekday {
	if strings.EqualFold(c.WeekStart, "monday") {
		return time.Monday
	}
	return time.Sunday
}

// CalendarOptions builds the layout pipeline options from the config.
func (c *Config) CalendarOptions() (calendar.Options, error) {
	loc, err := c.Location()
	if err != nil {
		return calendar.Options{}, err
	}
	policy, err := calendar.ParseLinePolicy(c.Layout.Policy)
	if err != nil {
		return calendar.Options{}, err
	}
	return calendar.Options{
		Location:        loc,
		WeekStart:       c.WeekStartDay(),
		TimeLayout:      c.Layout.TimeFormat,
		Policy:          policy,
		MaxVisibleLines: c.Layout.MaxVisibleLines,
	}, nil
}

// ActiveGroups returns the groups marked active, plus every ICS group that
// has no explicit group entry (so a freshly added feed shows up).
func (c *Config) ActiveGroups() calendar.GroupSet {
	known := make(map[string]bool, len(c.Groups))
	ids := make([]string, 0, len(c.Groups))
	for _, g := range c.Groups {
		known[g.ID] = true
		if g.Active {
			ids = append(ids, g.ID)
		}
	}
	for _, src := range c.ICS {
		if !known[src.Group] {
			ids = append(ids, src.Group)
		}
	}
	return calendar.NewGroupSet(ids...)
}

// DefaultActiveGroups is ActiveGroups, except that a config declaring no
// groups and no ICS sources shows every group found in recs.
func (c *Config) DefaultActiveGroups(recs []model.Record) calendar.GroupSet {
	if len(c.Groups) > 0 || len(c.ICS) > 0 {
		return c.ActiveGroups()
	}
	ids := make([]string, 0)
	for _, r := range recs {
		ids = append(ids, r.GroupID)
	}
	return calendar.NewGroupSet(ids...)
}

// AllGroups lists the configured groups followed by the implicit groups of
// ICS sources that have no entry of their own. Active mirrors ActiveGroups.
func (c *Config) AllGroups() []model.Group {
	active := c.ActiveGroups()
	out := make([]model.Group, 0, len(c.Groups))
	seen := make(map[string]bool)
	for _, g := range c.Groups {
		seen[g.ID] = true
		out = append(out, model.Group{ID: g.ID, Name: g.Name, Color: g.Color, Active: active.Has(g.ID)})
	}
	for _, src := range c.ICS {
		if seen[src.Group] {
			continue
		}
		seen[src.Group] = true
		out = append(out, model.Group{ID: src.Group, Name: src.Name, Active: active.Has(src.Group)})
	}
	return out
}

// WithGroupColors returns a copy of recs where records without a color get
// the configured color of their group.
func (c *Config) WithGroupColors(recs []model.Record) []model.Record {
	out := make([]model.Record, len(recs))
	for i, r := range recs {
		if r.GroupColor == "" {
			r.GroupColor = c.GroupColor(r.GroupID)
		}
		out[i] = r
	}
	return out
}

// GroupColor returns the configured color of a group, or "".
func (c *Config) GroupColor(id string) string {
	for _, g := range c.Groups {
		if g.ID == id {
			return g.Color
		}
	}
	return ""
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//
// Environment overrides are applied last in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			if err := cfg.ApplyEnv(); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return ErrEmptyPath
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

	tmp, err := os.CreateTemp(dir, ".monthcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
