// Package cli wires the monthcal commands.
package cli

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"monthcal/internal/config"
	"monthcal/internal/ics"
	appLog "monthcal/internal/log"
	"monthcal/internal/records"
	"monthcal/internal/store"
)

const defaultConfigPath = "/etc/monthcal/config.yaml"

// App holds the state shared by all commands after flags are parsed.
type App struct {
	ConfigPath  string
	LogLevel    string
	RecordsPath string

	Config *config.Config
}

// NewRootCmd creates the top-level "monthcal" command and registers all
// subcommands.
func NewRootCmd() *cobra.Command {
	app := &App{}

	root := &cobra.Command{
		Use:           "monthcal",
		Short:         "Month calendar layout server and renderer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.load()
		},
	}

	root.PersistentFlags().StringVar(&app.ConfigPath, "config", defaultConfigPath, "Path to config file")
	root.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level: debug, info or error (overrides config)")
	root.PersistentFlags().StringVar(&app.RecordsPath, "records", "", "Read records from a JSON file instead of the database")

	root.AddCommand(
		newServeCmd(app),
		newShowCmd(app),
		newImportCmd(app),
		newCaptureCmd(app),
		newGroupsCmd(app),
	)
	return root
}

func (a *App) load() error {
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return err
	}
	a.Config = cfg

	level := cfg.LogLevel
	if a.LogLevel != "" {
		level = a.LogLevel
	}
	appLog.SetLevel(appLog.ParseLevel(level))
	return nil
}

// openStore opens the configured database.
func (a *App) openStore() (*sql.DB, error) {
	return store.Open(a.Config.Database)
}

// icsSources converts the configured feeds.
func (a *App) icsSources() []ics.Source {
	out := make([]ics.Source, 0, len(a.Config.ICS))
	for _, c := range a.Config.ICS {
		if c.URL == "" {
			continue
		}
		out = append(out, ics.Source{
			ID:    c.ID,
			URL:   c.URL,
			Group: c.Group,
			Color: a.Config.GroupColor(c.Group),
		})
	}
	return out
}

// provider picks the record source: a JSON file when --records is set, the
// ICS feeds directly when live, the database otherwise. The returned close
// func is never nil.
func (a *App) provider(live bool) (records.Provider, func(), error) {
	noop := func() {}
	if a.RecordsPath != "" {
		return &records.FileProvider{Path: a.RecordsPath}, noop, nil
	}
	if live {
		loc, err := a.Config.Location()
		if err != nil {
			return nil, noop, err
		}
		if len(a.Config.ICS) == 0 {
			return nil, noop, errors.New("no ics sources configured")
		}
		return &records.ICSProvider{
			Fetcher:  ics.NewFetcher(a.Config.CacheDir),
			Sources:  a.icsSources(),
			Location: loc,
		}, noop, nil
	}
	db, err := a.openStore()
	if err != nil {
		return nil, noop, err
	}
	return records.NewStoreProvider(store.NewRecordRepo(db)), func() { db.Close() }, nil
}

func splitGroups(v string) []string {
	if v == "" {
		return []string{}
	}
	return strings.Split(v, ",")
}
