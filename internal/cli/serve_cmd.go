package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"monthcal/internal/ics"
	appLog "monthcal/internal/log"
	"monthcal/internal/records"
	"monthcal/internal/refresh"
	"monthcal/internal/store"
	"monthcal/internal/web"
)

func newServeCmd(app *App) *cobra.Command {
	var listen string
	var noRefresh bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calendar API and page, refreshing ICS feeds on schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config
			if listen != "" {
				cfg.Listen = listen
			}

			appLog.Info("effective config",
				"listen", cfg.Listen,
				"timezone", cfg.Timezone,
				"week_start", cfg.WeekStart,
				"refresh", cfg.RefreshCron,
				"line_policy", cfg.Layout.Policy,
				"max_visible_lines", cfg.Layout.MaxVisibleLines,
				"groups", len(cfg.Groups),
				"ics_count", len(cfg.ICS),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			var provider records.Provider
			if app.RecordsPath != "" {
				provider = &records.FileProvider{Path: app.RecordsPath}
			} else {
				db, err := app.openStore()
				if err != nil {
					return err
				}
				defer db.Close()
				recRepo := store.NewRecordRepo(db)
				provider = records.NewStoreProvider(recRepo)

				if !noRefresh && len(cfg.ICS) > 0 {
					syncer := &refresh.Syncer{
						Fetcher:     ics.NewFetcher(cfg.CacheDir),
						Sources:     app.icsSources(),
						Records:     recRepo,
						Groups:      store.NewGroupRepo(db),
						Location:    loc,
						KnownGroups: cfg.AllGroups(),
					}
					job := func(ctx context.Context) {
						from, to := refresh.DefaultWindow(time.Now(), cfg.WeekStartDay(), loc)
						if _, err := syncer.SyncWindow(ctx, from, to); err != nil {
							appLog.Error("refresh failed", err)
						}
					}
					sched, err := refresh.NewScheduler(cfg.RefreshCron, loc, job)
					if err != nil {
						return err
					}
					// 시작 직후 한 번 동기화한 뒤 cron 주기로 갱신한다.
					go job(ctx)
					sched.Start(ctx)
					defer sched.Stop()
				}
			}

			srv, err := web.NewServer(cfg, provider)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	cmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "Do not pull ICS feeds into the database")
	return cmd
}
