package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"monthcal/internal/ics"
	"monthcal/internal/records"
	"monthcal/internal/refresh"
	"monthcal/internal/store"
)

func newImportCmd(app *App) *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Pull the configured ICS feeds into the database once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config
			if len(cfg.ICS) == 0 {
				return errors.New("no ics sources configured")
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			from, to := refresh.DefaultWindow(time.Now(), cfg.WeekStartDay(), loc)
			if month != "" {
				year, monthIndex, err := records.ParseMonth(month, time.Now().In(loc))
				if err != nil {
					return err
				}
				from, to = records.Window(year, monthIndex, cfg.WeekStartDay(), loc)
			}

			db, err := app.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			syncer := &refresh.Syncer{
				Fetcher:     ics.NewFetcher(cfg.CacheDir),
				Sources:     app.icsSources(),
				Records:     store.NewRecordRepo(db),
				Groups:      store.NewGroupRepo(db),
				Location:    loc,
				KnownGroups: cfg.AllGroups(),
			}
			res, err := syncer.SyncWindow(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d records into %d groups (%s .. %s)\n",
				res.Records, res.Groups, from.Format(time.DateOnly), to.Format(time.DateOnly))
			return nil
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "Only import the grid of this month (YYYY-MM)")
	return cmd
}
