package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"monthcal/internal/calendar"
	appLog "monthcal/internal/log"
	"monthcal/internal/records"
	"monthcal/internal/textview"
)

func newShowCmd(app *App) *cobra.Command {
	var (
		month     string
		groups    string
		asJSON    bool
		live      bool
		cellWidth int
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a month as a terminal grid or as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := app.Config.CalendarOptions()
			if err != nil {
				return err
			}
			year, monthIndex, err := records.ParseMonth(month, time.Now().In(opts.Location))
			if err != nil {
				return err
			}

			provider, closeFn, err := app.provider(live)
			if err != nil {
				return err
			}
			defer closeFn()

			from, to := records.Window(year, monthIndex, opts.WeekStart, opts.Location)
			recs, err := provider.Records(cmd.Context(), from, to)
			if err != nil {
				return fmt.Errorf("loading records: %w", err)
			}
			recs = app.Config.WithGroupColors(recs)

			active := app.Config.DefaultActiveGroups(recs)
			if cmd.Flags().Changed("groups") {
				active = calendar.NewGroupSet(splitGroups(groups)...)
			}

			vm := calendar.Build(calendar.Input{
				Records:      recs,
				ActiveGroups: active,
				Year:         year,
				MonthIndex:   monthIndex,
			}, opts)
			if len(vm.Dropped) > 0 {
				appLog.Info("records dropped from layout", "count", len(vm.Dropped), "ids", strings.Join(vm.Dropped, ","))
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(vm)
			}
			_, err = fmt.Fprint(out, textview.Render(vm, textview.Options{CellWidth: cellWidth}))
			return err
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "Month to show as YYYY-MM (default: current month)")
	cmd.Flags().StringVar(&groups, "groups", "", "Comma-separated group ids to show (default: active groups)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the view model as JSON")
	cmd.Flags().BoolVar(&live, "live", false, "Read ICS feeds directly instead of the database")
	cmd.Flags().IntVar(&cellWidth, "width", 0, "Column width in terminal cells")
	return cmd
}
