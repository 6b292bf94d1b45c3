package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"monthcal/internal/capture"
	"monthcal/internal/records"
)

func newCaptureCmd(app *App) *cobra.Command {
	var (
		month   string
		out     string
		baseURL string
		groups  string
		width   int
		height  int
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Screenshot the /calendar page of a running server to PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			year, monthIndex, err := records.ParseMonth(month, time.Now().In(loc))
			if err != nil {
				return err
			}
			if out == "" {
				out = cfg.Preview
			}
			if baseURL == "" {
				baseURL = "http://" + cfg.Listen
			}

			var groupList []string
			if cmd.Flags().Changed("groups") {
				groupList = splitGroups(groups)
			}
			target, err := capture.CalendarURL(baseURL, year, monthIndex, groupList)
			if err != nil {
				return err
			}

			if _, err := capture.CaptureCalendarPNG(cmd.Context(), capture.CaptureOptions{
				URL:        target,
				OutputPath: out,
				Width:      width,
				Height:     height,
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "Month to capture as YYYY-MM (default: current month)")
	cmd.Flags().StringVar(&out, "out", "", "Output PNG path (default: config preview path)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server base URL (default: http://<listen>)")
	cmd.Flags().StringVar(&groups, "groups", "", "Comma-separated group ids to show")
	cmd.Flags().IntVar(&width, "width", 0, "Viewport width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "Viewport height in pixels")
	return cmd
}
