package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGroupsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List groups and whether they are shown by default",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			groups := app.Config.AllGroups()
			if len(groups) == 0 {
				fmt.Fprintln(out, "no groups configured; every group found in the records is shown")
				return nil
			}
			fmt.Fprintf(out, "%-16s %-20s %-8s %s\n", "ID", "NAME", "COLOR", "ACTIVE")
			for _, g := range groups {
				active := "no"
				if g.Active {
					active = "yes"
				}
				fmt.Fprintf(out, "%-16s %-20s %-8s %s\n", g.ID, g.Name, g.Color, active)
			}
			return nil
		},
	}
}
