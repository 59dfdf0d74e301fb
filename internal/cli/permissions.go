package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"casehub-backend/internal/workflow"
	"github.com/spf13/cobra"
)

// NewPermissionsCommand prints which role may run which workflow action.
func NewPermissionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "permissions",
		Short: "Show the role/action permission matrix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.Format != "text" {
				matrix := make(map[string][]string, len(workflow.Roles))
				for _, role := range workflow.Roles {
					actions := []string{}
					for _, a := range workflow.Allowed(role) {
						actions = append(actions, string(a))
					}
					matrix[string(role)] = actions
				}
				return writeStructured(cmd.OutOrStdout(), rootOpts.Format, matrix)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			header := []string{"ROLE"}
			for _, a := range workflow.Actions {
				header = append(header, strings.ToUpper(string(a)))
			}
			fmt.Fprintln(tw, strings.Join(header, "\t"))
			for _, role := range workflow.Roles {
				row := []string{string(role)}
				for _, a := range workflow.Actions {
					mark := "-"
					if workflow.CanPerform(role, a) {
						mark = "x"
					}
					row = append(row, mark)
				}
				fmt.Fprintln(tw, strings.Join(row, "\t"))
			}
			return tw.Flush()
		},
	}
}
