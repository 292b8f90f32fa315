package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MacroPower/qsync/pkg/stress"
)

// NewScenariosCmd returns the command listing the available scenarios.
func NewScenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the available stress scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cc *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cc.OutOrStdout(), 0, 4, 2, ' ', 0)

			for _, s := range stress.Scenarios() {
				if _, err := fmt.Fprintf(tw, "%s\t%s\n", s.Name, s.Description); err != nil {
					return fmt.Errorf("write scenarios: %w", err)
				}
			}

			if err := tw.Flush(); err != nil {
				return fmt.Errorf("write scenarios: %w", err)
			}

			return nil
		},
	}
}
