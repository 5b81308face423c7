package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/calcifer/cmd/calcifer/handlers"
)

// Doctor returns the command that checks local prerequisites.
func Doctor() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check tools on the control machine",
		Long: `Check that the tools calcifer runs on the control machine are installed.

sudo and ping are required. az, kubectl and flux are optional; the goals
install or replace them where needed.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return handlers.Doctor()
		},
	}
}
