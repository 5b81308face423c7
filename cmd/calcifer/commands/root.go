// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers
// package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/calcifer/cmd/calcifer/handlers"
)

// Root returns the root command for the calcifer CLI.
func Root() *cobra.Command {
	opts := &handlers.Options{}

	cmd := &cobra.Command{
		Use:           "calcifer",
		Short:         "Bootstrap kubeadm clusters and connect them to Azure Arc",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "Path to settings file (default: cluster_config.yaml)")
	flags.StringVarP(&opts.InventoryPath, "inventory", "i", "", "Path to inventory file (default: inventory/hosts.yaml)")
	flags.StringVarP(&opts.Target, "target", "t", "", "Only run on the host with this exact name")
	flags.BoolVarP(&opts.Quiet, "quiet", "q", false, "Hide sub-step results")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Write debug messages to the log file")
	flags.BoolVarP(&opts.AskBecomePass, "ask-become-pass", "K", false, "Prompt for the sudo password")
	flags.StringVar(&opts.LogFile, "log-file", "", "Path to the log file (default: ~/.local/state/calcifer/calcifer.log)")
	flags.StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
	flags.IntVar(&opts.MaxParallel, "max-parallel", 0, "Maximum hosts running a task at once (default: from settings)")
	flags.BoolVar(&opts.TUI, "tui", false, "Show a live dashboard when attached to a terminal")
	flags.StringVar(&opts.HCloudSelector, "hcloud-selector", "", "Discover hosts from Hetzner Cloud servers matching this label selector")

	// Goal commands
	cmd.AddCommand(Init(opts))
	cmd.AddCommand(ConnectArc(opts))
	cmd.AddCommand(Status(opts))
	cmd.AddCommand(Run(opts))

	// Utility commands
	cmd.AddCommand(Goals())
	cmd.AddCommand(Doctor())
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}
