package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/calcifer/cmd/calcifer/handlers"
	"github.com/imamik/calcifer/internal/tasks"
)

// Init returns the command that bootstraps the cluster (goal INIT).
func Init(opts *handlers.Options) *cobra.Command {
	return goalCommand(opts, "init", tasks.GoalInit,
		"Bootstrap the Kubernetes cluster",
		`Prepare every node, initialize the control plane with kubeadm, join the
workers and bootstrap Flux.

Tasks are idempotent: re-running init after a failure continues where the
previous run stopped.

Examples:
  # Bootstrap using cluster_config.yaml and inventory/hosts.yaml
  calcifer init

  # Prompt for the sudo password
  calcifer init -K

  # Re-run on a single worker
  calcifer init --target worker-2`)
}

// ConnectArc returns the command that projects the cluster into Azure Arc
// (goal ARC).
func ConnectArc(opts *handlers.Options) *cobra.Command {
	return goalCommand(opts, "connect-arc", tasks.GoalArc,
		"Connect the cluster to Azure Arc",
		`Install the Azure CLI on the control machine, verify the az login and
connect the cluster with az connectedk8s.

The admin kubeconfig fetched by 'calcifer init' is used.

Environment variables:
  AZURE_SUBSCRIPTION_ID, AZURE_RESOURCE_GROUP, AZURE_LOCATION override the
  azure section of the settings file.`)
}

// Status returns the command that reports node readiness (goal STATUS).
func Status(opts *handlers.Options) *cobra.Command {
	return goalCommand(opts, "status", tasks.GoalStatus,
		"Show node readiness",
		`Query the cluster API with the stored admin kubeconfig and report every
node that is not Ready.`)
}

func goalCommand(opts *handlers.Options, use, goal, short, long string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Run(cmd.Context(), goal, *opts)
		},
	}
}

// Run returns the command that executes any registered goal.
func Run(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "run GOAL",
		Short: "Run a goal by name",
		Long: `Run a registered goal by name. See 'calcifer goals' for the list.

Exit codes:
  0  every task succeeded (warnings and skips included)
  1  a task failed and the run halted
  2  the goal is not registered`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Run(cmd.Context(), args[0], *opts)
		},
	}
}

// Goals returns the command listing goals and their task chains.
func Goals() *cobra.Command {
	return &cobra.Command{
		Use:   "goals",
		Short: "List goals and their task chains",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return handlers.Goals()
		},
	}
}
