package tasks

import (
	"github.com/imamik/calcifer/internal/inventory"
	"github.com/imamik/calcifer/internal/k8s"
	"github.com/imamik/calcifer/internal/registry"
	"github.com/imamik/calcifer/internal/task"
)

// Goal names.
const (
	GoalInit   = "INIT"
	GoalArc    = "ARC"
	GoalStatus = "STATUS"
)

// Options customise DefaultRegistry.
type Options struct {
	// KubeClient builds the API client of the cluster checks. Defaults to
	// k8s.NewClientFromBytes.
	KubeClient KubeClientFactory
}

// DefaultRegistry returns the sealed registry of the built-in goals.
func DefaultRegistry(opts Options) *registry.Registry {
	if opts.KubeClient == nil {
		opts.KubeClient = k8s.NewClientFromBytes
	}

	r := registry.New(nil)

	localBase := func() []task.Task {
		return []task.Task{CheckInternetAccess(), GatherSystemFacts(), EnsureAzureCLI(), EnsureAzureLogin()}
	}
	nodeBase := func() []task.Task {
		return []task.Task{
			CheckInternetAccess(),
			GatherSystemFacts(),
			SetHostnameAndHosts(),
			PrepareK8sNode(),
			InstallContainerd(),
			InstallKubernetesTools(),
		}
	}

	r.MustRegister(GoalInit, inventory.GroupLocalMachine, localBase()...)
	r.MustRegister(GoalInit, inventory.GroupControlPlane, append(nodeBase(), InitControlPlane(), SetupFluxCD())...)
	r.MustRegister(GoalInit, inventory.GroupWorker, append(nodeBase(), JoinWorker(), WaitNodeReady(opts.KubeClient))...)

	r.MustRegister(GoalArc, inventory.GroupLocalMachine, append(localBase(), InstallArcAgent())...)

	r.MustRegister(GoalStatus, inventory.GroupLocalMachine, VerifyClusterNodes(opts.KubeClient))

	r.Seal()
	return r
}
