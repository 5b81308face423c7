package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/calcifer/internal/inventory"
	"github.com/imamik/calcifer/internal/registry"
)

func taskNames(t *testing.T, r *registry.Registry, goal, group string) []string {
	t.Helper()
	chain, err := r.Lookup(goal, group)
	require.NoError(t, err)
	names := make([]string, 0, len(chain))
	for _, tk := range chain {
		names = append(names, tk.Name())
	}
	return names
}

func TestDefaultRegistry_Goals(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry(Options{})
	assert.Equal(t, []string{GoalArc, GoalInit, GoalStatus}, r.Goals())
	assert.ErrorIs(t, r.Register("EXTRA", inventory.GroupLocalMachine), registry.ErrSealed)
}

func TestDefaultRegistry_Chains(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry(Options{})
	nodeBase := []string{
		"check_internet_access",
		"gather_system_facts",
		"set_hostname_and_hosts",
		"prepare_k8s_node",
		"install_containerd",
		"install_kubernetes_tools",
	}
	localBase := []string{"check_internet_access", "gather_system_facts", "ensure_azure_cli", "ensure_azure_login"}

	tests := []struct {
		goal, group string
		want        []string
	}{
		{GoalInit, inventory.GroupLocalMachine, localBase},
		{GoalInit, inventory.GroupControlPlane, append(append([]string{}, nodeBase...), "init_control_plane", "setup_fluxcd")},
		{GoalInit, inventory.GroupWorker, append(append([]string{}, nodeBase...), "join_worker", "wait_node_ready")},
		{GoalArc, inventory.GroupLocalMachine, append(append([]string{}, localBase...), "install_arc_agent")},
		{GoalArc, inventory.GroupControlPlane, []string{}},
		{GoalStatus, inventory.GroupLocalMachine, []string{"verify_cluster_nodes"}},
	}
	for _, tt := range tests {
		t.Run(tt.goal+"/"+tt.group, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, taskNames(t, r, tt.goal, tt.group))
		})
	}
}

func TestDefaultRegistry_UnknownGoal(t *testing.T) {
	t.Parallel()

	_, err := DefaultRegistry(Options{}).Lookup("DEPLOY", inventory.GroupLocalMachine)
	assert.ErrorIs(t, err, registry.ErrUnknownGoal)
}
