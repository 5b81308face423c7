package tasks

import (
	"strings"

	"github.com/imamik/calcifer/internal/dispatch"
	"github.com/imamik/calcifer/internal/task"
)

const kubeletConf = "/etc/kubernetes/kubelet.conf"

// JoinWorker joins the host to the cluster with the join command stored by
// init_control_plane.
func JoinWorker() task.Task {
	return task.Func("join_worker", func(tc *task.Context) task.Result {
		if tc.FileExists(kubeletConf) {
			return task.OK("Node already joined")
		}

		var joinCmd string
		sr, ok := task.Sequence(tc,
			task.Step{Name: "Load Join Command", Run: func(tc *task.Context) task.StepResult {
				data, err := tc.Artifacts.Load(tc, ArtifactJoinCommand)
				if err != nil {
					return task.StepFailedf("No join command available, initialise the control plane first: %v", err)
				}
				joinCmd = strings.TrimSpace(string(data))
				if !strings.HasPrefix(joinCmd, "kubeadm join ") {
					return task.StepFailedf("Stored join command is not a kubeadm join: %q", joinCmd)
				}
				return task.StepOK("Join command loaded", nil)
			}},
			task.Step{Name: "Run Kubeadm Join", Run: func(tc *task.Context) task.StepResult {
				args := append(strings.Fields(joinCmd), "--node-name", tc.Host.Name)
				if res := tc.Sudo(dispatch.Cmd(args...)); res.Failed() {
					return task.StepFailedf("Join failed. Output: %s", res.Tail(200))
				}
				return task.StepOK("Node joined", nil)
			}},
		)
		if !ok {
			return task.FromStep(sr)
		}
		return task.Changedf("Worker %s joined the cluster", tc.Host.Name)
	})
}
