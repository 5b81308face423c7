package tasks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/imamik/calcifer/internal/dispatch"
	"github.com/imamik/calcifer/internal/remotefile"
	"github.com/imamik/calcifer/internal/task"
)

const (
	adminConf         = "/etc/kubernetes/admin.conf"
	kubeadmConfigPath = "/tmp/kubeadm-config.yaml"
	controlPlaneTaint = "node-role.kubernetes.io/control-plane:NoSchedule-"
)

// InitControlPlane runs kubeadm init on the primary control-plane host,
// installs the CNI and stores the admin kubeconfig and the worker join
// command as artifacts.
func InitControlPlane() task.Task {
	return task.Func("init_control_plane", func(tc *task.Context) task.Result {
		if !isPrimary(tc.Host) {
			return task.Warning("Only the primary control-plane node is initialised; join this node manually")
		}

		k8s := tc.Settings.K8s
		initialized := false

		steps := []task.Step{
			{Name: "Check Cluster Status", Run: func(tc *task.Context) task.StepResult {
				initialized = tc.FileExists(adminConf)
				if initialized {
					return task.StepOK("Cluster already initialized", nil)
				}
				return task.StepOK("Cluster not initialized", nil)
			}},
			{Name: "Generate Kubeadm Config", Run: func(tc *task.Context) task.StepResult {
				if initialized {
					return task.StepOK("Skipped, cluster already initialized", nil)
				}
				content, err := RenderKubeadmConfig(KubeadmParams{
					NodeName:    tc.Host.Name,
					NodeIP:      tc.Host.Address,
					ClusterName: tc.Settings.Cluster.Name,
					PodSubnet:   k8s.PodNetworkCIDR,
				})
				if err != nil {
					return task.StepFailed(err.Error())
				}
				return writeStep(tc, kubeadmConfigPath, content, remotefile.WithMode("600"))
			}},
			{Name: "Run Kubeadm Init", Run: func(tc *task.Context) task.StepResult {
				if initialized {
					return task.StepOK("Skipped, cluster already initialized", nil)
				}
				res := tc.Sudo(dispatch.Cmd("kubeadm", "init", "--config", kubeadmConfigPath, "--upload-certs"))
				tc.Sudo(dispatch.Cmd("rm", "-f", kubeadmConfigPath))
				if res.Failed() {
					return task.StepFailedf("Init failed. Output: %s", res.Tail(200))
				}
				return task.StepOK("Control Plane Initialized", nil)
			}},
			{Name: "Setup User Kubeconfig", Run: setupUserKubeconfig},
			{Name: "Install CNI Plugin", Run: func(tc *task.Context) task.StepResult {
				res := tc.Sudo(kubectl("apply", "-f", k8s.CNIManifestURL))
				if res.Failed() {
					return task.StepFailedf("Failed to apply CNI manifest: %s", res.Tail(200))
				}
				return task.StepOK("CNI Plugin installed", nil)
			}},
			{Name: "Untaint Control Plane", Run: func(tc *task.Context) task.StepResult {
				res := tc.Sudo(kubectl("taint", "nodes", tc.Host.Name, controlPlaneTaint))
				if res.Failed() {
					if strings.Contains(res.Output, "not found") {
						return task.StepOK("Taint already removed", nil)
					}
					return task.StepFailedf("Failed to untaint: %s", res.Output)
				}
				return task.StepOK("Control Plane untainted", nil)
			}},
			{Name: "Fetch Admin Config", Run: fetchAdminConfig},
			{Name: "Store Join Command", Run: storeJoinCommand},
		}

		sr, ok := task.Sequence(tc, steps...)
		if !ok {
			return task.FromStep(sr)
		}
		if initialized {
			return task.OK("Cluster Already Up (Verified CNI/Taints)")
		}
		return task.Changed("Cluster Initialized")
	})
}

// kubectl runs against the admin kubeconfig, so it needs elevation.
func kubectl(args ...string) dispatch.Command {
	return dispatch.Cmd(append([]string{"kubectl", "--kubeconfig", adminConf}, args...)...)
}

// setupUserKubeconfig copies admin.conf to ~/.kube/config of the connecting
// user.
func setupUserKubeconfig(tc *task.Context) task.StepResult {
	res := tc.Run(dispatch.Sh(`printf '%s %s:%s' "$HOME" "$(id -u)" "$(id -g)"`))
	if res.Failed() {
		return task.StepFailedf("Failed to resolve the remote user: %s", res.Output)
	}
	home, owner, ok := strings.Cut(res.Trimmed(), " ")
	if !ok || home == "" {
		return task.StepFailedf("Unexpected user info %q", res.Trimmed())
	}

	kubeDir := home + "/.kube"
	if res := tc.Run(dispatch.Cmd("mkdir", "-p", kubeDir)); res.Failed() {
		return task.StepFailedf("Failed to create %s: %s", kubeDir, res.Output)
	}
	if res := tc.Sudo(dispatch.Cmd("cp", adminConf, kubeDir+"/config")); res.Failed() {
		return task.StepFailedf("Failed to copy kubeconfig: %s", res.Output)
	}
	if res := tc.Sudo(dispatch.Cmd("chown", owner, kubeDir+"/config")); res.Failed() {
		return task.StepFailedf("Failed to set permissions: %s", res.Output)
	}
	return task.StepOK("User kubeconfig configured", nil)
}

func fetchAdminConfig(tc *task.Context) task.StepResult {
	res := tc.Sudo(dispatch.Cmd("cat", adminConf))
	if res.Failed() {
		return task.StepFailedf("Failed to read remote admin.conf: %s", res.Output)
	}

	saved, err := tc.Artifacts.Save(tc, ArtifactKubeconfig, []byte(res.Stdout))
	if err != nil {
		return task.StepFailedf("Failed to store kubeconfig: %v", err)
	}

	// The configured kubeconfig path may live outside the artifact directory.
	local := tc.Settings.KubeconfigPath()
	if local != "" && filepath.Clean(local) != filepath.Clean(saved) {
		if err := writePrivateFile(local, []byte(res.Stdout)); err != nil {
			return task.StepFailedf("Failed to write local file: %v", err)
		}
		saved = local
	}
	return task.StepOK("Saved to "+saved, nil)
}

func storeJoinCommand(tc *task.Context) task.StepResult {
	res := tc.Sudo(dispatch.Cmd("kubeadm", "token", "create", "--print-join-command"))
	if res.Failed() {
		return task.StepFailedf("Failed to create join token: %s", res.Output)
	}
	cmd := res.Trimmed()
	if !strings.HasPrefix(cmd, "kubeadm join ") {
		return task.StepFailedf("Unexpected join command output: %q", cmd)
	}
	if _, err := tc.Artifacts.Save(tc, ArtifactJoinCommand, []byte(cmd+"\n")); err != nil {
		return task.StepFailedf("Failed to store join command: %v", err)
	}
	return task.StepOK("Join command stored", nil)
}

func writePrivateFile(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return os.Chmod(p, 0o600)
}
