package tasks

import (
	"fmt"
	"strings"

	"github.com/imamik/calcifer/internal/task"
)

const (
	k8sKeyring = keyringDir + "/kubernetes-apt-keyring.gpg"
	k8sList    = "/etc/apt/sources.list.d/kubernetes.list"
)

var kubePackages = []string{"kubelet", "kubeadm", "kubectl"}

// k8sMinor turns "1.30", "v1.30" or "1.30.2" into the "v1.30" form the
// pkgs.k8s.io repositories are named by.
func k8sMinor(version string) string {
	v := strings.TrimPrefix(strings.TrimSpace(version), "v")
	parts := strings.SplitN(v, ".", 3)
	if len(parts) >= 2 {
		v = parts[0] + "." + parts[1]
	}
	return "v" + v
}

// InstallKubernetesTools installs and holds kubelet, kubeadm and kubectl
// from the repository of the configured minor version.
func InstallKubernetesTools() task.Task {
	return task.Func("install_kubernetes_tools", func(tc *task.Context) task.Result {
		minor := k8sMinor(tc.Settings.K8s.Version)
		repo := fmt.Sprintf("https://pkgs.k8s.io/core:/stable:/%s/deb/", minor)

		sr, ok := task.Sequence(tc,
			aptInstallStep("Install Apt Dependencies", "apt-transport-https", "ca-certificates", "curl", "gnupg"),
			keyringStep("Setup Kubernetes Repo Key", repo+"Release.key", k8sKeyring),
			repoStep("Add Kubernetes Repository", k8sList, func(f OSFacts) string {
				return fmt.Sprintf("deb [arch=%s signed-by=%s] %s /", f.Arch, k8sKeyring, repo)
			}),
			aptInstallStep("Install Kube Tools", kubePackages...),
			shStep("Hold Package Versions", "apt-mark hold "+strings.Join(kubePackages, " "), "Failed to hold packages"),
			// kubelet crash-loops until kubeadm configures it, so it is only enabled here.
			shStep("Enable Kubelet Service", "systemctl enable kubelet", "Failed to enable service"),
		)
		if !ok {
			return task.FromStep(sr)
		}
		return task.Changedf("Kubernetes tools (%s) installed & held.", minor)
	})
}
