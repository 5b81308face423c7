package tasks

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/imamik/calcifer/internal/dispatch"
	"github.com/imamik/calcifer/internal/task"
)

const (
	containerdConfig = "/etc/containerd/config.toml"
	dockerKeyring    = keyringDir + "/docker.gpg"
	dockerList       = "/etc/apt/sources.list.d/docker.list"
)

// InstallContainerd installs containerd from the Docker repository and
// configures it for the systemd cgroup driver kubelet expects.
func InstallContainerd() task.Task {
	return task.Func("install_containerd", func(tc *task.Context) task.Result {
		distro := "ubuntu"
		if facts, ok := FactsOf(tc.Host); ok {
			distro = facts.ID
		}

		sr, ok := task.Sequence(tc,
			aptInstallStep("Install Dependencies",
				"ca-certificates", "curl", "gnupg", "apt-transport-https", "software-properties-common"),
			keyringStep("Setup Docker GPG Key",
				fmt.Sprintf("https://download.docker.com/linux/%s/gpg", distro), dockerKeyring),
			repoStep("Configure Docker Repository", dockerList, dockerRepoLine),
			aptInstallStep("Install Containerd Package", "containerd.io"),
			task.Step{Name: "Configure Containerd (config.toml)", Run: configureContainerd},
			shStep("Restart Containerd Service",
				"systemctl restart containerd && systemctl enable containerd",
				"Failed to restart service"),
		)
		if !ok {
			return task.FromStep(sr)
		}
		return task.Changed("Containerd installed, configured (SystemdCgroup) & running.")
	})
}

func dockerRepoLine(f OSFacts) string {
	return fmt.Sprintf("deb [arch=%s signed-by=%s] https://download.docker.com/linux/%s %s stable",
		f.Arch, dockerKeyring, f.ID, f.Codename)
}

var (
	systemdCgroupRe   = regexp.MustCompile(`^(\s*)SystemdCgroup\s*=`)
	disabledPluginsRe = regexp.MustCompile(`^(\s*)disabled_plugins\s*=\s*\[(.*)\]\s*$`)
)

func configureContainerd(tc *task.Context) task.StepResult {
	if res := tc.Sudo(dispatch.Cmd("mkdir", "-p", "/etc/containerd")); res.Failed() {
		return task.StepFailedf("Failed to create /etc/containerd: %s", res.Output)
	}

	current := tc.ReadFile(containerdConfig)
	if current == "" {
		res := tc.Run(dispatch.Cmd("containerd", "config", "default"))
		if res.Failed() || strings.TrimSpace(res.Stdout) == "" {
			return task.StepFailedf("Failed to generate default config: %s", res.Tail(200))
		}
		current = res.Stdout
	}

	sr := writeStep(tc, containerdConfig, patchContainerdConfig(current))
	if !sr.Success {
		return sr
	}
	if changed(sr) {
		return task.StepOK("Config patched (SystemdCgroup=true)", true)
	}
	return task.StepOK("Config already correct", false)
}

// patchContainerdConfig sets every SystemdCgroup key to true and drops the
// CRI plugin from disabled_plugins. A packaged config.toml ships with CRI
// disabled.
func patchContainerdConfig(content string) string {
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	for i, l := range lines {
		if m := systemdCgroupRe.FindStringSubmatch(l); m != nil {
			lines[i] = m[1] + "SystemdCgroup = true"
			continue
		}
		if m := disabledPluginsRe.FindStringSubmatch(l); m != nil {
			if keep, dropped := withoutCRI(m[2]); dropped {
				lines[i] = m[1] + "disabled_plugins = [" + strings.Join(keep, ", ") + "]"
			}
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

func withoutCRI(list string) (keep []string, dropped bool) {
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name := strings.Trim(item, `"'`)
		if name == "cri" || strings.HasSuffix(name, ".cri") {
			dropped = true
			continue
		}
		keep = append(keep, item)
	}
	return keep, dropped
}
