package tasks

import (
	"fmt"
	"path"
	"strings"

	"github.com/imamik/calcifer/internal/dispatch"
	"github.com/imamik/calcifer/internal/remotefile"
	"github.com/imamik/calcifer/internal/task"
)

const (
	keyringDir = "/etc/apt/keyrings"
	// aptFrontend keeps apt from opening debconf dialogs.
	aptFrontend = "noninteractive"
)

// aptUpdate refreshes the package index.
func aptUpdate(tc *task.Context) dispatch.Result {
	return tc.Sudo(dispatch.Cmd("apt-get", "update").WithEnv("DEBIAN_FRONTEND", aptFrontend))
}

// aptInstall updates the index and installs pkgs.
func aptInstall(tc *task.Context, pkgs ...string) dispatch.Result {
	if res := aptUpdate(tc); res.Failed() {
		return res
	}
	args := append([]string{"apt-get", "install", "-y"}, pkgs...)
	return tc.Sudo(dispatch.Cmd(args...).WithEnv("DEBIAN_FRONTEND", aptFrontend))
}

// aptInstallStep wraps aptInstall into a sub-step.
func aptInstallStep(name string, pkgs ...string) task.Step {
	return task.Step{Name: name, Run: func(tc *task.Context) task.StepResult {
		if res := aptInstall(tc, pkgs...); res.Failed() {
			return task.StepFailedf("Apt install of %s failed: %s", strings.Join(pkgs, " "), res.Tail(200))
		}
		return task.StepOK(fmt.Sprintf("Installed %s", strings.Join(pkgs, " ")), nil)
	}}
}

// keyringStep downloads an armored GPG key into the keyrings directory
// unless it is already there.
func keyringStep(name, url, keyPath string) task.Step {
	return task.Step{Name: name, Run: func(tc *task.Context) task.StepResult {
		if tc.FileExists(keyPath) {
			return task.StepOK("Keyring already present", nil)
		}
		if res := tc.Sudo(dispatch.Cmd("mkdir", "-p", path.Dir(keyPath))); res.Failed() {
			return task.StepFailedf("Failed to create %s: %s", path.Dir(keyPath), res.Output)
		}
		script := fmt.Sprintf("curl -fsSL %s | gpg --dearmor --yes -o %s", url, keyPath)
		if res := tc.Sudo(dispatch.Sh(script)); res.Failed() {
			return task.StepFailedf("Failed to download GPG key from %s: %s", url, res.Tail(200))
		}
		if res := tc.Sudo(dispatch.Cmd("chmod", "a+r", keyPath)); res.Failed() {
			return task.StepFailedf("Failed to make %s readable: %s", keyPath, res.Output)
		}
		return task.StepOK("Keyring installed", nil)
	}}
}

// repoStep writes an apt source list built from the host's OS facts.
func repoStep(name, listPath string, line func(OSFacts) string) task.Step {
	return task.Step{Name: name, Run: func(tc *task.Context) task.StepResult {
		facts, ok := FactsOf(tc.Host)
		if !ok {
			return task.StepFailed("Missing OS facts. Run 'gather_system_facts' first.")
		}
		return writeStep(tc, listPath, line(facts)+"\n")
	}}
}

// writeStep turns a remotefile write into a step result.
func writeStep(tc *task.Context, p, content string, opts ...remotefile.WriteOption) task.StepResult {
	res := tc.WriteFile(p, content, opts...)
	return fromWrite(p, res)
}

func fromWrite(p string, res remotefile.WriteResult) task.StepResult {
	if !res.Succeeded {
		return task.StepFailedf("Failed to write %s (%s): %s", p, res.Stage, res.Message)
	}
	if res.Changed {
		return task.StepOK(p+" updated", true)
	}
	return task.StepOK(p+" up to date", false)
}

// shStep runs script elevated and fails with msg on a non-zero exit.
func shStep(name, script, msg string) task.Step {
	return task.Step{Name: name, Run: func(tc *task.Context) task.StepResult {
		if res := tc.Sudo(dispatch.Sh(script)); res.Failed() {
			return task.StepFailedf("%s: %s", msg, res.Tail(200))
		}
		return task.StepOK(name, nil)
	}}
}

// commandExists reports whether name is on the host's PATH.
func commandExists(tc *task.Context, name string) bool {
	return tc.Run(dispatch.Cmd("which", name)).Succeeded
}

// changed reports whether a step wrote something. Steps built on fromWrite
// carry a bool in Data.
func changed(sr task.StepResult) bool {
	v, _ := sr.Data.(bool)
	return v
}
