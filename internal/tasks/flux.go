package tasks

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/imamik/calcifer/internal/config"
	"github.com/imamik/calcifer/internal/dispatch"
	"github.com/imamik/calcifer/internal/remotefile"
	"github.com/imamik/calcifer/internal/task"
	"github.com/imamik/calcifer/internal/util/keygen"
)

const (
	fluxMarker     = "/var/lib/flux_bootstrapped"
	fluxInstallURL = "https://fluxcd.io/install.sh"
)

// SetupFluxCD installs the flux CLI on the primary control-plane node and
// bootstraps the GitOps repository once.
func SetupFluxCD() task.Task {
	return task.Func("setup_fluxcd", func(tc *task.Context) task.Result {
		flux := tc.Settings.K8s.Flux
		if !flux.Enabled {
			return task.Skipped("Flux disabled in settings")
		}
		if !isPrimary(tc.Host) {
			return task.Skipped("Flux is bootstrapped from the primary control-plane node")
		}

		generated, err := ensureDeployKey(flux)
		if err != nil {
			return task.Failedf("Failed to generate deploy key: %v", err)
		}
		if generated {
			return task.Warning(fmt.Sprintf(
				"Generated deploy key %s. Add %s.pub as a deploy key with write access to %s, then re-run",
				flux.LocalKeyPath, flux.LocalKeyPath, flux.GitURL))
		}

		sr, ok := task.Sequence(tc,
			task.Step{Name: "Install Flux CLI", Run: installFluxCLI},
			task.Step{Name: "Configure Flux SSH Key", Run: func(tc *task.Context) task.StepResult {
				return configureFluxKey(tc, flux.LocalKeyPath, flux.RemoteKeyPath)
			}},
			task.Step{Name: "Bootstrap Flux", Run: func(tc *task.Context) task.StepResult {
				return bootstrapFlux(tc, flux)
			}},
		)
		if !ok {
			return task.FromStep(sr)
		}
		return task.Changed("GitOps Pipeline Active (Flux)")
	})
}

// ensureDeployKey creates the local deploy key when generation is enabled
// and the key is missing. It reports whether a key was created.
func ensureDeployKey(flux config.FluxConfig) (bool, error) {
	if !flux.GenerateKey {
		return false, nil
	}
	if _, err := os.Stat(flux.LocalKeyPath); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}

	kp, err := keygen.GenerateEd25519("flux-deploy-key")
	if err != nil {
		return false, err
	}
	if err := kp.WriteFiles(flux.LocalKeyPath); err != nil {
		return false, err
	}
	return true, nil
}

func installFluxCLI(tc *task.Context) task.StepResult {
	if commandExists(tc, "flux") {
		return task.StepOK("Flux CLI already installed", nil)
	}
	if res := tc.Sudo(dispatch.Sh("curl -sS " + fluxInstallURL + " | bash")); res.Failed() {
		return task.StepFailedf("Failed to install Flux CLI: %s", res.Tail(200))
	}
	return task.StepOK("Flux CLI installed", nil)
}

// configureFluxKey copies the private deploy key from the control machine to
// the node, readable only by the connecting user.
func configureFluxKey(tc *task.Context, localPath, remotePath string) task.StepResult {
	key, err := os.ReadFile(localPath) // #nosec G304 -- path from operator settings
	if err != nil {
		return task.StepFailedf("Local key not found at %s: %v", localPath, err)
	}

	res := tc.Run(dispatch.Sh(`printf '%s:%s' "$(id -u)" "$(id -g)"`))
	if res.Failed() {
		return task.StepFailedf("Failed to resolve the remote user: %s", res.Output)
	}
	owner := res.Trimmed()

	if res := tc.Sudo(dispatch.Cmd("mkdir", "-p", path.Dir(remotePath))); res.Failed() {
		return task.StepFailedf("Failed to create %s: %s", path.Dir(remotePath), res.Output)
	}

	content := strings.TrimSpace(string(key)) + "\n"
	sr := writeStep(tc, remotePath, content, remotefile.WithOwner(owner), remotefile.WithMode("600"))
	if !sr.Success {
		return sr
	}
	return task.StepOK("SSH Key configured", changed(sr))
}

func bootstrapFlux(tc *task.Context, flux config.FluxConfig) task.StepResult {
	if tc.FileExists(fluxMarker) {
		return task.StepOK("Bootstrap already completed (marker exists)", nil)
	}

	cmd := dispatch.Cmd("flux", "bootstrap", "git",
		"--url="+flux.GitURL,
		"--branch="+flux.Branch,
		"--path="+flux.ClusterPath,
		"--private-key-file="+flux.RemoteKeyPath,
		"--silent",
	).WithEnv("KUBECONFIG", adminConf)

	if res := tc.Sudo(cmd); res.Failed() {
		return task.StepFailedf("Bootstrap failed: %s", res.Tail(200))
	}
	if res := tc.Sudo(dispatch.Cmd("touch", fluxMarker)); res.Failed() {
		return task.StepFailedf("Bootstrap succeeded but the marker could not be written: %s", res.Output)
	}
	return task.StepOK("Flux Bootstrapped successfully", nil)
}
