package tasks

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/imamik/calcifer/internal/dispatch"
	"github.com/imamik/calcifer/internal/task"
)

const (
	microsoftKeyring = keyringDir + "/microsoft.gpg"
	azureCLIList     = "/etc/apt/sources.list.d/azure-cli.list"
	arcCorrelationID = "calcifer-automation"
)

// EnsureAzureCLI installs azure-cli from the Microsoft repository unless az
// is already on the PATH.
func EnsureAzureCLI() task.Task {
	return task.Func("ensure_azure_cli", func(tc *task.Context) task.Result {
		if commandExists(tc, "az") {
			return task.OK("Azure CLI already installed (binary found), skipping installation steps.")
		}

		sr, ok := task.Sequence(tc,
			keyringStep("Setup Microsoft GPG Key", "https://packages.microsoft.com/keys/microsoft.asc", microsoftKeyring),
			repoStep("Add Azure CLI APT Repository", azureCLIList, func(f OSFacts) string {
				return fmt.Sprintf("deb [arch=%s signed-by=%s] https://packages.microsoft.com/repos/azure-cli/ %s main",
					f.Arch, microsoftKeyring, f.Codename)
			}),
			aptInstallStep("Install Azure CLI Package", "azure-cli"),
			task.Step{Name: "Verify Azure CLI Package", Run: func(tc *task.Context) task.StepResult {
				res := tc.Run(dispatch.Cmd("dpkg-query", "-W", "-f=${Status}", "azure-cli"))
				if res.Failed() || !strings.Contains(res.Stdout, "install ok installed") {
					return task.StepFailed("Installation verification failed for: azure-cli")
				}
				return task.StepOK("Package installed", nil)
			}},
		)
		if !ok {
			return task.FromStep(sr)
		}
		return task.Changed("Azure CLI installed & configured")
	})
}

// EnsureAzureLogin checks for an az session and selects the configured
// subscription.
func EnsureAzureLogin() task.Task {
	return task.Func("ensure_azure_login", func(tc *task.Context) task.Result {
		if err := tc.Settings.ValidateAzure(); err != nil {
			return task.Failed(err.Error())
		}
		sub := tc.Settings.Azure.SubscriptionID

		if res := tc.Run(dispatch.Cmd("az", "account", "show")); res.Failed() {
			return task.Failed("Host is not authenticated. Manual 'az login' required.")
		}
		if res := tc.Run(dispatch.Cmd("az", "account", "set", "--subscription", sub)); res.Failed() {
			return task.Failedf("Logged in, but failed to set subscription %s. Check permissions.", sub)
		}
		return task.OKf("Authenticated and context set to %s", sub)
	})
}

type connectedCluster struct {
	ConnectivityStatus string `json:"connectivityStatus"`
}

// InstallArcAgent projects the cluster into Azure Arc with az connectedk8s,
// using the stored admin kubeconfig.
func InstallArcAgent() task.Task {
	return task.Func("install_arc_agent", func(tc *task.Context) task.Result {
		if err := tc.Settings.ValidateAzure(); err != nil {
			return task.Failed(err.Error())
		}
		az := tc.Settings.Azure
		name := tc.Settings.ArcClusterName()
		connected := false
		var status string

		sr, ok := task.Sequence(tc,
			task.Step{Name: "Check Existing Arc Connection", Run: func(tc *task.Context) task.StepResult {
				res := tc.Run(dispatch.Cmd("az", "connectedk8s", "show",
					"--name", name, "--resource-group", az.ResourceGroup, "-o", "json"))
				if res.Failed() {
					return task.StepOK("Cluster not connected yet", nil)
				}
				var cc connectedCluster
				if err := json.Unmarshal([]byte(res.Stdout), &cc); err != nil {
					return task.StepFailedf("Unexpected az connectedk8s show output: %v", err)
				}
				connected = true
				status = fmt.Sprintf("Already connected (Status: %s)", valueOrUnknown(cc.ConnectivityStatus))
				return task.StepOK(status, nil)
			}},
			task.Step{Name: "Connect Cluster to Azure Arc", Run: func(tc *task.Context) task.StepResult {
				if connected {
					return task.StepOK("Skipped, already connected", nil)
				}
				kubeconfig, err := kubeconfigFile(tc)
				if err != nil {
					return task.StepFailed(err.Error())
				}
				cmd := dispatch.Cmd("az", "connectedk8s", "connect",
					"--name", name,
					"--resource-group", az.ResourceGroup,
					"--location", az.Location,
					"--yes",
					"--correlation-id", arcCorrelationID,
				).WithEnv("KUBECONFIG", kubeconfig)
				if res := tc.Run(cmd); res.Failed() {
					return task.StepFailedf("Arc connection failed: %s", res.Tail(300))
				}
				return task.StepOK("Arc Agents installed & connected", nil)
			}},
		)
		if !ok {
			return task.FromStep(sr)
		}
		if connected {
			return task.OK(status)
		}
		return task.Changed("Cluster successfully projected to Azure Arc")
	})
}

// kubeconfigFile returns an absolute path to the admin kubeconfig on the
// control machine, downloading it from the artifact mirror if needed.
func kubeconfigFile(tc *task.Context) (string, error) {
	data, p, err := loadKubeconfig(tc)
	if err != nil {
		return "", err
	}
	if p == "" {
		if p, err = tc.Artifacts.Save(tc, ArtifactKubeconfig, data); err != nil {
			return "", err
		}
	}
	return filepath.Abs(p)
}

func valueOrUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
