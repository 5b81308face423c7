package tasks

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/imamik/calcifer/internal/dispatch"
	"github.com/imamik/calcifer/internal/task"
)

const (
	modulesConf = "/etc/modules-load.d/k8s.conf"
	sysctlConf  = "/etc/sysctl.d/k8s.conf"
	fstab       = "/etc/fstab"
	swapMarker  = " # Disabled by calcifer"
)

// PrepareK8sNode loads kernel modules, applies sysctl settings and turns
// swap off for good.
func PrepareK8sNode() task.Task {
	return task.Func("prepare_k8s_node", func(tc *task.Context) task.Result {
		modules := tc.Settings.K8s.KernelModules
		params := tc.Settings.K8s.SysctlParams

		sr, ok := task.Sequence(tc,
			task.Step{Name: "Load Kernel Modules", Run: func(tc *task.Context) task.StepResult {
				return loadKernelModules(tc, modules)
			}},
			task.Step{Name: "Configure Sysctl Parameters", Run: func(tc *task.Context) task.StepResult {
				return configureSysctl(tc, params)
			}},
			task.Step{Name: "Disable Swap (Runtime)", Run: disableSwapRuntime},
			task.Step{Name: "Disable Swap (Fstab)", Run: disableSwapFstab},
		)
		if !ok {
			return task.FromStep(sr)
		}
		return task.Changed("OS Prepared: Modules loaded, Sysctl applied, Swap disabled.")
	})
}

func loadKernelModules(tc *task.Context, modules []string) task.StepResult {
	if len(modules) == 0 {
		return task.StepOK("No kernel modules configured", nil)
	}
	if sr := writeStep(tc, modulesConf, strings.Join(modules, "\n")+"\n"); !sr.Success {
		return sr
	}

	loaded := loadedModules(tc)
	var failed []string
	for _, mod := range modules {
		if loaded[mod] {
			continue
		}
		if res := tc.Sudo(dispatch.Cmd("modprobe", mod)); res.Failed() {
			failed = append(failed, mod)
		}
	}
	if len(failed) > 0 {
		return task.StepFailedf("Failed to load modules: %s", strings.Join(failed, ", "))
	}
	return task.StepOK("Modules loaded & persisted: "+strings.Join(modules, ", "), nil)
}

// loadedModules parses lsmod. A failing lsmod yields an empty set so every
// module is probed.
func loadedModules(tc *task.Context) map[string]bool {
	out := make(map[string]bool)
	res := tc.Run(dispatch.Cmd("lsmod"))
	if res.Failed() {
		return out
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if fields := strings.Fields(line); len(fields) > 0 {
			out[fields[0]] = true
		}
	}
	return out
}

func configureSysctl(tc *task.Context, params map[string]string) task.StepResult {
	if len(params) == 0 {
		return task.StepOK("No sysctl parameters configured", nil)
	}
	if sr := writeStep(tc, sysctlConf, renderSysctl(params)); !sr.Success {
		return sr
	}
	if res := tc.Sudo(dispatch.Cmd("sysctl", "--system")); res.Failed() {
		return task.StepFailedf("Failed to reload sysctl: %s", res.Tail(200))
	}
	return task.StepOK(fmt.Sprintf("Applied %d sysctl parameters", len(params)), nil)
}

func renderSysctl(params map[string]string) string {
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(params)) {
		fmt.Fprintf(&b, "%s = %s\n", k, params[k])
	}
	return b.String()
}

func disableSwapRuntime(tc *task.Context) task.StepResult {
	res := tc.Run(dispatch.Cmd("swapon", "--show"))
	if res.Succeeded && res.Trimmed() == "" {
		return task.StepOK("Swap already disabled", nil)
	}
	if res := tc.Sudo(dispatch.Cmd("swapoff", "-a")); res.Failed() {
		return task.StepFailedf("Failed to run swapoff: %s", res.Output)
	}
	return task.StepOK("Swap disabled at runtime", nil)
}

func disableSwapFstab(tc *task.Context) task.StepResult {
	current := tc.ReadFile(fstab)
	if current == "" {
		return task.StepOK("No /etc/fstab to update", nil)
	}
	updated, n := commentSwapEntries(current)
	if n == 0 {
		return task.StepOK("No active swap entries in /etc/fstab", nil)
	}
	if sr := writeStep(tc, fstab, updated); !sr.Success {
		return sr
	}
	return task.StepOK(fmt.Sprintf("Commented out %d swap entries in /etc/fstab", n), nil)
}

// commentSwapEntries comments out uncommented fstab lines of type swap and
// returns how many it touched.
func commentSwapEntries(content string) (string, int) {
	lines := strings.Split(content, "\n")
	n := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) >= 3 && fields[2] == "swap" {
			lines[i] = "# " + line + swapMarker
			n++
		}
	}
	return strings.Join(lines, "\n"), n
}
