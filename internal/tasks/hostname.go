package tasks

import (
	"fmt"

	"github.com/imamik/calcifer/internal/dispatch"
	"github.com/imamik/calcifer/internal/task"
)

const hostsFile = "/etc/hosts"

// SetHostnameAndHosts sets the system hostname to the inventory name and
// keeps /etc/hosts resolving it.
func SetHostnameAndHosts() task.Task {
	return task.Func("set_hostname_and_hosts", func(tc *task.Context) task.Result {
		target := tc.Host.Name
		anyChanged := false

		sr, ok := task.Sequence(tc,
			task.Step{Name: "Verify/Set System Hostname", Run: func(tc *task.Context) task.StepResult {
				res := tc.Run(dispatch.Cmd("hostname"))
				if res.Failed() {
					return task.StepFailed("Failed to retrieve hostname")
				}
				current := res.Trimmed()
				if current == target {
					return task.StepOK(fmt.Sprintf("Hostname already set to '%s'", target), nil)
				}
				if res := tc.Sudo(dispatch.Cmd("hostnamectl", "set-hostname", target)); res.Failed() {
					return task.StepFailedf("Failed to set hostname: %s", res.Output)
				}
				anyChanged = true
				return task.StepOK(fmt.Sprintf("Hostname changed: %s -> %s", current, target), nil)
			}},
			task.Step{Name: "Configure /etc/hosts (127.0.0.1)", Run: func(tc *task.Context) task.StepResult {
				sr := fromWrite(hostsFile, tc.EnsureLine(hostsFile, "127.0.0.1 localhost", `^127\.0\.0\.1\s+localhost`))
				anyChanged = anyChanged || changed(sr)
				return sr
			}},
			task.Step{Name: "Configure /etc/hosts (127.0.1.1)", Run: func(tc *task.Context) task.StepResult {
				sr := fromWrite(hostsFile, tc.EnsureLine(hostsFile, "127.0.1.1 "+target, `^127\.0\.1\.1\s+`))
				anyChanged = anyChanged || changed(sr)
				return sr
			}},
		)
		if !ok {
			return task.FromStep(sr)
		}

		msg := fmt.Sprintf("Hostname set to %s & /etc/hosts verified", target)
		if anyChanged {
			return task.Changed(msg)
		}
		return task.OK(msg)
	})
}
