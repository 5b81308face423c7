package tasks

import (
	"fmt"
	"slices"
	"strings"

	"github.com/imamik/calcifer/internal/dispatch"
	"github.com/imamik/calcifer/internal/inventory"
	"github.com/imamik/calcifer/internal/task"
)

// FactsKey is the data bag key gather_system_facts writes.
const FactsKey = "os_facts"

var supportedDistros = []string{"ubuntu", "debian"}

// OSFacts describes the target's distribution and architecture.
type OSFacts struct {
	ID        string
	Codename  string
	VersionID string
	Arch      string
}

// FactsOf returns the facts gathered for host.
func FactsOf(host *inventory.Host) (OSFacts, bool) {
	v, ok := host.Get(FactsKey)
	if !ok {
		return OSFacts{}, false
	}
	f, ok := v.(OSFacts)
	return f, ok
}

// GatherSystemFacts reads os-release and the dpkg architecture and rejects
// distributions other than Debian and Ubuntu.
func GatherSystemFacts() task.Task {
	return task.Func("gather_system_facts", func(tc *task.Context) task.Result {
		var release map[string]string
		var arch string

		sr, ok := task.Sequence(tc,
			task.Step{Name: "Read OS Release", Run: func(tc *task.Context) task.StepResult {
				res := tc.Run(dispatch.Cmd("cat", "/etc/os-release"))
				if res.Failed() {
					return task.StepFailed("Could not read /etc/os-release")
				}
				release = parseOSRelease(res.Stdout)
				return task.StepOK("OS release parsed", nil)
			}},
			task.Step{Name: "Check CPU Architecture", Run: func(tc *task.Context) task.StepResult {
				res := tc.Run(dispatch.Cmd("dpkg", "--print-architecture"))
				if res.Failed() {
					return task.StepFailed("Could not determine architecture")
				}
				arch = res.Trimmed()
				return task.StepOK("Architecture: "+arch, nil)
			}},
		)
		if !ok {
			return task.FromStep(sr)
		}

		facts := OSFacts{
			ID:        strings.ToLower(valueOr(release, "ID", "unknown")),
			Codename:  valueOr(release, "VERSION_CODENAME", "unknown"),
			VersionID: valueOr(release, "VERSION_ID", "unknown"),
			Arch:      arch,
		}
		if !slices.Contains(supportedDistros, facts.ID) {
			return task.Failedf("Unsupported OS: %s. Only %v are supported.", facts.ID, supportedDistros)
		}

		tc.Host.Set(FactsKey, facts)
		return task.OK(fmt.Sprintf("OS Verified: %s %s (%s) on %s", facts.ID, facts.VersionID, facts.Codename, facts.Arch)).
			WithData(facts)
	})
}

// parseOSRelease reads KEY=value lines, stripping quotes.
func parseOSRelease(content string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok || key == "" || strings.HasPrefix(key, "#") {
			continue
		}
		out[key] = strings.Trim(value, `"'`)
	}
	return out
}

func valueOr(m map[string]string, key, def string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}
	return def
}
