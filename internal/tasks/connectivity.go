package tasks

import (
	"regexp"

	"github.com/imamik/calcifer/internal/dispatch"
	"github.com/imamik/calcifer/internal/task"
)

const connectivityTarget = "1.1.1.1"

// rtt min/avg/max/mdev = 1.1/2.2/3.3/0.4 ms
var pingAvgPattern = regexp.MustCompile(`= [\d.]+/([\d.]+)/`)

// CheckInternetAccess pings a public resolver.
func CheckInternetAccess() task.Task {
	return task.Func("check_internet_access", func(tc *task.Context) task.Result {
		res := tc.Run(dispatch.Cmd("ping", "-c", "2", connectivityTarget))
		if res.Failed() {
			return task.Failedf("Unreachable: %s. Check network/DNS.", connectivityTarget)
		}

		msg := "Connectivity to " + connectivityTarget + " verified."
		if avg := parsePingAverage(res.Stdout); avg != "" {
			msg += " (Latency: " + avg + "ms)"
		} else {
			tc.Logger.V(1).Info("could not parse ping output", "host", tc.Host.Name, "output", res.Stdout)
		}
		return task.OK(msg)
	})
}

func parsePingAverage(out string) string {
	m := pingAvgPattern.FindStringSubmatch(out)
	if m == nil {
		return ""
	}
	return m[1]
}
