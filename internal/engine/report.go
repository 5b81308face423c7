package engine

import (
	"time"

	"github.com/imamik/calcifer/internal/task"
)

// Dispatch is the evaluated outcome of one task across a group's hosts.
type Dispatch struct {
	Group    string
	Task     string
	Results  []task.HostResult
	Duration time.Duration
}

// Failed returns the failed host results of d.
func (d Dispatch) Failed() []task.HostResult {
	var out []task.HostResult
	for _, r := range d.Results {
		if r.Failed {
			out = append(out, r)
		}
	}
	return out
}

// Report summarises a run.
type Report struct {
	Goal       string
	Started    time.Time
	Finished   time.Time
	Dispatches []Dispatch
	Skipped    []string

	Halted    bool
	HaltGroup string
	HaltTask  string
	Failures  []task.HostResult
}

// Counts returns the number of host results per status.
func (r *Report) Counts() map[task.Status]int {
	counts := make(map[task.Status]int, len(task.Statuses))
	for _, d := range r.Dispatches {
		for _, hr := range d.Results {
			counts[hr.Result.Status]++
		}
	}
	return counts
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Tasks returns the group/task pairs that were dispatched, in order.
func (r *Report) Tasks() []string {
	out := make([]string, len(r.Dispatches))
	for i, d := range r.Dispatches {
		out[i] = d.Group + "/" + d.Task
	}
	return out
}
