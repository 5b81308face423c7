package task

import (
	"fmt"
	"runtime/debug"
	"time"
)

// StepResult is the outcome of a sub-step.
type StepResult struct {
	Success bool
	Message string
	Data    any
}

// StepOK returns a successful step result.
func StepOK(msg string, data any) StepResult {
	return StepResult{Success: true, Message: msg, Data: data}
}

// StepFailed returns a failed step result.
func StepFailed(msg string) StepResult {
	return StepResult{Message: msg}
}

// StepFailedf formats a failed step result.
func StepFailedf(format string, args ...any) StepResult {
	return StepFailed(fmt.Sprintf(format, args...))
}

// Step is a named sub-step of a task.
type Step struct {
	Name string
	Run  func(tc *Context) StepResult
}

// RunStep executes s with start and end logging and turns a panic into a
// failed step result.
func RunStep(tc *Context, s Step) (res StepResult) {
	log := tc.Logger.WithValues("host", tc.Host.Name, "task", tc.TaskName, "step", s.Name)
	start := time.Now()
	log.V(1).Info("SUB-START")

	defer func() {
		if r := recover(); r != nil {
			log.Error(fmt.Errorf("%v", r), "sub-step panicked", "stack", string(debug.Stack()))
			res = StepFailedf("Exception in '%s': %v", s.Name, r)
		}
		if res.Success {
			log.V(1).Info("SUB-END", "success", true, "duration", time.Since(start).Round(time.Millisecond))
		} else {
			log.Info("SUB-END", "success", false, "message", res.Message)
		}
		tc.reportStep(s.Name, res)
	}()

	return s.Run(tc)
}

// Sequence runs steps in order and stops at the first failure. It returns
// the last step result and whether every step succeeded.
func Sequence(tc *Context, steps ...Step) (StepResult, bool) {
	last := StepOK("", nil)
	for _, s := range steps {
		if err := tc.Err(); err != nil {
			return StepFailedf("cancelled before '%s': %v", s.Name, err), false
		}
		last = RunStep(tc, s)
		if !last.Success {
			return last, false
		}
	}
	return last, true
}

// FromStep turns a failed step into a FAILED task result.
func FromStep(sr StepResult) Result {
	return Failed(sr.Message)
}
