package task

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/go-logr/logr"
)

// Middleware decorates a task.
type Middleware func(Task) Task

// Wrap applies mws to t. The first middleware is the outermost.
func Wrap(t Task, mws ...Middleware) Task {
	for i := len(mws) - 1; i >= 0; i-- {
		t = mws[i](t)
	}
	return t
}

// Instrument logs the start and end of every invocation to log and converts
// a panic into a FAILED result, so no panic escapes a task.
func Instrument(log logr.Logger) Middleware {
	return func(next Task) Task {
		return Func(next.Name(), func(tc *Context) (res Result) {
			l := log.WithValues("host", tc.Host.Name, "task", next.Name())
			start := time.Now()
			l.Info("START")

			defer func() {
				if r := recover(); r != nil {
					l.Error(fmt.Errorf("%v", r), "task panicked", "stack", string(debug.Stack()))
					res = Failedf("System Error: %v", r)
				}
				l.Info("END", "status", string(res.Status), "message", res.Message,
					"duration", time.Since(start).Round(time.Millisecond))
			}()

			return next.Run(tc)
		})
	}
}

// Validate converts a result with an unknown status into FAILED.
func Validate() Middleware {
	return func(next Task) Task {
		return Func(next.Name(), func(tc *Context) Result {
			res := next.Run(tc)
			if !res.Status.Valid() {
				return Failedf("task returned invalid status %q: %s", res.Status, res.Message)
			}
			return res
		})
	}
}
