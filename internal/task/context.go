package task

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/imamik/calcifer/internal/config"
	"github.com/imamik/calcifer/internal/dispatch"
	"github.com/imamik/calcifer/internal/inventory"
	"github.com/imamik/calcifer/internal/remotefile"
)

// Artifacts stores files fetched from the cluster, such as the admin
// kubeconfig, on the control machine.
type Artifacts interface {
	// Save stores data under name and returns its local path.
	Save(ctx context.Context, name string, data []byte) (string, error)
	// Load returns the content stored under name.
	Load(ctx context.Context, name string) ([]byte, error)
	// Path returns the local path for name whether or not it exists.
	Path(name string) string
}

// StepReporter receives every finished sub-step.
type StepReporter func(step string, res StepResult)

// Context is passed to a task invocation. It embeds the run's
// context.Context so tasks can hand it straight to blocking calls.
type Context struct {
	context.Context

	Host      *inventory.Host
	TaskName  string
	Exec      dispatch.Executor
	Files     *remotefile.Mutator
	Settings  *config.Settings
	Timeouts  *config.Timeouts
	Artifacts Artifacts
	Logger    logr.Logger
	Steps     StepReporter
}

// Run dispatches cmd to the task's host.
func (tc *Context) Run(cmd dispatch.Command) dispatch.Result {
	return tc.Exec.Run(tc, tc.Host, cmd)
}

// Sudo dispatches cmd with elevated privileges.
func (tc *Context) Sudo(cmd dispatch.Command) dispatch.Result {
	return tc.Exec.Run(tc, tc.Host, cmd.Escalated())
}

// WriteFile writes content to path on the task's host.
func (tc *Context) WriteFile(path, content string, opts ...remotefile.WriteOption) remotefile.WriteResult {
	return tc.Files.WriteFile(tc, tc.Host, path, content, opts...)
}

// ReadFile reads path on the task's host.
func (tc *Context) ReadFile(path string) string {
	return tc.Files.ReadFile(tc, tc.Host, path)
}

// FileExists reports whether path is a regular file on the task's host.
func (tc *Context) FileExists(path string) bool {
	return tc.Files.Exists(tc, tc.Host, path)
}

// EnsureLine edits path on the task's host.
func (tc *Context) EnsureLine(path, line, matchPattern string, opts ...remotefile.WriteOption) remotefile.WriteResult {
	return tc.Files.EnsureLine(tc, tc.Host, path, line, matchPattern, opts...)
}

// ForTask returns a shallow copy of tc scoped to another task name.
func (tc *Context) ForTask(name string) *Context {
	cp := *tc
	cp.TaskName = name
	return &cp
}

func (tc *Context) reportStep(name string, res StepResult) {
	if tc.Steps != nil {
		tc.Steps(name, res)
	}
}
