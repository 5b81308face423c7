package testing

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/calcifer/internal/config"
	"github.com/imamik/calcifer/internal/inventory"
	"github.com/imamik/calcifer/internal/remotefile"
	"github.com/imamik/calcifer/internal/task"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TaskEnv bundles the collaborators a task needs in a test.
type TaskEnv struct {
	Exec      *FakeExecutor
	Artifacts *MemoryArtifacts
	Settings  *config.Settings
	Steps     []string
}

// NewTaskEnv returns an env with a fresh fake executor, default settings
// and an artifact store under t.TempDir(). The local kubeconfig path points
// at the store's kubeconfig artifact.
func NewTaskEnv(t *testing.T) *TaskEnv {
	t.Helper()
	dir := t.TempDir()
	return &TaskEnv{
		Exec:      NewFakeExecutor(),
		Artifacts: NewMemoryArtifacts(dir),
		Settings:  NewSettingsBuilder().WithLocalKubeconfig(filepath.Join(dir, "kubeconfig_admin.yaml")).Build(),
	}
}

// Context builds a task.Context for host. Sub-step names are appended to
// e.Steps, prefixed with "!" when the step failed.
func (e *TaskEnv) Context(t *testing.T, host *inventory.Host, taskName string) *task.Context {
	t.Helper()
	return &task.Context{
		Context:   TestContext(t),
		Host:      host,
		TaskName:  taskName,
		Exec:      e.Exec,
		Files:     remotefile.New(e.Exec, remotefile.WithLocalTempDir(t.TempDir()), remotefile.WithBackupDir("/var/backups/calcifer")),
		Settings:  e.Settings,
		Timeouts:  config.LoadTimeouts(),
		Artifacts: e.Artifacts,
		Logger:    logr.Discard(),
		Steps: func(step string, res task.StepResult) {
			if !res.Success {
				step = "!" + step
			}
			e.Steps = append(e.Steps, step)
		},
	}
}
