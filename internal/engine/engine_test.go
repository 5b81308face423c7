package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/calcifer/internal/inventory"
	"github.com/imamik/calcifer/internal/registry"
	"github.com/imamik/calcifer/internal/task"
)

// journal records task invocations as "group/task@host".
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	j.entries = append(j.entries, s)
	j.mu.Unlock()
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// recordingTask returns a task that journals its invocation and answers
// with result, or with FAILED on the hosts listed in failOn.
func recordingTask(j *journal, group, name string, failOn ...string) task.Task {
	return task.Func(name, func(tc *task.Context) task.Result {
		j.add(fmt.Sprintf("%s/%s@%s", group, name, tc.Host.Name))
		for _, h := range failOn {
			if h == tc.Host.Name {
				return task.Failedf("%s broke on %s", name, h)
			}
		}
		return task.OK("done")
	})
}

func testInventory() *inventory.Inventory {
	local := inventory.NewHost("local", "localhost", inventory.GroupLocalMachine)
	local.Platform = inventory.PlatformLocal
	return inventory.New(
		local,
		inventory.NewHost("cp-1", "10.0.0.10", inventory.GroupControlPlane),
		inventory.NewHost("cp-2", "10.0.0.11", inventory.GroupControlPlane),
		inventory.NewHost("worker-1", "10.0.0.20", inventory.GroupWorker),
	)
}

func newTestEngine(reg *registry.Registry, inv *inventory.Inventory, obs Observer) *Engine {
	reg.Seal()
	return New(Options{Registry: reg, Inventory: inv, Observer: obs})
}

func TestRun_OrdersGroupsAndTasks(t *testing.T) {
	t.Parallel()

	j := &journal{}
	reg := registry.New(nil)
	// Registered out of execution order on purpose.
	reg.MustRegister("INIT", inventory.GroupWorker, recordingTask(j, "worker", "w1"))
	reg.MustRegister("INIT", inventory.GroupLocalMachine,
		recordingTask(j, "local", "l1"), recordingTask(j, "local", "l2"))
	reg.MustRegister("INIT", inventory.GroupControlPlane,
		recordingTask(j, "cp", "c1"), recordingTask(j, "cp", "c2"))

	rec := &Recorder{}
	report, err := newTestEngine(reg, testInventory(), rec).Run(context.Background(), "INIT", "")
	require.NoError(t, err)

	assert.Equal(t, []string{
		inventory.GroupLocalMachine + "/l1",
		inventory.GroupLocalMachine + "/l2",
		inventory.GroupControlPlane + "/c1",
		inventory.GroupControlPlane + "/c2",
		inventory.GroupWorker + "/w1",
	}, report.Tasks())

	// Barrier: every c1 invocation finishes before any c2 starts.
	entries := j.all()
	require.Len(t, entries, 7)
	assert.Equal(t, []string{"local/l1@local", "local/l2@local"}, entries[:2])
	assert.ElementsMatch(t, []string{"cp/c1@cp-1", "cp/c1@cp-2"}, entries[2:4])
	assert.ElementsMatch(t, []string{"cp/c2@cp-1", "cp/c2@cp-2"}, entries[4:6])
	assert.Equal(t, "worker/w1@worker-1", entries[6])

	assert.False(t, report.Halted)
	assert.Equal(t, 7, report.Counts()[task.StatusOK])
	assert.Len(t, rec.OfType(EventGoalCompleted), 1)
	assert.Len(t, rec.OfType(EventHostResult), 7)
}

func TestRun_HaltsOnFailure(t *testing.T) {
	t.Parallel()

	j := &journal{}
	reg := registry.New(nil)
	reg.MustRegister("INIT", inventory.GroupControlPlane,
		recordingTask(j, "cp", "prepare"),
		recordingTask(j, "cp", "install", "cp-2"),
		recordingTask(j, "cp", "never"))
	reg.MustRegister("INIT", inventory.GroupWorker, recordingTask(j, "worker", "join"))

	rec := &Recorder{}
	report, err := newTestEngine(reg, testInventory(), rec).Run(context.Background(), "INIT", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHalted))
	assert.Equal(t, ExitFailed, ExitCode(err))

	var herr *HaltError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, "INIT", herr.Goal)
	assert.Equal(t, inventory.GroupControlPlane, herr.Group)
	assert.Equal(t, "install", herr.Task)
	assert.Equal(t, []string{"cp-2"}, herr.Hosts)
	assert.Contains(t, err.Error(), "halted at k8s_control_plane/install")

	// The failing task still ran on every host; nothing after it ran.
	assert.ElementsMatch(t, []string{
		"cp/prepare@cp-1", "cp/prepare@cp-2",
		"cp/install@cp-1", "cp/install@cp-2",
	}, j.all())

	require.NotNil(t, report)
	assert.True(t, report.Halted)
	assert.Equal(t, "install", report.HaltTask)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "install broke on cp-2", report.Failures[0].Result.Message)
	assert.Len(t, rec.OfType(EventRunHalted), 1)
	assert.Empty(t, rec.OfType(EventGoalCompleted))
}

func TestRun_UnknownGoal(t *testing.T) {
	t.Parallel()

	j := &journal{}
	reg := registry.New(nil)
	reg.MustRegister("INIT", inventory.GroupLocalMachine, recordingTask(j, "local", "l1"))

	rec := &Recorder{}
	report, err := newTestEngine(reg, testInventory(), rec).Run(context.Background(), "DEPLOY", "")
	assert.Nil(t, report)
	assert.ErrorIs(t, err, registry.ErrUnknownGoal)
	assert.Equal(t, ExitUnknownGoal, ExitCode(err))
	assert.Empty(t, j.all())
	assert.Empty(t, rec.Events())
}

func TestRun_HostFilter(t *testing.T) {
	t.Parallel()

	j := &journal{}
	reg := registry.New(nil)
	reg.MustRegister("INIT", inventory.GroupLocalMachine, recordingTask(j, "local", "l1"))
	reg.MustRegister("INIT", inventory.GroupControlPlane, recordingTask(j, "cp", "c1"))
	reg.MustRegister("INIT", inventory.GroupWorker, recordingTask(j, "worker", "w1"))

	rec := &Recorder{}
	report, err := newTestEngine(reg, testInventory(), rec).Run(context.Background(), "INIT", "cp-2")
	require.NoError(t, err)

	assert.Equal(t, []string{"cp/c1@cp-2"}, j.all())
	assert.Equal(t, []string{inventory.GroupLocalMachine, inventory.GroupWorker}, report.Skipped)

	skipped := rec.OfType(EventGroupSkipped)
	require.Len(t, skipped, 2)
	assert.Equal(t, "no hosts", skipped[0].Message)
}

func TestRun_HostFilterMatchesExactName(t *testing.T) {
	t.Parallel()

	j := &journal{}
	reg := registry.New(nil)
	reg.MustRegister("INIT", inventory.GroupControlPlane, recordingTask(j, "cp", "c1"))

	_, err := newTestEngine(reg, testInventory(), nil).Run(context.Background(), "INIT", "cp")
	require.NoError(t, err)
	assert.Empty(t, j.all())
}

func TestRun_SkipsGroupWithoutTasks(t *testing.T) {
	t.Parallel()

	j := &journal{}
	reg := registry.New(nil)
	reg.MustRegister("ARC", inventory.GroupLocalMachine, recordingTask(j, "local", "arc"))
	reg.MustRegister("ARC", inventory.GroupControlPlane)

	rec := &Recorder{}
	_, err := newTestEngine(reg, testInventory(), rec).Run(context.Background(), "ARC", "")
	require.NoError(t, err)

	skipped := rec.OfType(EventGroupSkipped)
	require.Len(t, skipped, 2)
	assert.Equal(t, inventory.GroupControlPlane, skipped[0].Group)
	assert.Equal(t, "no tasks", skipped[0].Message)
	assert.Equal(t, []string{"local/arc@local"}, j.all())
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	t.Parallel()

	reg := registry.New(nil)
	reg.MustRegister("INIT", inventory.GroupWorker, task.Func("explode", func(*task.Context) task.Result {
		panic("disk on fire")
	}))

	report, err := newTestEngine(reg, testInventory(), nil).Run(context.Background(), "INIT", "")
	require.ErrorIs(t, err, ErrHalted)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "System Error: disk on fire", report.Failures[0].Result.Message)
}

func TestRun_InvalidStatusBecomesFailure(t *testing.T) {
	t.Parallel()

	reg := registry.New(nil)
	reg.MustRegister("INIT", inventory.GroupWorker, task.Func("odd", func(*task.Context) task.Result {
		return task.Result{Status: "DONE"}
	}))

	report, err := newTestEngine(reg, testInventory(), nil).Run(context.Background(), "INIT", "")
	require.ErrorIs(t, err, ErrHalted)
	assert.True(t, report.Failures[0].Failed)
}

func TestRun_WarningAndSkippedDoNotHalt(t *testing.T) {
	t.Parallel()

	reg := registry.New(nil)
	reg.MustRegister("INIT", inventory.GroupControlPlane,
		task.Func("warn", func(*task.Context) task.Result { return task.Warning("meh") }),
		task.Func("skip", func(*task.Context) task.Result { return task.Skipped("n/a") }),
		task.Func("change", func(*task.Context) task.Result { return task.Changed("did it") }),
	)

	report, err := newTestEngine(reg, testInventory(), nil).Run(context.Background(), "INIT", "")
	require.NoError(t, err)
	counts := report.Counts()
	assert.Equal(t, 2, counts[task.StatusWarning])
	assert.Equal(t, 2, counts[task.StatusSkipped])
	assert.Equal(t, 2, counts[task.StatusChanged])
}

func TestRun_BoundsParallelism(t *testing.T) {
	t.Parallel()

	var hosts []*inventory.Host
	for i := range 6 {
		hosts = append(hosts, inventory.NewHost(fmt.Sprintf("w-%d", i), "10.0.1.1", inventory.GroupWorker))
	}

	var inFlight, peak atomic.Int32
	reg := registry.New(nil)
	reg.MustRegister("INIT", inventory.GroupWorker, task.Func("slow", func(*task.Context) task.Result {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return task.OK("")
	}))
	reg.Seal()

	eng := New(Options{Registry: reg, Inventory: inventory.New(hosts...), MaxParallel: 2})
	report, err := eng.Run(context.Background(), "INIT", "")
	require.NoError(t, err)
	assert.Len(t, report.Dispatches[0].Results, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRun_CancelledBetweenTasks(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j := &journal{}
	reg := registry.New(nil)
	reg.MustRegister("INIT", inventory.GroupLocalMachine,
		task.Func("first", func(*task.Context) task.Result {
			cancel()
			return task.OK("")
		}),
		recordingTask(j, "local", "second"))

	report, err := newTestEngine(reg, testInventory(), nil).Run(ctx, "INIT", "")
	require.ErrorIs(t, err, ErrHalted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Halted)
	assert.Equal(t, "second", report.HaltTask)
	assert.Empty(t, j.all())
}

func TestRun_EmitsStepEvents(t *testing.T) {
	t.Parallel()

	reg := registry.New(nil)
	reg.MustRegister("INIT", inventory.GroupLocalMachine, task.Func("stepped", func(tc *task.Context) task.Result {
		res, ok := task.Sequence(tc,
			task.Step{Name: "check", Run: func(*task.Context) task.StepResult { return task.StepOK("fine", nil) }},
			task.Step{Name: "apply", Run: func(*task.Context) task.StepResult { return task.StepFailed("nope") }},
		)
		if !ok {
			return task.Warning(res.Message)
		}
		return task.OK("")
	}))

	rec := &Recorder{}
	_, err := newTestEngine(reg, testInventory(), rec).Run(context.Background(), "INIT", "")
	require.NoError(t, err)

	steps := rec.OfType(EventStep)
	require.Len(t, steps, 2)
	assert.Equal(t, "check", steps[0].Step)
	assert.Equal(t, task.StatusOK, steps[0].Status)
	assert.Equal(t, "apply", steps[1].Step)
	assert.Equal(t, task.StatusFailed, steps[1].Status)
	assert.Equal(t, "local", steps[1].Host)
}

func TestRun_AppliesExtraMiddlewares(t *testing.T) {
	t.Parallel()

	var seen atomic.Int32
	count := func(next task.Task) task.Task {
		return task.Func(next.Name(), func(tc *task.Context) task.Result {
			seen.Add(1)
			return next.Run(tc)
		})
	}

	reg := registry.New(nil)
	reg.MustRegister("INIT", inventory.GroupControlPlane, task.Func("t", func(*task.Context) task.Result { return task.OK("") }))
	reg.Seal()

	_, err := New(Options{Registry: reg, Inventory: testInventory(), Middlewares: []task.Middleware{count}}).
		Run(context.Background(), "INIT", "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), seen.Load())
}
