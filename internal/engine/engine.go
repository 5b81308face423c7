package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/calcifer/internal/config"
	"github.com/imamik/calcifer/internal/dispatch"
	"github.com/imamik/calcifer/internal/inventory"
	"github.com/imamik/calcifer/internal/registry"
	"github.com/imamik/calcifer/internal/remotefile"
	"github.com/imamik/calcifer/internal/task"
	"github.com/imamik/calcifer/internal/util/async"
)

// Options wires an Engine.
type Options struct {
	Registry  *registry.Registry
	Inventory *inventory.Inventory
	Exec      dispatch.Executor
	Files     *remotefile.Mutator
	Settings  *config.Settings
	Timeouts  *config.Timeouts
	Artifacts task.Artifacts
	Observer  Observer
	Logger    logr.Logger

	// MaxParallel bounds the hosts running one task at the same time.
	// Zero uses config.DefaultMaxParallel.
	MaxParallel int
	// Middlewares wrap every task inside the built-in Instrument and
	// Validate middlewares.
	Middlewares []task.Middleware
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Engine runs goals.
type Engine struct {
	opts Options
}

// New returns an Engine. Files defaults to a mutator over Exec.
func New(opts Options) *Engine {
	if opts.Observer == nil {
		opts.Observer = Observers()
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = config.DefaultMaxParallel
	}
	if opts.Files == nil && opts.Exec != nil {
		opts.Files = remotefile.New(opts.Exec, remotefile.WithLogger(opts.Logger))
	}
	if opts.Timeouts == nil {
		opts.Timeouts = config.LoadTimeouts()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{opts: opts}
}

// Run executes goal. hostFilter, when non-empty, limits every group to the
// host with exactly that name.
//
// An unknown goal returns an error wrapping registry.ErrUnknownGoal before
// any host is contacted. A failed host result returns a *HaltError
// together with the report.
func (e *Engine) Run(ctx context.Context, goal, hostFilter string) (*Report, error) {
	if !e.opts.Registry.Has(goal) {
		_, err := e.opts.Registry.Lookup(goal, "")
		return nil, err
	}

	log := e.opts.Logger.WithValues("goal", goal)
	report := &Report{Goal: goal, Started: e.opts.Now()}
	log.Info("goal started", "hostFilter", hostFilter)
	e.emit(Event{Type: EventGoalStarted, Goal: goal, Fields: filterFields(hostFilter)})

	for _, group := range e.opts.Registry.Order() {
		tasks, err := e.opts.Registry.Lookup(goal, group)
		if err != nil {
			return nil, err
		}
		hosts := e.opts.Inventory.Filter(group, hostFilter)

		if reason := skipReason(tasks, hosts); reason != "" {
			log.V(1).Info("group skipped", "group", group, "reason", reason)
			report.Skipped = append(report.Skipped, group)
			e.emit(Event{Type: EventGroupSkipped, Goal: goal, Group: group, Message: reason})
			continue
		}

		e.emit(Event{
			Type:    EventGroupStarted,
			Goal:    goal,
			Group:   group,
			Message: fmt.Sprintf("%d task(s) on %d host(s)", len(tasks), len(hosts)),
			Fields:  map[string]string{"hosts": hostNames(hosts)},
		})

		for _, t := range tasks {
			if err := ctx.Err(); err != nil {
				return e.halt(report, &HaltError{Goal: goal, Group: group, Task: t.Name(), Cause: err}, nil)
			}

			d := e.dispatch(ctx, goal, group, t, hosts)
			report.Dispatches = append(report.Dispatches, d)

			if failed := d.Failed(); len(failed) > 0 {
				names := make([]string, len(failed))
				for i, hr := range failed {
					names[i] = hr.Host
				}
				return e.halt(report, &HaltError{Goal: goal, Group: group, Task: t.Name(), Hosts: names}, failed)
			}
		}
	}

	report.Finished = e.opts.Now()
	log.Info("goal completed", "duration", report.Duration().Round(time.Millisecond))
	e.emit(Event{Type: EventGoalCompleted, Goal: goal, Duration: report.Duration()})
	return report, nil
}

// dispatch runs t on every host and waits for all of them.
func (e *Engine) dispatch(ctx context.Context, goal, group string, t task.Task, hosts []*inventory.Host) Dispatch {
	e.emit(Event{Type: EventTaskStarted, Goal: goal, Group: group, Task: t.Name()})

	wrapped := task.Wrap(t, append([]task.Middleware{
		task.Instrument(e.opts.Logger.WithValues("goal", goal, "group", group)),
		task.Validate(),
	}, e.opts.Middlewares...)...)

	var mu sync.Mutex
	results := make([]task.HostResult, 0, len(hosts))
	start := e.opts.Now()

	_ = async.ForEach(ctx, hosts, e.opts.MaxParallel, func(ctx context.Context, h *inventory.Host) error {
		began := time.Now()
		res := wrapped.Run(e.taskContext(ctx, goal, group, t.Name(), h))
		hr := task.NewHostResult(h.Name, t.Name(), res, time.Since(began))

		mu.Lock()
		results = append(results, hr)
		mu.Unlock()
		return nil
	})

	sort.Slice(results, func(i, j int) bool { return results[i].Host < results[j].Host })
	d := Dispatch{Group: group, Task: t.Name(), Results: results, Duration: e.opts.Now().Sub(start)}

	counts := make(map[task.Status]int)
	for _, hr := range results {
		counts[hr.Result.Status]++
		e.emit(Event{
			Type:     EventHostResult,
			Goal:     goal,
			Group:    group,
			Task:     t.Name(),
			Host:     hr.Host,
			Status:   hr.Result.Status,
			Message:  hr.Result.Message,
			Duration: hr.Duration,
		})
	}

	e.emit(Event{
		Type:     EventTaskCompleted,
		Goal:     goal,
		Group:    group,
		Task:     t.Name(),
		Duration: d.Duration,
		Fields:   countFields(counts),
	})
	return d
}

func (e *Engine) taskContext(ctx context.Context, goal, group, name string, h *inventory.Host) *task.Context {
	return &task.Context{
		Context:   ctx,
		Host:      h,
		TaskName:  name,
		Exec:      e.opts.Exec,
		Files:     e.opts.Files,
		Settings:  e.opts.Settings,
		Timeouts:  e.opts.Timeouts,
		Artifacts: e.opts.Artifacts,
		Logger:    e.opts.Logger.WithValues("goal", goal, "group", group),
		Steps: func(step string, res task.StepResult) {
			status := task.StatusOK
			if !res.Success {
				status = task.StatusFailed
			}
			e.emit(Event{
				Type:    EventStep,
				Goal:    goal,
				Group:   group,
				Task:    name,
				Host:    h.Name,
				Step:    step,
				Status:  status,
				Message: res.Message,
			})
		},
	}
}

func (e *Engine) halt(report *Report, herr *HaltError, failures []task.HostResult) (*Report, error) {
	report.Halted = true
	report.HaltGroup = herr.Group
	report.HaltTask = herr.Task
	report.Failures = failures
	report.Finished = e.opts.Now()

	e.opts.Logger.Info("run halted", "goal", herr.Goal, "group", herr.Group, "task", herr.Task,
		"hosts", herr.Hosts, "cause", fmt.Sprint(herr.Cause))
	e.emit(Event{
		Type:    EventRunHalted,
		Goal:    herr.Goal,
		Group:   herr.Group,
		Task:    herr.Task,
		Status:  task.StatusFailed,
		Message: herr.Error(),
	})
	return report, herr
}

func (e *Engine) emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.opts.Now()
	}
	e.opts.Observer.Event(ev)
}

func skipReason(tasks []task.Task, hosts []*inventory.Host) string {
	switch {
	case len(tasks) == 0:
		return "no tasks"
	case len(hosts) == 0:
		return "no hosts"
	}
	return ""
}

func hostNames(hosts []*inventory.Host) string {
	names := make([]string, len(hosts))
	for i, h := range hosts {
		names[i] = h.Name
	}
	return fmt.Sprint(names)
}

func filterFields(hostFilter string) map[string]string {
	if hostFilter == "" {
		return nil
	}
	return map[string]string{"target": hostFilter}
}

func countFields(counts map[task.Status]int) map[string]string {
	fields := make(map[string]string, len(counts))
	for s, n := range counts {
		fields[string(s)] = fmt.Sprint(n)
	}
	return fields
}
