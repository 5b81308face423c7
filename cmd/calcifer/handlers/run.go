package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/calcifer/internal/config"
	"github.com/imamik/calcifer/internal/dispatch"
	"github.com/imamik/calcifer/internal/engine"
	"github.com/imamik/calcifer/internal/logging"
	"github.com/imamik/calcifer/internal/metrics"
	"github.com/imamik/calcifer/internal/remotefile"
	"github.com/imamik/calcifer/internal/tasks"
	"github.com/imamik/calcifer/internal/ui/tui"
)

// Run executes goal against the inventory.
//
// The settings are injected into every host's data bag under app_config
// before the first task runs. The returned error is an *ExitError whose code
// follows engine.ExitCode.
func Run(ctx context.Context, goal string, opts Options) (err error) {
	reg := newRegistry()
	m := metrics.New()
	defer func() {
		m.RecordRun(goal, err)
		if opts.MetricsFile == "" {
			return
		}
		if werr := m.WriteFile(opts.MetricsFile); werr != nil && err == nil {
			err = werr
		}
	}()

	if !reg.Has(goal) {
		_, lerr := reg.Lookup(goal, "")
		return &ExitError{Code: engine.ExitCode(lerr), Err: lerr}
	}

	settings, err := loadSettings(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.MaxParallel > 0 {
		settings.Execution.MaxParallel = opts.MaxParallel
	}

	logger, err := logging.New(logging.Options{Path: opts.LogFile, Verbose: opts.Verbose})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()
	log := logger.WithValues("goal", goal)

	inv, err := loadInventory(ctx, opts, settings)
	if err != nil {
		return err
	}
	inv.SetAll("app_config", settings.AsMap())
	tasks.MarkPrimary(inv)

	rt, err := runtimeOptions(opts)
	if err != nil {
		return err
	}

	timeouts := config.LoadTimeouts()
	if settings.Execution.CommandTimeout > 0 {
		timeouts.Command = settings.Execution.CommandTimeout
	}

	exec := dispatch.New(newTransport(timeouts), rt,
		dispatch.WithTimeout(timeouts.Command),
		dispatch.WithLogger(log),
	)
	defer func() { _ = exec.Close() }()

	store, err := newArtifactStore(ctx, settings, log)
	if err != nil {
		return err
	}

	log.Info("starting run", "config", opts.ConfigPath, "hosts", inv.Len(), "target", opts.Target)

	run := func(ctx context.Context, obs engine.Observer) (*engine.Report, error) {
		eng := engine.New(engine.Options{
			Registry:  reg,
			Inventory: inv,
			Exec:      exec,
			Files: remotefile.New(exec,
				remotefile.WithBackupDir(settings.Execution.BackupDir),
				remotefile.WithLogger(log),
			),
			Settings:    settings,
			Timeouts:    timeouts,
			Artifacts:   store,
			Observer:    engine.Observers(obs, m, engine.LogObserver(log)),
			Logger:      log,
			MaxParallel: settings.Execution.MaxParallel,
		})
		return eng.Run(ctx, goal, opts.Target)
	}

	var report *engine.Report
	if opts.TUI && isTerminal() {
		report, err = tui.Run(ctx, tui.NewModel(goal, opts.Target, reg.Order(), !opts.Quiet), run)
	} else {
		console := tui.NewConsole(stdout, !opts.Quiet)
		report, err = run(ctx, console)
		console.Summary(report)
	}

	if err != nil {
		log.Error(err, "run failed")
		return &ExitError{Code: engine.ExitCode(err), Err: err}
	}
	log.Info("run completed", "duration", report.Duration().String())
	return nil
}

// Goals lists every goal with the task chain of each group.
func Goals() error {
	reg := newRegistry()
	for _, goal := range reg.Goals() {
		fmt.Fprintln(stdout, goal)
		for _, group := range reg.Order() {
			chain, err := reg.Lookup(goal, group)
			if err != nil {
				return err
			}
			if len(chain) == 0 {
				continue
			}
			fmt.Fprintf(stdout, "  %s\n", group)
			for i, t := range chain {
				fmt.Fprintf(stdout, "    %d. %s\n", i+1, t.Name())
			}
		}
	}
	return nil
}
