package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/calcifer/internal/engine"
	"github.com/imamik/calcifer/internal/task"
)

// hostRow is one host's result for a task.
type hostRow struct {
	Host    string
	Status  task.Status
	Message string
	Steps   []stepRow
}

type stepRow struct {
	Name    string
	OK      bool
	Message string
}

// taskRow is a task of a group.
type taskRow struct {
	Name   string
	Active bool
	Done   bool
	Hosts  []hostRow
}

// groupRow is an inventory group of the run.
type groupRow struct {
	Name    string
	Skipped bool
	Reason  string
	Active  bool
	Done    bool
	Tasks   []taskRow
}

// Model is the Bubble Tea model for the run dashboard.
type Model struct {
	Goal   string
	Target string

	Groups []groupRow

	// Verbose shows sub-step results under each host.
	Verbose bool

	StartTime    time.Time
	SpinnerFrame int

	Width  int
	Height int

	Done   bool
	Halted string
	Err    error
}

// NewModel returns a model listing groups in execution order.
func NewModel(goal, target string, groups []string, verbose bool) Model {
	m := Model{
		Goal:      goal,
		Target:    target,
		Verbose:   verbose,
		StartTime: time.Now(),
	}
	for _, g := range groups {
		m.Groups = append(m.Groups, groupRow{Name: g})
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case EventMsg:
		m.apply(msg.Event)

	case TickMsg:
		m.SpinnerFrame++
		return m, tickCmd()

	case DoneMsg:
		m.Done = true
		m.Err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// apply folds an engine event into the model.
func (m *Model) apply(e engine.Event) {
	switch e.Type {
	case engine.EventGroupSkipped:
		if g := m.group(e.Group); g != nil {
			g.Skipped = true
			g.Reason = e.Message
		}

	case engine.EventGroupStarted:
		for i := range m.Groups {
			if m.Groups[i].Active {
				m.Groups[i].Active = false
				m.Groups[i].Done = true
			}
		}
		if g := m.group(e.Group); g != nil {
			g.Active = true
		}

	case engine.EventTaskStarted:
		if g := m.group(e.Group); g != nil {
			g.Tasks = append(g.Tasks, taskRow{Name: e.Task, Active: true})
		}

	case engine.EventStep:
		if t := m.task(e.Group, e.Task); t != nil {
			h := t.host(e.Host)
			h.Steps = append(h.Steps, stepRow{Name: e.Step, OK: e.Status != task.StatusFailed, Message: e.Message})
		}

	case engine.EventHostResult:
		if t := m.task(e.Group, e.Task); t != nil {
			h := t.host(e.Host)
			h.Status = e.Status
			h.Message = e.Message
		}

	case engine.EventTaskCompleted:
		if t := m.task(e.Group, e.Task); t != nil {
			t.Active = false
			t.Done = true
		}

	case engine.EventRunHalted:
		m.Halted = e.Message

	case engine.EventGoalCompleted:
		for i := range m.Groups {
			if m.Groups[i].Active {
				m.Groups[i].Active = false
				m.Groups[i].Done = true
			}
		}
	}
}

func (m *Model) group(name string) *groupRow {
	for i := range m.Groups {
		if m.Groups[i].Name == name {
			return &m.Groups[i]
		}
	}
	return nil
}

// task returns the most recent row for name in group.
func (m *Model) task(group, name string) *taskRow {
	g := m.group(group)
	if g == nil {
		return nil
	}
	for i := len(g.Tasks) - 1; i >= 0; i-- {
		if g.Tasks[i].Name == name {
			return &g.Tasks[i]
		}
	}
	return nil
}

func (t *taskRow) host(name string) *hostRow {
	for i := range t.Hosts {
		if t.Hosts[i].Host == name {
			return &t.Hosts[i]
		}
	}
	t.Hosts = append(t.Hosts, hostRow{Host: name})
	return &t.Hosts[len(t.Hosts)-1]
}

// progress is the share of non-skipped groups that are done.
func (m Model) progress() float64 {
	if m.Done && m.Err == nil {
		return 1.0
	}
	total, done := 0, 0
	for _, g := range m.Groups {
		if g.Skipped {
			continue
		}
		total++
		if g.Done {
			done++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total)
}

func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View implements tea.Model.
func (m Model) View() string {
	return renderView(m)
}
