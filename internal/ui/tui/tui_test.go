package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/calcifer/internal/engine"
	"github.com/imamik/calcifer/internal/task"
	"github.com/imamik/calcifer/internal/util/prerequisites"
)

var testGroups = []string{"local_machine", "k8s_control_plane", "k8s_worker"}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m30s"},
		{3600 * time.Second, "1h0m"},
		{3661 * time.Second, "1h1m"},
	}
	for _, tt := range tests {
		got := formatDuration(tt.d)
		if got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestMarker(t *testing.T) {
	want := map[task.Status]string{
		task.StatusOK:      "[OK]",
		task.StatusChanged: "[CH]",
		task.StatusWarning: "[??]",
		task.StatusFailed:  "[!!]",
		task.StatusSkipped: "[--]",
	}
	for s, m := range want {
		if got := Marker(s); got != m {
			t.Errorf("Marker(%s) = %q, want %q", s, got, m)
		}
	}
}

func runEvents(m Model, events ...engine.Event) Model {
	for _, e := range events {
		next, _ := m.Update(EventMsg{Event: e})
		m = next.(Model)
	}
	return m
}

func TestModel_AppliesEvents(t *testing.T) {
	m := NewModel("INIT", "", testGroups, true)
	m = runEvents(m,
		engine.Event{Type: engine.EventGroupSkipped, Group: "local_machine", Message: "no hosts"},
		engine.Event{Type: engine.EventGroupStarted, Group: "k8s_control_plane"},
		engine.Event{Type: engine.EventTaskStarted, Group: "k8s_control_plane", Task: "prepare_k8s_node"},
		engine.Event{Type: engine.EventStep, Group: "k8s_control_plane", Task: "prepare_k8s_node", Host: "cp-1", Step: "swap", Status: task.StatusOK},
		engine.Event{Type: engine.EventHostResult, Group: "k8s_control_plane", Task: "prepare_k8s_node", Host: "cp-1", Status: task.StatusChanged, Message: "node prepared"},
		engine.Event{Type: engine.EventTaskCompleted, Group: "k8s_control_plane", Task: "prepare_k8s_node"},
	)

	if !m.Groups[0].Skipped || m.Groups[0].Reason != "no hosts" {
		t.Errorf("expected local_machine skipped, got %+v", m.Groups[0])
	}
	cp := m.Groups[1]
	if !cp.Active {
		t.Error("expected control plane group to be active")
	}
	if len(cp.Tasks) != 1 || !cp.Tasks[0].Done {
		t.Fatalf("expected one finished task, got %+v", cp.Tasks)
	}
	h := cp.Tasks[0].Hosts[0]
	if h.Status != task.StatusChanged || len(h.Steps) != 1 {
		t.Errorf("unexpected host row %+v", h)
	}
}

func TestModel_GroupDoneWhenNextStarts(t *testing.T) {
	m := NewModel("INIT", "", testGroups, false)
	m = runEvents(m,
		engine.Event{Type: engine.EventGroupSkipped, Group: "local_machine", Message: "no tasks"},
		engine.Event{Type: engine.EventGroupStarted, Group: "k8s_control_plane"},
		engine.Event{Type: engine.EventGroupStarted, Group: "k8s_worker"},
	)
	if !m.Groups[1].Done || m.Groups[1].Active {
		t.Errorf("expected control plane done, got %+v", m.Groups[1])
	}
	if got := m.progress(); got != 0.5 {
		t.Errorf("progress = %v, want 0.5", got)
	}
}

func TestModel_DoneQuits(t *testing.T) {
	m := NewModel("STATUS", "", testGroups, false)
	next, cmd := m.Update(DoneMsg{})
	if !next.(Model).Done {
		t.Error("expected model to be done")
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestRenderView(t *testing.T) {
	m := NewModel("INIT", "cp-1", testGroups, true)
	m = runEvents(m,
		engine.Event{Type: engine.EventGroupSkipped, Group: "local_machine", Message: "no hosts"},
		engine.Event{Type: engine.EventGroupStarted, Group: "k8s_control_plane"},
		engine.Event{Type: engine.EventTaskStarted, Group: "k8s_control_plane", Task: "install_containerd"},
		engine.Event{Type: engine.EventStep, Group: "k8s_control_plane", Task: "install_containerd", Host: "cp-1", Step: "apt update", Status: task.StatusFailed, Message: "no network"},
		engine.Event{Type: engine.EventHostResult, Group: "k8s_control_plane", Task: "install_containerd", Host: "cp-1", Status: task.StatusFailed, Message: "apt failed"},
		engine.Event{Type: engine.EventTaskCompleted, Group: "k8s_control_plane", Task: "install_containerd"},
		engine.Event{Type: engine.EventRunHalted, Message: "goal INIT halted at k8s_control_plane/install_containerd"},
	)

	output := renderView(m)
	for _, want := range []string{
		"calcifer: INIT", "target cp-1", "install_containerd", "[!!]", "apt failed",
		"apt update:", "no network", "[--] no hosts", "halted at k8s_control_plane/install_containerd",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestConsole_QuietHidesSteps(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, false)

	c.Event(engine.Event{Type: engine.EventStep, Task: "t", Host: "h", Step: "hidden", Status: task.StatusOK})
	c.Event(engine.Event{Type: engine.EventHostResult, Task: "t", Host: "h", Status: task.StatusOK, Message: "fine"})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("quiet console printed a step:\n%s", out)
	}
	if !strings.Contains(out, "[OK] h: fine") {
		t.Errorf("missing host line:\n%s", out)
	}
}

func TestConsole_VerboseRendersStepsUnderHost(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, true)

	c.Event(engine.Event{Type: engine.EventTaskStarted, Task: "install_containerd"})
	c.Event(engine.Event{Type: engine.EventStep, Task: "install_containerd", Host: "cp-1", Step: "repo", Status: task.StatusOK})
	c.Event(engine.Event{Type: engine.EventStep, Task: "install_containerd", Host: "cp-1", Step: "install", Status: task.StatusFailed, Message: "dpkg lock"})
	c.Event(engine.Event{Type: engine.EventHostResult, Task: "install_containerd", Host: "cp-1", Status: task.StatusFailed, Message: "install failed"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "[!!] cp-1: install failed") {
		t.Errorf("unexpected host line %q", lines[1])
	}
	if !strings.Contains(lines[2], "✔ repo") {
		t.Errorf("unexpected step line %q", lines[2])
	}
	if !strings.Contains(lines[3], "✖ install: dpkg lock") {
		t.Errorf("unexpected step line %q", lines[3])
	}
}

func TestConsole_Summary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, false)

	r := &engine.Report{
		Goal: "INIT",
		Dispatches: []engine.Dispatch{{
			Group: "k8s_worker",
			Task:  "join_worker",
			Results: []task.HostResult{
				task.NewHostResult("w-1", "join_worker", task.OK("joined"), time.Second),
				task.NewHostResult("w-2", "join_worker", task.Failed("no token"), time.Second),
			},
		}},
	}
	c.Summary(r)

	out := buf.String()
	for _, want := range []string{"[OK] 1", "[!!] 1", "Success (1): w-1", "Failed (1): w-2"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in summary:\n%s", want, out)
		}
	}
}

func TestRenderDoctor(t *testing.T) {
	var buf bytes.Buffer
	RenderDoctor(&buf, &prerequisites.CheckResults{
		Results: []prerequisites.CheckResult{
			{Tool: prerequisites.Tool{Name: "sudo", Required: true}, Found: true, Path: "/usr/bin/sudo"},
			{Tool: prerequisites.Tool{Name: "ping", Required: true, InstallURL: "https://example.com/ping"}},
			{Tool: prerequisites.Tool{Name: "flux", InstallURL: "https://fluxcd.io"}},
		},
		Missing: []prerequisites.Tool{
			{Name: "ping", Required: true, InstallURL: "https://example.com/ping"},
			{Name: "flux", InstallURL: "https://fluxcd.io"},
		},
	}, false)

	out := buf.String()
	for _, want := range []string{"[OK] sudo", "[!!] ping", "[??] flux", "missing required tools: ping"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in doctor output:\n%s", want, out)
		}
	}
}
