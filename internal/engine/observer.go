package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/calcifer/internal/task"
)

// Observer receives run events. Implementations must be safe for concurrent
// use: step events arrive from host goroutines.
type Observer interface {
	Event(event Event)
}

// Event is a structured run event.
type Event struct {
	Type      EventType
	Goal      string
	Group     string
	Task      string
	Host      string
	Step      string
	Status    task.Status
	Message   string
	Duration  time.Duration
	Timestamp time.Time
	Fields    map[string]string
}

// EventType names an event.
type EventType string

const (
	EventGoalStarted   EventType = "goal.started"
	EventGroupStarted  EventType = "group.started"
	EventGroupSkipped  EventType = "group.skipped"
	EventTaskStarted   EventType = "task.started"
	EventStep          EventType = "step.result"
	EventHostResult    EventType = "host.result"
	EventTaskCompleted EventType = "task.completed"
	EventRunHalted     EventType = "run.halted"
	EventGoalCompleted EventType = "goal.completed"
)

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Event implements Observer.
func (f ObserverFunc) Event(e Event) { f(e) }

// Observers fans events out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var out multiObserver
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

type multiObserver []Observer

func (m multiObserver) Event(e Event) {
	for _, o := range m {
		o.Event(e)
	}
}

// Recorder is an Observer that keeps every event. Tests use it.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Event implements Observer.
func (r *Recorder) Event(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// LogObserver writes events to a logr logger. Step events go to V(1).
func LogObserver(log logr.Logger) Observer {
	return ObserverFunc(func(e Event) {
		l := log
		if e.Type == EventStep {
			l = log.V(1)
		}
		l.Info(Format(e), "event", string(e.Type))
	})
}

// Format renders an event as a single line.
func Format(e Event) string {
	parts := []string{string(e.Type)}

	if e.Group != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Group))
	}
	if e.Task != "" {
		parts = append(parts, "task="+e.Task)
	}
	if e.Host != "" {
		parts = append(parts, "host="+e.Host)
	}
	if e.Step != "" {
		parts = append(parts, "step="+e.Step)
	}
	if e.Status != "" {
		parts = append(parts, "status="+string(e.Status))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fieldParts := make([]string, 0, len(keys))
		for _, k := range keys {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%s", k, e.Fields[k]))
		}
		parts = append(parts, fmt.Sprintf("(%s)", strings.Join(fieldParts, ", ")))
	}

	return strings.Join(parts, " ")
}
