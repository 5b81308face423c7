package registry

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/imamik/calcifer/internal/inventory"
	"github.com/imamik/calcifer/internal/task"
)

var (
	// ErrUnknownGoal is returned when a goal has no registered chains.
	ErrUnknownGoal = errors.New("unknown goal")
	// ErrSealed is returned by Register after Seal.
	ErrSealed = errors.New("registry is sealed")
)

// DefaultOrder is the group execution order of a run.
var DefaultOrder = []string{
	inventory.GroupLocalMachine,
	inventory.GroupControlPlane,
	inventory.GroupWorker,
}

// Registry holds goal -> group -> task chain.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	goals  map[string]map[string][]task.Task
	sealed bool
}

// New returns an empty registry that visits groups in order. A nil order
// uses DefaultOrder.
func New(order []string) *Registry {
	if order == nil {
		order = DefaultOrder
	}
	return &Registry{
		order: slices.Clone(order),
		goals: make(map[string]map[string][]task.Task),
	}
}

// Register appends tasks to the chain of goal in group. Registering a goal
// with no tasks still makes the goal known.
func (r *Registry) Register(goal, group string, tasks ...task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register %s/%s: %w", goal, group, ErrSealed)
	}
	if goal == "" {
		return fmt.Errorf("register: goal name is required")
	}
	if !slices.Contains(r.order, group) {
		return fmt.Errorf("register %s: group %q is not in the execution order %v", goal, group, r.order)
	}
	for i, t := range tasks {
		if t == nil {
			return fmt.Errorf("register %s/%s: task %d is nil", goal, group, i)
		}
	}

	groups, ok := r.goals[goal]
	if !ok {
		groups = make(map[string][]task.Task)
		r.goals[goal] = groups
	}
	groups[group] = append(groups[group], tasks...)
	return nil
}

// MustRegister is Register that panics on error. It is meant for static
// wiring at startup.
func (r *Registry) MustRegister(goal, group string, tasks ...task.Task) {
	if err := r.Register(goal, group, tasks...); err != nil {
		panic(err)
	}
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Lookup returns the chain for goal in group. An unknown group under a
// known goal yields an empty chain.
func (r *Registry) Lookup(goal, group string) ([]task.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups, ok := r.goals[goal]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownGoal, goal, r.goalNames())
	}
	return slices.Clone(groups[group]), nil
}

// Has reports whether goal is registered.
func (r *Registry) Has(goal string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.goals[goal]
	return ok
}

// Goals returns the registered goal names, sorted.
func (r *Registry) Goals() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.goalNames()
}

// Order returns the group execution order.
func (r *Registry) Order() []string {
	return slices.Clone(r.order)
}

func (r *Registry) goalNames() []string {
	names := make([]string, 0, len(r.goals))
	for g := range r.goals {
		names = append(names, g)
	}
	sort.Strings(names)
	return names
}
