package task

// Task is one unit of provisioning work, run once per host.
type Task interface {
	Name() string
	Run(tc *Context) Result
}

// Func adapts a function to the Task interface.
func Func(name string, fn func(tc *Context) Result) Task {
	return funcTask{name: name, fn: fn}
}

type funcTask struct {
	name string
	fn   func(tc *Context) Result
}

func (t funcTask) Name() string           { return t.name }
func (t funcTask) Run(tc *Context) Result { return t.fn(tc) }

// Names returns the names of tasks in order.
func Names(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Name()
	}
	return out
}
