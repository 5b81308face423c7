package testing

import (
	"context"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/imamik/calcifer/internal/dispatch"
	"github.com/imamik/calcifer/internal/inventory"
)

// Call is one command seen by a FakeExecutor.
type Call struct {
	Host      string
	Command   string
	Escalated bool
}

type rule struct {
	match string
	res   []dispatch.Result
}

// FakeExecutor answers commands from scripted rules. A rule matches when
// its text is a substring of the rendered command; later rules win. Each
// rule can carry a sequence of results, the last of which repeats.
//
// Commands no rule matches fall through to an emulated remote filesystem
// (test, cat, mv, rm, cp, mkdir, chown, chmod) and otherwise succeed with
// empty output.
type FakeExecutor struct {
	mu        sync.Mutex
	rules     []*rule
	calls     []Call
	files     map[string]map[string]string
	transfers int
}

// NewFakeExecutor returns an executor with no rules and empty hosts.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{files: make(map[string]map[string]string)}
}

// On adds a rule. Multiple results are returned in order.
func (f *FakeExecutor) On(match string, results ...dispatch.Result) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(results) == 0 {
		results = []dispatch.Result{OK("")}
	}
	f.rules = append(f.rules, &rule{match: match, res: results})
	return f
}

// WithFile seeds path on host.
func (f *FakeExecutor) WithFile(host, p, content string) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fs(host)[p] = content
	return f
}

// File returns the emulated content of path on host.
func (f *FakeExecutor) File(host, p string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.fs(host)[p]
	return c, ok
}

// Calls returns every command seen so far.
func (f *FakeExecutor) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Commands returns the rendered commands sent to host.
func (f *FakeExecutor) Commands(host string) []string {
	var out []string
	for _, c := range f.Calls() {
		if c.Host == host {
			out = append(out, c.Command)
		}
	}
	return out
}

// Ran reports whether any command sent to host contains substr.
func (f *FakeExecutor) Ran(host, substr string) bool {
	for _, c := range f.Commands(host) {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}

// Transfers returns the number of uploads performed.
func (f *FakeExecutor) Transfers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transfers
}

// Run implements dispatch.Executor.
func (f *FakeExecutor) Run(_ context.Context, host *inventory.Host, cmd dispatch.Command) dispatch.Result {
	line := cmd.String()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Host: host.Name, Command: line, Escalated: cmd.IsEscalated()})

	for i := len(f.rules) - 1; i >= 0; i-- {
		r := f.rules[i]
		if !strings.Contains(line, r.match) {
			continue
		}
		res := r.res[0]
		if len(r.res) > 1 {
			r.res = r.res[1:]
		}
		return res
	}

	if cmd.IsShell() {
		return OK("")
	}
	return f.emulate(host.Name, cmd.Args())
}

// Transfer implements dispatch.Executor by copying the local file into the
// emulated filesystem of host.
func (f *FakeExecutor) Transfer(_ context.Context, host *inventory.Host, localPath, remotePath string) dispatch.Result {
	data, err := os.ReadFile(localPath) // #nosec G304 -- test helper
	if err != nil {
		return Fail(err.Error())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers++
	f.calls = append(f.calls, Call{Host: host.Name, Command: "transfer " + remotePath})
	f.fs(host.Name)[remotePath] = string(data)
	return OK("")
}

func (f *FakeExecutor) fs(host string) map[string]string {
	m, ok := f.files[host]
	if !ok {
		m = make(map[string]string)
		f.files[host] = m
	}
	return m
}

func (f *FakeExecutor) emulate(host string, args []string) dispatch.Result {
	if len(args) == 0 {
		return OK("")
	}
	files := f.fs(host)
	switch args[0] {
	case "test":
		if len(args) == 3 && args[1] == "-f" {
			if _, ok := files[args[2]]; ok {
				return OK("")
			}
			return Exit(1, "")
		}
	case "cat":
		if len(args) == 2 {
			if c, ok := files[args[1]]; ok {
				return OK(c)
			}
			return Fail("cat: " + args[1] + ": No such file or directory")
		}
	case "mv":
		if len(args) == 3 {
			c, ok := files[args[1]]
			if !ok {
				return Fail("mv: cannot stat '" + args[1] + "'")
			}
			delete(files, args[1])
			files[args[2]] = c
		}
	case "cp":
		src, dst := args[len(args)-2], args[len(args)-1]
		if c, ok := files[src]; ok {
			files[dst] = c
		}
	case "rm":
		for _, p := range args[1:] {
			if !strings.HasPrefix(p, "-") {
				delete(files, p)
			}
		}
	case "which":
		return OK("/usr/bin/" + path.Base(args[len(args)-1]))
	}
	return OK("")
}

// OK returns a successful result with stdout.
func OK(stdout string) dispatch.Result {
	return dispatch.Result{Succeeded: true, Stdout: stdout, Output: stdout}
}

// Fail returns a failed result with exit code 1 and stderr.
func Fail(stderr string) dispatch.Result {
	return Exit(1, stderr)
}

// Exit returns a result with the given exit code.
func Exit(code int, stderr string) dispatch.Result {
	out := stderr
	if code != 0 && stderr != "" {
		out = "Error: " + stderr
	}
	return dispatch.Result{Succeeded: code == 0, ExitCode: code, Stderr: stderr, Output: out}
}
