package dispatch

import (
	"sort"
	"strings"
	"time"

	"github.com/alessio/shellescape"
)

// Command describes a process to run on a host.
type Command struct {
	args     []string
	script   string
	shell    bool
	escalate bool
	stdin    []byte
	timeout  time.Duration
	env      map[string]string
}

// Cmd returns a command that executes args directly, without a shell.
func Cmd(args ...string) Command {
	return Command{args: append([]string(nil), args...)}
}

// Sh returns a command that runs script through sh -c.
func Sh(script string) Command {
	return Command{script: script, shell: true}
}

// Escalated returns a copy of c that runs with elevated privileges.
func (c Command) Escalated() Command {
	c.escalate = true
	return c
}

// WithStdin returns a copy of c that receives data on standard input.
func (c Command) WithStdin(data []byte) Command {
	c.stdin = data
	return c
}

// WithTimeout returns a copy of c with its own deadline, overriding the
// dispatcher default.
func (c Command) WithTimeout(d time.Duration) Command {
	c.timeout = d
	return c
}

// WithEnv returns a copy of c with an extra environment variable.
func (c Command) WithEnv(key, value string) Command {
	env := make(map[string]string, len(c.env)+1)
	for k, v := range c.env {
		env[k] = v
	}
	env[key] = value
	c.env = env
	return c
}

// IsShell reports whether c is a shell script.
func (c Command) IsShell() bool { return c.shell }

// IsEscalated reports whether c asks for elevated privileges.
func (c Command) IsEscalated() bool { return c.escalate }

// Stdin returns the data fed to the process.
func (c Command) Stdin() []byte { return c.stdin }

// Timeout returns the per-command deadline, zero if unset.
func (c Command) Timeout() time.Duration { return c.timeout }

// Args returns the argument vector of the unwrapped command. Shell scripts
// are expressed as sh -c script.
func (c Command) Args() []string {
	if c.shell {
		return []string{"sh", "-c", c.script}
	}
	return append([]string(nil), c.args...)
}

// Empty reports whether there is nothing to run.
func (c Command) Empty() bool {
	if c.shell {
		return strings.TrimSpace(c.script) == ""
	}
	return len(c.args) == 0
}

// String renders c as a single POSIX shell command line without the
// escalation wrapper. Shell scripts are rendered verbatim.
func (c Command) String() string {
	var b strings.Builder
	if len(c.env) > 0 {
		b.WriteString(c.envPrefix())
	}
	if c.shell {
		b.WriteString(c.script)
		return b.String()
	}
	b.WriteString(shellescape.QuoteCommand(c.args))
	return b.String()
}

// Line renders the full command line a remote shell executes, including the
// sudo wrapper when escalate is set. withPassword selects sudo -S over
// sudo -n.
func (c Command) Line(escalate, withPassword bool) string {
	if !escalate {
		return c.String()
	}
	return shellescape.QuoteCommand(c.argv(true, withPassword))
}

// argv returns the full argument vector to execute, including the
// environment and escalation wrappers.
func (c Command) argv(escalate, withPassword bool) []string {
	var out []string
	if escalate {
		out = append(out, sudoPrefix(withPassword)...)
	}
	if len(c.env) > 0 {
		out = append(out, "env")
		for _, k := range c.envKeys() {
			out = append(out, k+"="+c.env[k])
		}
	}
	return append(out, c.Args()...)
}

func (c Command) envKeys() []string {
	keys := make([]string, 0, len(c.env))
	for k := range c.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c Command) envPrefix() string {
	var parts []string
	for _, k := range c.envKeys() {
		parts = append(parts, k+"="+shellescape.Quote(c.env[k]))
	}
	return strings.Join(parts, " ") + " "
}

// sudoPrefix reads the password from stdin with an empty prompt when one is
// available, and refuses to prompt otherwise.
func sudoPrefix(withPassword bool) []string {
	if withPassword {
		return []string{"sudo", "-S", "-p", "", "--"}
	}
	return []string{"sudo", "-n", "--"}
}
