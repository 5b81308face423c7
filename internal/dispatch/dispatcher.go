package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/calcifer/internal/config"
	"github.com/imamik/calcifer/internal/inventory"
)

const (
	defaultTimeout = 10 * time.Minute
	// waitDelay bounds how long a killed local process may hold its pipes open.
	waitDelay = 5 * time.Second
	// transferMode is used for staged files until the mutator applies the
	// requested mode.
	transferMode os.FileMode = 0o600

	sudoPasswordRequired = "a password is required"
)

// Executor is what tasks and the file mutator need from a dispatcher.
type Executor interface {
	Run(ctx context.Context, host *inventory.Host, cmd Command) Result
	Transfer(ctx context.Context, host *inventory.Host, localPath, remotePath string) Result
}

// Dispatcher executes commands locally or over a Transport.
type Dispatcher struct {
	transport Transport
	runtime   config.Runtime
	timeout   time.Duration
	log       logr.Logger

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// sessionEntry is a cached or in-flight connection. ready is closed once
// Connect has returned.
type sessionEntry struct {
	ready chan struct{}
	sess  Session
	err   error
}

func (e *sessionEntry) done() bool {
	select {
	case <-e.ready:
		return true
	default:
		return false
	}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout sets the default per-command deadline.
func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithLogger sets the diagnostic logger. Commands are logged at V(1);
// stdin is never logged.
func WithLogger(l logr.Logger) Option {
	return func(d *Dispatcher) {
		d.log = l
	}
}

// New returns a Dispatcher. transport may be nil when every host is local.
func New(transport Transport, rt config.Runtime, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport: transport,
		runtime:   rt,
		timeout:   defaultTimeout,
		log:       logr.Discard(),
		sessions:  make(map[string]*sessionEntry),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes cmd on host.
func (d *Dispatcher) Run(ctx context.Context, host *inventory.Host, cmd Command) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error(fmt.Errorf("%v", r), "panic while dispatching command", "host", hostName(host))
			res = failure("internal error while running command: %v", r)
		}
	}()

	if host == nil {
		return failure("no host given for command: %s", cmd)
	}
	if cmd.Empty() {
		return failure("empty command")
	}

	escalate := cmd.IsEscalated() && host.Become && !(host.IsLocal() && os.Geteuid() == 0)
	// sudo -S shares stdin with the command, and skips the password line
	// when it has cached credentials.
	if escalate && d.hasPassword() && cmd.Stdin() != nil {
		return failure("escalated commands cannot take stdin when a become password is set: %s", cmd)
	}
	timeout := cmd.Timeout()
	if timeout <= 0 {
		timeout = d.timeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	d.log.V(1).Info("running command", "host", host.Name, "command", cmd.String(), "escalate", escalate)

	if host.IsLocal() {
		res = d.runLocal(runCtx, cmd, escalate)
	} else {
		res = d.runRemote(runCtx, host, cmd, escalate)
	}

	switch {
	case ctx.Err() != nil:
		res = failure("command cancelled: %v: %s", ctx.Err(), cmd)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res = failure("command timed out after %s: %s", timeout, cmd)
	case res.Failed() && escalate && !d.hasPassword() && needsPassword(res):
		res.Output = fmt.Sprintf(
			"Sudo privileges missing. Please configure 'NOPASSWD' for user '%s' in /etc/sudoers on host '%s'.",
			userOf(host), host.Address)
	}

	d.log.V(1).Info("command finished", "host", host.Name, "exitCode", res.ExitCode,
		"succeeded", res.Succeeded, "duration", time.Since(start).Round(time.Millisecond))
	return res
}

// Transfer copies a local file to remotePath on host.
func (d *Dispatcher) Transfer(ctx context.Context, host *inventory.Host, localPath, remotePath string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failure("internal error while transferring %s: %v", localPath, r)
		}
	}()

	if host == nil {
		return failure("no host given for transfer of %s", localPath)
	}

	// #nosec G304 -- localPath is a staging file created by the caller
	src, err := os.Open(localPath)
	if err != nil {
		return failure("failed to open %s: %v", localPath, err)
	}
	defer func() { _ = src.Close() }()

	if host.IsLocal() {
		if err := copyLocal(src, remotePath); err != nil {
			return failure("failed to copy %s to %s: %v", localPath, remotePath, err)
		}
		return completed(0, "", "")
	}

	sess, err := d.session(ctx, host)
	if err != nil {
		return failure("connection to %s failed: %v", host.Address, err)
	}
	if err := sess.Upload(ctx, src, remotePath, transferMode); err != nil {
		d.dropSession(host)
		return failure("failed to upload %s to %s:%s: %v", localPath, host.Address, remotePath, err)
	}
	return completed(0, "", "")
}

// Close closes every cached session.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for name, e := range d.sessions {
		if e.done() && e.sess != nil {
			if err := e.sess.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
		delete(d.sessions, name)
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) runLocal(ctx context.Context, cmd Command, escalate bool) Result {
	argv := cmd.argv(escalate, d.hasPassword())

	// #nosec G204 -- commands are built by tasks, never from remote input
	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.WaitDelay = waitDelay
	if stdin := d.stdin(cmd, escalate); stdin != nil {
		c.Stdin = stdin
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	if err == nil {
		return completed(0, stdout.String(), stderr.String())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return completed(exitErr.ExitCode(), stdout.String(), stderr.String())
	}
	res := failure("failed to run %s: %v", argv[0], err)
	res.Stdout = stdout.String()
	return res
}

func (d *Dispatcher) runRemote(ctx context.Context, host *inventory.Host, cmd Command, escalate bool) Result {
	if d.transport == nil {
		return failure("no remote transport configured for host %s", host.Name)
	}

	sess, err := d.session(ctx, host)
	if err != nil {
		return failure("connection to %s failed: %v", host.Address, err)
	}

	line := cmd.Line(escalate, d.hasPassword())
	out, err := sess.Exec(ctx, line, d.stdin(cmd, escalate))
	if err != nil {
		if ctx.Err() == nil {
			d.dropSession(host)
		}
		return failure("remote execution on %s failed: %v", host.Address, err)
	}
	return completed(out.ExitCode, string(out.Stdout), string(out.Stderr))
}

// stdin prepends the become password when sudo -S will read it. Run
// rejects escalated commands with their own stdin in that case.
func (d *Dispatcher) stdin(cmd Command, escalate bool) io.Reader {
	var parts []io.Reader
	if escalate && d.hasPassword() {
		parts = append(parts, strings.NewReader(d.runtime.BecomePassword+"\n"))
	}
	if data := cmd.Stdin(); data != nil {
		parts = append(parts, bytes.NewReader(data))
	}
	if len(parts) == 0 {
		return nil
	}
	return io.MultiReader(parts...)
}

func (d *Dispatcher) hasPassword() bool {
	return d.runtime.BecomePassword != ""
}

// session returns the cached session for host, connecting on first use.
// The lock only guards the map: connects to different hosts run in
// parallel, and concurrent callers for the same host share one connect.
func (d *Dispatcher) session(ctx context.Context, host *inventory.Host) (Session, error) {
	d.mu.Lock()
	if e, ok := d.sessions[host.Name]; ok {
		d.mu.Unlock()
		select {
		case <-e.ready:
			return e.sess, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e := &sessionEntry{ready: make(chan struct{})}
	d.sessions[host.Name] = e
	d.mu.Unlock()

	connected := false
	defer func() {
		if !connected {
			if e.err == nil {
				e.err = errors.New("connect aborted")
			}
			d.mu.Lock()
			if d.sessions[host.Name] == e {
				delete(d.sessions, host.Name)
			}
			d.mu.Unlock()
		}
		close(e.ready)
	}()

	e.sess, e.err = d.transport.Connect(ctx, host)
	connected = e.err == nil
	return e.sess, e.err
}

func (d *Dispatcher) dropSession(host *inventory.Host) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.sessions[host.Name]; ok && e.done() {
		if e.sess != nil {
			_ = e.sess.Close()
		}
		delete(d.sessions, host.Name)
	}
}

func hostName(host *inventory.Host) string {
	if host == nil {
		return "<nil>"
	}
	return host.Name
}

func needsPassword(r Result) bool {
	return strings.Contains(strings.ToLower(r.Stderr+r.Stdout), sudoPasswordRequired)
}

func userOf(host *inventory.Host) string {
	if host.User != "" {
		return host.User
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}

func copyLocal(src io.Reader, dst string) error {
	// #nosec G304 -- dst is a temp path generated by the caller
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, transferMode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
