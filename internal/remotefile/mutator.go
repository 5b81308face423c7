package remotefile

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/imamik/calcifer/internal/dispatch"
	"github.com/imamik/calcifer/internal/inventory"
)

const (
	// DefaultBackupDir is resolved against the connecting user's home.
	DefaultBackupDir = ".calcifer_backups"
	defaultTempDir   = "/tmp"
	defaultOwner     = "root:root"
	defaultMode      = "644"
	backupTimeFormat = "20060102_150405"
)

// Stage names a step of the write protocol.
type Stage string

const (
	StageStage       Stage = "stage"
	StageTransfer    Stage = "transfer"
	StageBackup      Stage = "backup"
	StageMove        Stage = "move"
	StagePermissions Stage = "permissions"
)

// WriteResult reports the outcome of WriteFile and EnsureLine.
type WriteResult struct {
	Changed   bool
	Succeeded bool
	// Stage is set when Succeeded is false.
	Stage      Stage
	Message    string
	BackupPath string
}

// Mutator reads and writes files through a dispatch.Executor.
type Mutator struct {
	exec          dispatch.Executor
	now           func() time.Time
	tempName      func() string
	remoteTempDir string
	localTempDir  string
	backupDir     string
	log           logr.Logger
}

// Option configures a Mutator.
type Option func(*Mutator)

// WithClock sets the time source used for backup names.
func WithClock(now func() time.Time) Option {
	return func(m *Mutator) { m.now = now }
}

// WithTempNames sets the generator for remote temporary file names.
func WithTempNames(gen func() string) Option {
	return func(m *Mutator) { m.tempName = gen }
}

// WithRemoteTempDir sets where staged files land on the target.
func WithRemoteTempDir(dir string) Option {
	return func(m *Mutator) { m.remoteTempDir = dir }
}

// WithLocalTempDir sets where content is staged on the control machine.
func WithLocalTempDir(dir string) Option {
	return func(m *Mutator) { m.localTempDir = dir }
}

// WithBackupDir sets the backup directory. A relative dir is resolved
// against $HOME of the user the dispatcher connects as.
func WithBackupDir(dir string) Option {
	return func(m *Mutator) {
		if dir != "" {
			m.backupDir = dir
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l logr.Logger) Option {
	return func(m *Mutator) { m.log = l }
}

// New returns a Mutator that runs its commands through exec.
func New(exec dispatch.Executor, opts ...Option) *Mutator {
	m := &Mutator{
		exec:          exec,
		now:           time.Now,
		tempName:      defaultTempName,
		remoteTempDir: defaultTempDir,
		backupDir:     DefaultBackupDir,
		log:           logr.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func defaultTempName() string {
	return "calcifer_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Exists reports whether path is a regular file on host.
func (m *Mutator) Exists(ctx context.Context, host *inventory.Host, p string) bool {
	return m.exec.Run(ctx, host, dispatch.Cmd("test", "-f", p).Escalated()).Succeeded
}

// ReadFile returns the content of path, or "" if it is absent or unreadable.
func (m *Mutator) ReadFile(ctx context.Context, host *inventory.Host, p string) string {
	if !m.Exists(ctx, host, p) {
		return ""
	}
	res := m.exec.Run(ctx, host, dispatch.Cmd("cat", p).Escalated())
	if res.Failed() {
		return ""
	}
	return res.Stdout
}

type writeOptions struct {
	owner string
	mode  string
}

// WriteOption sets ownership or permissions of a written file.
type WriteOption func(*writeOptions)

// WithOwner sets the owner passed to chown. An empty owner skips chown.
func WithOwner(owner string) WriteOption {
	return func(o *writeOptions) { o.owner = owner }
}

// WithMode sets the octal mode passed to chmod.
func WithMode(mode string) WriteOption {
	return func(o *writeOptions) { o.mode = mode }
}

// WriteFile makes path on host contain exactly content.
func (m *Mutator) WriteFile(ctx context.Context, host *inventory.Host, p, content string, opts ...WriteOption) WriteResult {
	wo := writeOptions{owner: defaultOwner, mode: defaultMode}
	for _, opt := range opts {
		opt(&wo)
	}

	current := m.ReadFile(ctx, host, p)
	if sha256.Sum256([]byte(current)) == sha256.Sum256([]byte(content)) {
		return WriteResult{Succeeded: true, Message: "File is up to date"}
	}

	local, err := m.stage(content)
	if err != nil {
		return failed(StageStage, "failed to stage content: %v", err)
	}
	defer func() { _ = os.Remove(local) }()

	remoteTmp := path.Join(m.remoteTempDir, m.tempName())
	cleanup := func() {
		m.exec.Run(ctx, host, dispatch.Cmd("rm", "-f", remoteTmp).Escalated())
	}

	// A failed upload may still have created the temp file.
	if res := m.exec.Transfer(ctx, host, local, remoteTmp); res.Failed() {
		cleanup()
		return failed(StageTransfer, "Transfer failed: %s", res.Output)
	}

	var backupPath string
	if m.Exists(ctx, host, p) {
		bp, res := m.backup(ctx, host, p)
		if res.Failed() {
			cleanup()
			return failed(StageBackup, "Backup failed: %s", res.Output)
		}
		backupPath = bp
	}

	if res := m.exec.Run(ctx, host, dispatch.Cmd("mv", remoteTmp, p).Escalated()); res.Failed() {
		cleanup()
		return failed(StageMove, "Move failed: %s", res.Output)
	}

	if wo.owner != "" {
		if res := m.exec.Run(ctx, host, dispatch.Cmd("chown", wo.owner, p).Escalated()); res.Failed() {
			return failed(StagePermissions, "chown %s failed: %s", wo.owner, res.Output)
		}
	}
	if wo.mode != "" {
		if res := m.exec.Run(ctx, host, dispatch.Cmd("chmod", wo.mode, p).Escalated()); res.Failed() {
			return failed(StagePermissions, "chmod %s failed: %s", wo.mode, res.Output)
		}
	}

	m.log.V(1).Info("file updated", "host", host.Name, "path", p, "backup", backupPath)

	msg := "File updated"
	if backupPath != "" {
		msg = "File updated (backup saved to " + backupPath + ")"
	}
	return WriteResult{Changed: true, Succeeded: true, Message: msg, BackupPath: backupPath}
}

func (m *Mutator) stage(content string) (string, error) {
	f, err := os.CreateTemp(m.localTempDir, "calcifer-stage-*")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// backup copies p into the backup directory, named after its path and the
// current time.
func (m *Mutator) backup(ctx context.Context, host *inventory.Host, p string) (string, dispatch.Result) {
	dir, res := m.resolveBackupDir(ctx, host)
	if res.Failed() {
		return "", res
	}

	name := fmt.Sprintf("%s.%s.bak", strings.ReplaceAll(p, "/", "_"), m.now().Format(backupTimeFormat))
	backupPath := path.Join(dir, name)

	if res := m.exec.Run(ctx, host, dispatch.Cmd("mkdir", "-p", dir).Escalated()); res.Failed() {
		return "", res
	}
	res = m.exec.Run(ctx, host, dispatch.Cmd("cp", "-p", p, backupPath).Escalated())
	return backupPath, res
}

func (m *Mutator) resolveBackupDir(ctx context.Context, host *inventory.Host) (string, dispatch.Result) {
	if path.IsAbs(m.backupDir) {
		return m.backupDir, dispatch.Result{Succeeded: true}
	}
	res := m.exec.Run(ctx, host, dispatch.Sh(`printf '%s' "$HOME"`))
	if res.Failed() {
		return "", res
	}
	home := strings.TrimSpace(res.Stdout)
	if home == "" {
		res.Succeeded = false
		res.Output = "cannot resolve home directory for backups"
		return "", res
	}
	return path.Join(home, m.backupDir), res
}

func failed(stage Stage, format string, args ...any) WriteResult {
	return WriteResult{Stage: stage, Message: fmt.Sprintf(format, args...)}
}
