package dispatch

import (
	"context"
	"io"
	"os"

	"github.com/imamik/calcifer/internal/inventory"
)

// ExecResult is the raw outcome of a process on a remote session.
type ExecResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Session is an open connection to one remote host.
type Session interface {
	// Exec runs cmdline through the remote login shell. A non-zero exit is
	// reported in ExecResult with a nil error; the error is reserved for
	// transport failures and context cancellation.
	Exec(ctx context.Context, cmdline string, stdin io.Reader) (ExecResult, error)
	// Upload writes r to path on the host with the given mode.
	Upload(ctx context.Context, r io.Reader, path string, mode os.FileMode) error
	Close() error
}

// Transport opens sessions to remote hosts.
type Transport interface {
	Connect(ctx context.Context, host *inventory.Host) (Session, error)
}
