package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alessio/shellescape"
	"golang.org/x/crypto/ssh"

	"github.com/imamik/calcifer/internal/dispatch"
	"github.com/imamik/calcifer/internal/util/retry"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
	defaultMaxRetries  = 5
	defaultRetryDelay  = time.Second
	defaultMaxDelay    = 10 * time.Second
)

// Config holds SSH client configuration.
type Config struct {
	Host       string
	Port       int
	User       string
	PrivateKey []byte
	Password   string

	// DialTimeout is the timeout for establishing the TCP connection.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// MaxRetries is the number of connection attempts.
	// If zero, defaultMaxRetries is used.
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts.
	// If zero, defaultRetryDelay is used.
	RetryDelay time.Duration

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used.
	HostKeyCallback ssh.HostKeyCallback
}

// Client runs commands on one remote host over a single connection.
type Client struct {
	config *Config
	auth   []ssh.AuthMethod

	mu   sync.Mutex
	conn *ssh.Client
}

// NewClient creates a new SSH client and validates its credentials. No
// connection is made until the first Connect or Exec.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("config host cannot be empty")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if len(cfg.PrivateKey) == 0 && cfg.Password == "" {
		return nil, fmt.Errorf("config requires a private key or a password")
	}

	// Copy config to avoid mutating caller's struct
	configCopy := *cfg
	if configCopy.Port == 0 {
		configCopy.Port = defaultPort
	}
	if configCopy.DialTimeout == 0 {
		configCopy.DialTimeout = defaultDialTimeout
	}
	if configCopy.MaxRetries == 0 {
		configCopy.MaxRetries = defaultMaxRetries
	}
	if configCopy.RetryDelay == 0 {
		configCopy.RetryDelay = defaultRetryDelay
	}
	if configCopy.HostKeyCallback == nil {
		configCopy.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // nodes are contacted before their keys are known
	}

	var auth []ssh.AuthMethod
	if len(configCopy.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(configCopy.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if configCopy.Password != "" {
		auth = append(auth, ssh.Password(configCopy.Password))
	}

	return &Client{config: &configCopy, auth: auth}, nil
}

// Addr returns host:port.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
}

// Connect establishes the connection if it is not open yet.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.connection(ctx)
	return err
}

func (c *Client) connection(ctx context.Context) (*ssh.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}

	clientConfig := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            c.auth,
		HostKeyCallback: c.config.HostKeyCallback,
		Timeout:         c.config.DialTimeout,
	}

	addr := c.Addr()
	policy := retry.Policy{
		Attempts:     c.config.MaxRetries,
		InitialDelay: c.config.RetryDelay,
		MaxDelay:     defaultMaxDelay,
	}

	var conn *ssh.Client
	err := retry.Do(ctx, policy, func(int) error {
		var dialErr error
		conn, dialErr = dial(ctx, addr, clientConfig)
		if dialErr != nil && isAuthError(dialErr) {
			return retry.Fatal(dialErr)
		}
		return dialErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to establish SSH connection to %s: %w", addr, err)
	}

	c.conn = conn
	return conn, nil
}

// Exec runs cmdline in a new session. A non-zero exit status is returned in
// the result with a nil error.
func (c *Client) Exec(ctx context.Context, cmdline string, stdin io.Reader) (dispatch.ExecResult, error) {
	conn, err := c.connection(ctx)
	if err != nil {
		return dispatch.ExecResult{ExitCode: -1}, err
	}

	session, err := conn.NewSession()
	if err != nil {
		return dispatch.ExecResult{ExitCode: -1}, fmt.Errorf("failed to create SSH session on %s: %w", c.config.Host, err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != nil {
		session.Stdin = stdin
	}

	done := make(chan error, 1)
	go func() { done <- session.Run(cmdline) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return dispatch.ExecResult{ExitCode: -1}, ctx.Err()
	case err := <-done:
		res := dispatch.ExecResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
		if err == nil {
			return res, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitStatus()
			return res, nil
		}
		res.ExitCode = -1
		return res, fmt.Errorf("command failed on %s: %w", c.config.Host, err)
	}
}

// Upload streams r into path, replacing any existing file, and sets mode.
// The file is created with a restrictive umask so its content is never
// readable by other users, even briefly.
func (c *Client) Upload(ctx context.Context, r io.Reader, path string, mode os.FileMode) error {
	quoted := shellescape.Quote(path)
	script := fmt.Sprintf("umask 077 && cat > %s && chmod %o %s", quoted, mode.Perm(), quoted)

	res, err := c.Exec(ctx, "sh -c "+shellescape.Quote(script), r)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("upload to %s exited with %d: %s", path, res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}

// Close closes the connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// dial honours ctx during the TCP connect, which ssh.Dial does not.
func dial(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	netConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	conn, chans, reqs, err := ssh.NewClientConn(netConn, addr, cfg)
	if err != nil {
		_ = netConn.Close()
		return nil, err
	}
	return ssh.NewClient(conn, chans, reqs), nil
}

func isAuthError(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}
