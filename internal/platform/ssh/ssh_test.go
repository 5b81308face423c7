package ssh

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/imamik/calcifer/internal/config"
	"github.com/imamik/calcifer/internal/inventory"
	"github.com/imamik/calcifer/internal/util/keygen"
)

// generateTestKey generates a key pair for use in tests.
func generateTestKey(t *testing.T) (*keygen.KeyPair, ssh.PublicKey) {
	t.Helper()
	kp, err := keygen.GenerateEd25519("test")
	require.NoError(t, err)
	pub, _, _, _, err := ssh.ParseAuthorizedKey(kp.PublicKey)
	require.NoError(t, err)
	return kp, pub
}

func newConnectedClient(t *testing.T) (*Client, *testServer) {
	t.Helper()
	kp, pub := generateTestKey(t)
	srv := newTestServer(t, pub, "")
	host, port := srv.hostPort(t)

	client, err := NewClient(&Config{
		Host:       host,
		Port:       port,
		User:       "ubuntu",
		PrivateKey: kp.PrivateKey,
		MaxRetries: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()
	kp, _ := generateTestKey(t)

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{"nil config", nil, "config cannot be nil"},
		{"empty host", &Config{User: "root", PrivateKey: kp.PrivateKey}, "host cannot be empty"},
		{"empty user", &Config{Host: "10.0.0.1", PrivateKey: kp.PrivateKey}, "user cannot be empty"},
		{"no credentials", &Config{Host: "10.0.0.1", User: "root"}, "private key or a password"},
		{"invalid key", &Config{Host: "10.0.0.1", User: "root", PrivateKey: []byte("invalid key")}, "failed to parse private key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewClient(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewClient_AppliesDefaults(t *testing.T) {
	t.Parallel()
	kp, _ := generateTestKey(t)

	cfg := &Config{Host: "10.0.0.1", User: "root", PrivateKey: kp.PrivateKey}
	client, err := NewClient(cfg)
	require.NoError(t, err)

	assert.Equal(t, defaultPort, client.config.Port)
	assert.Equal(t, defaultDialTimeout, client.config.DialTimeout)
	assert.Equal(t, defaultMaxRetries, client.config.MaxRetries)
	assert.Equal(t, defaultRetryDelay, client.config.RetryDelay)
	assert.NotNil(t, client.config.HostKeyCallback)
	assert.Zero(t, cfg.Port, "caller's config must not be mutated")
	assert.Equal(t, "10.0.0.1:22", client.Addr())
}

func TestNewClient_PasswordOnly(t *testing.T) {
	t.Parallel()
	client, err := NewClient(&Config{Host: "10.0.0.1", User: "root", Password: "pw"})
	require.NoError(t, err)
	assert.Len(t, client.auth, 1)
}

func TestExec(t *testing.T) {
	t.Parallel()
	client, srv := newConnectedClient(t)

	res, err := client.Exec(context.Background(), "echo hello; echo oops >&2", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello\n", string(res.Stdout))
	assert.Equal(t, "oops\n", string(res.Stderr))
	assert.Equal(t, []string{"echo hello; echo oops >&2"}, srv.seen())
}

func TestExec_NonZeroExit(t *testing.T) {
	t.Parallel()
	client, _ := newConnectedClient(t)

	res, err := client.Exec(context.Background(), "exit 7", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, res.ExitCode)
}

func TestExec_Stdin(t *testing.T) {
	t.Parallel()
	client, _ := newConnectedClient(t)

	res, err := client.Exec(context.Background(), "tr a-z A-Z", strings.NewReader("calcifer"))
	require.NoError(t, err)
	assert.Equal(t, "CALCIFER", string(res.Stdout))
}

func TestExec_ReusesConnection(t *testing.T) {
	t.Parallel()
	client, _ := newConnectedClient(t)

	for range 3 {
		_, err := client.Exec(context.Background(), "true", nil)
		require.NoError(t, err)
	}
	client.mu.Lock()
	conn := client.conn
	client.mu.Unlock()
	assert.NotNil(t, conn)
}

func TestExec_ContextCancellation(t *testing.T) {
	t.Parallel()
	client, _ := newConnectedClient(t)
	require.NoError(t, client.Connect(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := client.Exec(ctx, "sleep 5", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, -1, res.ExitCode)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestUpload(t *testing.T) {
	t.Parallel()
	client, _ := newConnectedClient(t)
	dest := filepath.Join(t.TempDir(), "calcifer_upload")

	err := client.Upload(context.Background(), strings.NewReader("kernel modules\n"), dest, 0o640)
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "kernel modules\n", string(got))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestUpload_Failure(t *testing.T) {
	t.Parallel()
	client, _ := newConnectedClient(t)

	err := client.Upload(context.Background(), strings.NewReader("x"), "/nonexistent-dir/file", 0o600)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with")
}

func TestConnect_AuthFailureIsNotRetried(t *testing.T) {
	t.Parallel()
	kp, _ := generateTestKey(t)
	_, otherPub := generateTestKey(t)
	srv := newTestServer(t, otherPub, "")
	host, port := srv.hostPort(t)

	client, err := NewClient(&Config{
		Host: host, Port: port, User: "ubuntu", PrivateKey: kp.PrivateKey,
		MaxRetries: 5, RetryDelay: time.Second,
	})
	require.NoError(t, err)

	start := time.Now()
	err = client.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not retrying")
	assert.Less(t, time.Since(start), time.Second)
}

func TestConnect_Unreachable(t *testing.T) {
	t.Parallel()
	kp, _ := generateTestKey(t)
	client, err := NewClient(&Config{
		Host: "127.0.0.1", Port: 1, User: "u", PrivateKey: kp.PrivateKey,
		MaxRetries: 2, RetryDelay: time.Millisecond, DialTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	err = client.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to establish SSH connection to 127.0.0.1:1")
}

func TestTransport_Connect(t *testing.T) {
	t.Parallel()
	kp, pub := generateTestKey(t)
	srv := newTestServer(t, pub, "")
	addr, port := srv.hostPort(t)

	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, kp.PrivateKey, 0o600))

	host := inventory.NewHost("cp-1", addr, inventory.GroupControlPlane)
	host.Port = port
	host.User = "ubuntu"
	host.Credentials.PrivateKeyPath = keyPath

	tr := NewTransport(&config.Timeouts{SSHDial: time.Second, RetryMaxAttempts: 1, RetryInitialDelay: time.Millisecond})
	sess, err := tr.Connect(context.Background(), host)
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	res, err := sess.Exec(context.Background(), "echo ok", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(res.Stdout))
}

func TestTransport_PasswordAuth(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil, "hunter2")
	addr, port := srv.hostPort(t)

	host := inventory.NewHost("w-1", addr, inventory.GroupWorker)
	host.Port = port
	host.User = "ubuntu"
	host.Credentials.Password = "hunter2"

	tr := NewTransport(&config.Timeouts{SSHDial: time.Second, RetryMaxAttempts: 1})
	sess, err := tr.Connect(context.Background(), host)
	require.NoError(t, err)
	assert.NoError(t, sess.Close())
}

func TestTransport_MissingKeyFile(t *testing.T) {
	t.Parallel()
	host := inventory.NewHost("cp-1", "10.0.0.10", inventory.GroupControlPlane)
	host.User = "ubuntu"
	host.Credentials.PrivateKeyPath = filepath.Join(t.TempDir(), "missing")

	_, err := NewTransport(nil).Connect(context.Background(), host)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read private key")
}
