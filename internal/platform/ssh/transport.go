package ssh

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"

	"github.com/imamik/calcifer/internal/config"
	"github.com/imamik/calcifer/internal/dispatch"
	"github.com/imamik/calcifer/internal/inventory"
)

// Transport opens SSH clients for inventory hosts.
type Transport struct {
	timeouts        *config.Timeouts
	hostKeyCallback ssh.HostKeyCallback
	readFile        func(string) ([]byte, error)
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithHostKeyCallback enables host key verification.
func WithHostKeyCallback(cb ssh.HostKeyCallback) TransportOption {
	return func(t *Transport) {
		t.hostKeyCallback = cb
	}
}

// NewTransport returns a Transport using the dial and retry settings in timeouts.
func NewTransport(timeouts *config.Timeouts, opts ...TransportOption) *Transport {
	if timeouts == nil {
		timeouts = config.LoadTimeouts()
	}
	t := &Transport{timeouts: timeouts, readFile: os.ReadFile}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect implements dispatch.Transport.
func (t *Transport) Connect(ctx context.Context, host *inventory.Host) (dispatch.Session, error) {
	cfg, err := t.clientConfig(host)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("host %s: %w", host.Name, err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func (t *Transport) clientConfig(host *inventory.Host) (*Config, error) {
	cfg := &Config{
		Host:            host.Address,
		Port:            host.Port,
		User:            host.User,
		Password:        host.Credentials.Password,
		DialTimeout:     t.timeouts.SSHDial,
		MaxRetries:      t.timeouts.RetryMaxAttempts,
		RetryDelay:      t.timeouts.RetryInitialDelay,
		HostKeyCallback: t.hostKeyCallback,
	}
	if path := host.Credentials.PrivateKeyPath; path != "" {
		key, err := t.readFile(path)
		if err != nil {
			return nil, fmt.Errorf("host %s: failed to read private key: %w", host.Name, err)
		}
		cfg.PrivateKey = key
	}
	return cfg, nil
}
