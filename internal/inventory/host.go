package inventory

import (
	"fmt"
	"slices"
	"sync"
)

// Platform selects how commands reach a host.
type Platform string

const (
	// PlatformLocal runs commands as subprocesses of calcifer itself.
	PlatformLocal Platform = "local"
	// PlatformSSH runs commands over an SSH session.
	PlatformSSH Platform = "ssh"
)

// Credentials authenticate the SSH connection.
type Credentials struct {
	PrivateKeyPath string
	Password       string
}

// Host is a single inventory entry.
type Host struct {
	Name        string
	Address     string
	Port        int
	User        string
	Platform    Platform
	Credentials Credentials
	Groups      []string
	// Become wraps escalated commands in sudo.
	Become bool

	mu   sync.RWMutex
	data map[string]any
}

// NewHost returns a host with an initialized data bag.
func NewHost(name, address string, groups ...string) *Host {
	return &Host{
		Name:     name,
		Address:  address,
		Port:     22,
		Platform: PlatformSSH,
		Groups:   groups,
		data:     make(map[string]any),
	}
}

// IsLocal reports whether commands run on the control machine.
func (h *Host) IsLocal() bool {
	return h.Platform == PlatformLocal
}

// InGroup reports membership of group.
func (h *Host) InGroup(group string) bool {
	return slices.Contains(h.Groups, group)
}

// Set stores a value in the host's data bag.
func (h *Host) Set(key string, value any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.data == nil {
		h.data = make(map[string]any)
	}
	h.data[key] = value
}

// Get returns a value from the host's data bag.
func (h *Host) Get(key string) (any, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.data[key]
	return v, ok
}

// GetString returns a string value from the data bag, or "" if the key is
// missing or holds another type.
func (h *Host) GetString(key string) string {
	v, ok := h.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// String returns "name (user@address)".
func (h *Host) String() string {
	if h.IsLocal() {
		return fmt.Sprintf("%s (local)", h.Name)
	}
	return fmt.Sprintf("%s (%s@%s)", h.Name, h.User, h.Address)
}
