package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the inventory file read when --inventory is not given.
const DefaultPath = "inventory/hosts.yaml"

// hostEntry is the on-disk form of a host.
type hostEntry struct {
	Hostname string         `yaml:"hostname"`
	Port     int            `yaml:"port"`
	Username string         `yaml:"username"`
	Groups   []string       `yaml:"groups"`
	Platform string         `yaml:"platform"`
	SSHKey   string         `yaml:"ssh_key"`
	Password string         `yaml:"password"`
	Become   *bool          `yaml:"become"`
	Data     map[string]any `yaml:"data"`
}

// Load reads an inventory file.
func Load(path string) (*Inventory, error) {
	// #nosec G304 -- path is provided by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	return Parse(data)
}

// Parse builds an inventory from YAML. The document maps host names to
// entries:
//
//	cp-1:
//	  hostname: 10.0.0.10
//	  username: ubuntu
//	  groups: [k8s_control_plane]
func Parse(data []byte) (*Inventory, error) {
	var raw map[string]hostEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse inventory: %w", err)
	}

	hosts := make([]*Host, 0, len(raw))
	for name, e := range raw {
		h, err := e.toHost(name)
		if err != nil {
			return nil, fmt.Errorf("host %q: %w", name, err)
		}
		hosts = append(hosts, h)
	}
	return New(hosts...), nil
}

func (e hostEntry) toHost(name string) (*Host, error) {
	if len(e.Groups) == 0 {
		return nil, fmt.Errorf("at least one group is required")
	}

	h := NewHost(name, e.Hostname, e.Groups...)
	if e.Port != 0 {
		h.Port = e.Port
	}
	h.User = e.Username
	h.Credentials = Credentials{
		PrivateKeyPath: expandHome(e.SSHKey),
		Password:       e.Password,
	}

	switch Platform(strings.ToLower(e.Platform)) {
	case PlatformLocal:
		h.Platform = PlatformLocal
	case PlatformSSH:
		h.Platform = PlatformSSH
	case "":
		h.Platform = defaultPlatform(e)
	default:
		return nil, fmt.Errorf("unknown platform %q", e.Platform)
	}

	if h.Platform == PlatformSSH {
		if h.Address == "" {
			return nil, fmt.Errorf("hostname is required for ssh hosts")
		}
		if h.User == "" {
			return nil, fmt.Errorf("username is required for ssh hosts")
		}
	}

	h.Become = true
	if e.Become != nil {
		h.Become = *e.Become
	}

	for k, v := range e.Data {
		h.Set(k, v)
	}
	return h, nil
}

// defaultPlatform treats loopback addresses and the local machine group as
// local execution.
func defaultPlatform(e hostEntry) Platform {
	switch e.Hostname {
	case "", "localhost", "127.0.0.1", "::1":
		return PlatformLocal
	}
	for _, g := range e.Groups {
		if g == GroupLocalMachine {
			return PlatformLocal
		}
	}
	return PlatformSSH
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
