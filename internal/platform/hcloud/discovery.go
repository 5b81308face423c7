package hcloud

import (
	"context"
	"fmt"
	"sort"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/calcifer/internal/inventory"
	"github.com/imamik/calcifer/internal/util/retry"
)

// Labels read from servers.
const (
	LabelGroup = "calcifer-group"
	LabelRole  = "role"
)

var roleGroups = map[string]string{
	"control-plane": inventory.GroupControlPlane,
	"worker":        inventory.GroupWorker,
}

// DiscoverOptions shape the hosts built from servers.
type DiscoverOptions struct {
	// LabelSelector filters servers, e.g. "cluster=prod".
	LabelSelector string
	// User is the SSH user. Defaults to root.
	User string
	// SSHKeyPath is the private key used for every discovered host.
	SSHKeyPath string
}

// Discover lists servers matching opts.LabelSelector and turns the ones
// carrying a group or role label into inventory hosts, sorted by name.
func (c *Client) Discover(ctx context.Context, opts DiscoverOptions) ([]*inventory.Host, error) {
	var servers []*hcloud.Server
	err := retry.Do(ctx, c.policy, func(int) error {
		var err error
		servers, err = c.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
			ListOpts: hcloud.ListOpts{LabelSelector: opts.LabelSelector},
		})
		if err != nil && !isRetryable(err) {
			return retry.Fatal(err)
		}
		return err
	})
	if err != nil {
		if IsUnauthorized(err) {
			return nil, fmt.Errorf("hcloud token rejected: %w", err)
		}
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}

	user := opts.User
	if user == "" {
		user = "root"
	}

	var hosts []*inventory.Host
	for _, s := range servers {
		group := serverGroup(s)
		if group == "" {
			continue
		}
		addr := serverAddress(s)
		if addr == "" {
			return nil, fmt.Errorf("server %s has no reachable address", s.Name)
		}

		h := inventory.NewHost(s.Name, addr, group)
		h.User = user
		h.Become = user != "root"
		h.Credentials.PrivateKeyPath = opts.SSHKeyPath
		h.Set("hcloud_server_id", s.ID)
		if s.Location != nil {
			h.Set("hcloud_location", s.Location.Name)
		}
		hosts = append(hosts, h)
	}

	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Name < hosts[j].Name })
	return hosts, nil
}

func serverGroup(s *hcloud.Server) string {
	if g := s.Labels[LabelGroup]; g != "" {
		return g
	}
	return roleGroups[s.Labels[LabelRole]]
}

func serverAddress(s *hcloud.Server) string {
	if ip := s.PublicNet.IPv4.IP; ip != nil && !ip.IsUnspecified() {
		return ip.String()
	}
	for _, pn := range s.PrivateNet {
		if pn.IP != nil {
			return pn.IP.String()
		}
	}
	return ""
}
