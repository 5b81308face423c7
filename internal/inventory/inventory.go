package inventory

import "sort"

// Well-known groups, in the order a run visits them.
const (
	GroupLocalMachine = "local_machine"
	GroupControlPlane = "k8s_control_plane"
	GroupWorker       = "k8s_worker"
)

// Inventory is an ordered set of hosts.
type Inventory struct {
	hosts []*Host
}

// New builds an inventory from hosts, sorted by name for stable output.
func New(hosts ...*Host) *Inventory {
	sorted := append([]*Host(nil), hosts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &Inventory{hosts: sorted}
}

// Hosts returns every host.
func (inv *Inventory) Hosts() []*Host {
	return append([]*Host(nil), inv.hosts...)
}

// Host returns the host called name.
func (inv *Inventory) Host(name string) (*Host, bool) {
	for _, h := range inv.hosts {
		if h.Name == name {
			return h, true
		}
	}
	return nil, false
}

// Filter returns the hosts in group. A non-empty name narrows the result
// to the host with exactly that name.
func (inv *Inventory) Filter(group, name string) []*Host {
	var out []*Host
	for _, h := range inv.hosts {
		if !h.InGroup(group) {
			continue
		}
		if name != "" && h.Name != name {
			continue
		}
		out = append(out, h)
	}
	return out
}

// Groups returns the distinct group names in use.
func (inv *Inventory) Groups() []string {
	seen := map[string]bool{}
	var out []string
	for _, h := range inv.hosts {
		for _, g := range h.Groups {
			if !seen[g] {
				seen[g] = true
				out = append(out, g)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of hosts.
func (inv *Inventory) Len() int {
	return len(inv.hosts)
}

// SetAll stores key=value in every host's data bag.
func (inv *Inventory) SetAll(key string, value any) {
	for _, h := range inv.hosts {
		h.Set(key, value)
	}
}
