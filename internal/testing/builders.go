package testing

import (
	"maps"
	"slices"

	"github.com/imamik/calcifer/internal/config"
	"github.com/imamik/calcifer/internal/inventory"
)

// HostBuilder provides a fluent interface for constructing test hosts.
type HostBuilder struct {
	name     string
	address  string
	user     string
	platform inventory.Platform
	groups   []string
	become   bool
	data     map[string]any
}

// NewHostBuilder starts an SSH host named name with address 10.0.0.1.
func NewHostBuilder(name string) *HostBuilder {
	return &HostBuilder{
		name:     name,
		address:  "10.0.0.1",
		user:     "ubuntu",
		platform: inventory.PlatformSSH,
		become:   true,
		data:     map[string]any{},
	}
}

// WithAddress sets the address.
func (b *HostBuilder) WithAddress(addr string) *HostBuilder {
	nb := b.clone()
	nb.address = addr
	return nb
}

// WithUser sets the SSH user.
func (b *HostBuilder) WithUser(user string) *HostBuilder {
	nb := b.clone()
	nb.user = user
	return nb
}

// Local makes the host run commands on the control machine.
func (b *HostBuilder) Local() *HostBuilder {
	nb := b.clone()
	nb.platform = inventory.PlatformLocal
	nb.address = "localhost"
	return nb
}

// InGroup adds group memberships.
func (b *HostBuilder) InGroup(groups ...string) *HostBuilder {
	nb := b.clone()
	nb.groups = append(nb.groups, groups...)
	return nb
}

// WithData seeds the data bag.
func (b *HostBuilder) WithData(key string, value any) *HostBuilder {
	nb := b.clone()
	nb.data[key] = value
	return nb
}

// Build returns a new host.
func (b *HostBuilder) Build() *inventory.Host {
	h := inventory.NewHost(b.name, b.address, slices.Clone(b.groups)...)
	h.User = b.user
	h.Platform = b.platform
	h.Become = b.become
	for k, v := range b.data {
		h.Set(k, v)
	}
	return h
}

func (b *HostBuilder) clone() *HostBuilder {
	nb := *b
	nb.groups = slices.Clone(b.groups)
	nb.data = maps.Clone(b.data)
	return &nb
}

// SettingsBuilder provides a fluent interface for constructing test settings.
// Each method returns a new builder (immutable) for chaining.
type SettingsBuilder struct {
	s config.Settings
}

// NewSettingsBuilder returns settings with defaults applied and cluster
// name "test-cluster".
func NewSettingsBuilder() *SettingsBuilder {
	var s config.Settings
	s.Cluster.Name = "test-cluster"
	s.ApplyDefaults()
	return &SettingsBuilder{s: s}
}

// WithK8sVersion sets the Kubernetes version.
func (b *SettingsBuilder) WithK8sVersion(v string) *SettingsBuilder {
	nb := b.clone()
	nb.s.K8s.Version = v
	return nb
}

// WithFlux enables the flux bootstrap.
func (b *SettingsBuilder) WithFlux(gitURL, clusterPath, localKey string) *SettingsBuilder {
	nb := b.clone()
	nb.s.K8s.Flux.Enabled = true
	nb.s.K8s.Flux.GitURL = gitURL
	nb.s.K8s.Flux.ClusterPath = clusterPath
	nb.s.K8s.Flux.LocalKeyPath = localKey
	return nb
}

// WithFluxKeyGeneration sets flux.generate_key.
func (b *SettingsBuilder) WithFluxKeyGeneration() *SettingsBuilder {
	nb := b.clone()
	nb.s.K8s.Flux.GenerateKey = true
	return nb
}

// WithAzure sets the Arc subscription, resource group and location.
func (b *SettingsBuilder) WithAzure(subscription, resourceGroup, location string) *SettingsBuilder {
	nb := b.clone()
	nb.s.Azure.SubscriptionID = subscription
	nb.s.Azure.ResourceGroup = resourceGroup
	nb.s.Azure.Location = location
	return nb
}

// WithLocalKubeconfig sets k8s.local_kubeconfig_path.
func (b *SettingsBuilder) WithLocalKubeconfig(p string) *SettingsBuilder {
	nb := b.clone()
	nb.s.K8s.LocalKubeconfigPath = p
	return nb
}

// Build returns the constructed settings.
func (b *SettingsBuilder) Build() *config.Settings {
	s := b.clone().s
	return &s
}

func (b *SettingsBuilder) clone() *SettingsBuilder {
	ns := b.s
	ns.K8s.KernelModules = slices.Clone(b.s.K8s.KernelModules)
	ns.K8s.SysctlParams = maps.Clone(b.s.K8s.SysctlParams)
	return &SettingsBuilder{s: ns}
}
