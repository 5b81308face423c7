package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default values applied by Load when the file leaves a field empty.
const (
	DefaultClusterName    = "calcifer"
	DefaultK8sVersion     = "1.30"
	DefaultPodNetworkCIDR = "10.244.0.0/16"
	DefaultCNIManifestURL = "https://raw.githubusercontent.com/flannel-io/flannel/master/Documentation/kube-flannel.yml"
	DefaultArtifactsDir   = "inventory"
	DefaultMaxParallel    = 10
	DefaultBackupDir      = ".calcifer_backups"
	DefaultFluxBranch     = "main"
	DefaultFluxRemoteKey  = "/root/.ssh/flux_deploy_key"
)

// DefaultKernelModules are loaded on every Kubernetes node.
var DefaultKernelModules = []string{"overlay", "br_netfilter"}

// DefaultSysctlParams are the bridge and forwarding settings kubeadm preflight expects.
var DefaultSysctlParams = map[string]string{
	"net.bridge.bridge-nf-call-iptables":  "1",
	"net.bridge.bridge-nf-call-ip6tables": "1",
	"net.ipv4.ip_forward":                 "1",
}

// ErrConfigNotFound is returned by FindConfigFile when no settings file exists.
var ErrConfigNotFound = errors.New("config file not found")

// Load reads settings from a YAML file, applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Settings, error) {
	// #nosec G304 -- path is provided by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses settings from YAML bytes. See Load.
func LoadFromBytes(data []byte) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	s.ApplyEnv(os.LookupEnv)
	s.ApplyDefaults()

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &s, nil
}

// FindConfigFile returns path if it exists, otherwise DefaultConfigFilename
// in the working directory.
func FindConfigFile(path string) (string, error) {
	candidates := []string{path, DefaultConfigFilename}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, err := os.Stat(c); err == nil {
			return filepath.Clean(c), nil
		}
	}
	if path == "" {
		path = DefaultConfigFilename
	}
	return "", fmt.Errorf("%w: %s", ErrConfigNotFound, path)
}

// ApplyDefaults fills unset fields.
func (s *Settings) ApplyDefaults() {
	if s.Cluster.Name == "" {
		s.Cluster.Name = DefaultClusterName
	}
	if s.K8s.Version == "" {
		s.K8s.Version = DefaultK8sVersion
	}
	if s.K8s.PodNetworkCIDR == "" {
		s.K8s.PodNetworkCIDR = DefaultPodNetworkCIDR
	}
	if s.K8s.CNIManifestURL == "" {
		s.K8s.CNIManifestURL = DefaultCNIManifestURL
	}
	if s.K8s.KernelModules == nil {
		s.K8s.KernelModules = append([]string(nil), DefaultKernelModules...)
	}
	if s.K8s.SysctlParams == nil {
		s.K8s.SysctlParams = copyStringMap(DefaultSysctlParams)
	}
	if s.Artifacts.Dir == "" {
		s.Artifacts.Dir = DefaultArtifactsDir
	}
	if s.K8s.LocalKubeconfigPath == "" {
		s.K8s.LocalKubeconfigPath = filepath.Join(s.Artifacts.Dir, "kubeconfig_admin.yaml")
	}
	if s.K8s.Flux.Branch == "" {
		s.K8s.Flux.Branch = DefaultFluxBranch
	}
	if s.K8s.Flux.RemoteKeyPath == "" {
		s.K8s.Flux.RemoteKeyPath = DefaultFluxRemoteKey
	}
	if s.Execution.MaxParallel <= 0 {
		s.Execution.MaxParallel = DefaultMaxParallel
	}
	if s.Execution.BackupDir == "" {
		s.Execution.BackupDir = DefaultBackupDir
	}
	if s.Artifacts.S3.Region == "" {
		s.Artifacts.S3.Region = "us-east-1"
	}
}

// ApplyEnv overrides file values with environment variables. lookup is
// usually os.LookupEnv.
//
// Environment Variables:
//   - ENV
//   - K8S_VERSION
//   - AZURE_SUBSCRIPTION_ID, AZURE_TENANT_ID, AZURE_LOCATION, AZURE_RESOURCE_GROUP
//   - HCLOUD_TOKEN
//   - CALCIFER_MAX_PARALLEL
//   - CALCIFER_S3_ACCESS_KEY, CALCIFER_S3_SECRET_KEY
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("ENV", &s.Environment)
	str("K8S_VERSION", &s.K8s.Version)
	str("AZURE_SUBSCRIPTION_ID", &s.Azure.SubscriptionID)
	str("AZURE_TENANT_ID", &s.Azure.TenantID)
	str("AZURE_LOCATION", &s.Azure.Location)
	str("AZURE_RESOURCE_GROUP", &s.Azure.ResourceGroup)
	str("HCLOUD_TOKEN", &s.HCloud.Token)
	str("CALCIFER_S3_ACCESS_KEY", &s.Artifacts.S3.AccessKey)
	str("CALCIFER_S3_SECRET_KEY", &s.Artifacts.S3.SecretKey)

	if v, ok := lookup("CALCIFER_MAX_PARALLEL"); ok {
		if n, err := parsePositiveInt(v); err == nil {
			s.Execution.MaxParallel = n
		}
	}
}
