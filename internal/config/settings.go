package config

import "time"

// DefaultConfigFilename is the settings file looked up when --config is not given.
const DefaultConfigFilename = "cluster_config.yaml"

// Settings is the cluster configuration consumed by provisioning tasks.
type Settings struct {
	Environment string         `yaml:"environment"`
	Cluster     ClusterConfig  `yaml:"cluster"`
	K8s         K8sConfig      `yaml:"k8s"`
	Azure       AzureConfig    `yaml:"azure"`
	Artifacts   ArtifactConfig `yaml:"artifacts"`
	Execution   ExecConfig     `yaml:"execution"`
	HCloud      HCloudConfig   `yaml:"hcloud"`
}

// ClusterConfig identifies the cluster across artifacts and cloud projections.
type ClusterConfig struct {
	Name string `yaml:"name"`
}

// K8sConfig describes the kubeadm cluster to build.
type K8sConfig struct {
	// Version is a Kubernetes minor version such as "1.30" or "v1.30".
	Version             string            `yaml:"version"`
	PodNetworkCIDR      string            `yaml:"pod_network_cidr"`
	CNIManifestURL      string            `yaml:"cni_manifest_url"`
	KernelModules       []string          `yaml:"kernel_modules"`
	SysctlParams        map[string]string `yaml:"sysctl_params"`
	LocalKubeconfigPath string            `yaml:"local_kubeconfig_path"`
	Flux                FluxConfig        `yaml:"flux"`
}

// FluxConfig controls the GitOps bootstrap on the first control-plane node.
type FluxConfig struct {
	Enabled       bool   `yaml:"enabled"`
	GitURL        string `yaml:"github_url"`
	Branch        string `yaml:"branch"`
	ClusterPath   string `yaml:"cluster_path"`
	LocalKeyPath  string `yaml:"local_key_path"`
	RemoteKeyPath string `yaml:"remote_key_path"`
	// GenerateKey creates LocalKeyPath when it does not exist yet.
	GenerateKey bool `yaml:"generate_key"`
}

// AzureConfig holds the subscription and resource group used for Arc onboarding.
type AzureConfig struct {
	SubscriptionID string `yaml:"subscription_id"`
	TenantID       string `yaml:"tenant_id"`
	Location       string `yaml:"location"`
	ResourceGroup  string `yaml:"resource_group"`
	// ClusterName is the Arc resource name. Falls back to Cluster.Name.
	ClusterName string `yaml:"cluster_name"`
}

// ArtifactConfig controls where fetched cluster credentials are kept.
type ArtifactConfig struct {
	Dir string   `yaml:"dir"`
	S3  S3Config `yaml:"s3"`
}

// S3Config enables mirroring artifacts to S3-compatible object storage.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// PathStyle addresses buckets as <endpoint>/<bucket>, as MinIO expects.
	PathStyle bool `yaml:"path_style"`
}

// Enabled reports whether artifacts should be uploaded.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// ExecConfig tunes the engine.
type ExecConfig struct {
	// MaxParallel caps the number of hosts a single task runs on at once.
	MaxParallel int `yaml:"max_parallel"`
	// CommandTimeout overrides Timeouts.Command when set.
	CommandTimeout time.Duration `yaml:"command_timeout"`
	// BackupDir is where replaced remote files are kept. Relative paths
	// resolve against the connecting user's home directory.
	BackupDir string `yaml:"backup_dir"`
}

// HCloudConfig enables inventory discovery from Hetzner Cloud.
type HCloudConfig struct {
	Token         string `yaml:"token"`
	LabelSelector string `yaml:"label_selector"`
	User          string `yaml:"user"`
	SSHKeyPath    string `yaml:"ssh_key_path"`
}

// ArcClusterName returns the resource name used for Azure Arc.
func (s *Settings) ArcClusterName() string {
	if s.Azure.ClusterName != "" {
		return s.Azure.ClusterName
	}
	return s.Cluster.Name
}

// KubeconfigPath returns the local admin kubeconfig location.
func (s *Settings) KubeconfigPath() string {
	return s.K8s.LocalKubeconfigPath
}

// AsMap returns the settings as a generic tree, the shape stored in each
// host's data bag under "app_config".
func (s *Settings) AsMap() map[string]any {
	return map[string]any{
		"environment": s.Environment,
		"cluster":     map[string]any{"name": s.Cluster.Name},
		"k8s": map[string]any{
			"version":               s.K8s.Version,
			"pod_network_cidr":      s.K8s.PodNetworkCIDR,
			"cni_manifest_url":      s.K8s.CNIManifestURL,
			"kernel_modules":        append([]string(nil), s.K8s.KernelModules...),
			"sysctl_params":         copyStringMap(s.K8s.SysctlParams),
			"local_kubeconfig_path": s.K8s.LocalKubeconfigPath,
			"flux": map[string]any{
				"enabled":         s.K8s.Flux.Enabled,
				"github_url":      s.K8s.Flux.GitURL,
				"branch":          s.K8s.Flux.Branch,
				"cluster_path":    s.K8s.Flux.ClusterPath,
				"local_key_path":  s.K8s.Flux.LocalKeyPath,
				"remote_key_path": s.K8s.Flux.RemoteKeyPath,
			},
		},
		"azure": map[string]any{
			"subscription_id": s.Azure.SubscriptionID,
			"tenant_id":       s.Azure.TenantID,
			"location":        s.Azure.Location,
			"resource_group":  s.Azure.ResourceGroup,
		},
	}
}

func copyStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
