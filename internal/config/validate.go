package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
)

var k8sVersionPattern = regexp.MustCompile(`^v?\d+\.\d+(\.\d+)?$`)

// Validate checks the settings for errors that would only surface halfway
// through a run.
func (s *Settings) Validate() error {
	if !k8sVersionPattern.MatchString(s.K8s.Version) {
		return fmt.Errorf("k8s.version %q is not a valid Kubernetes version", s.K8s.Version)
	}
	if _, _, err := net.ParseCIDR(s.K8s.PodNetworkCIDR); err != nil {
		return fmt.Errorf("k8s.pod_network_cidr: %w", err)
	}
	if err := s.validateFlux(); err != nil {
		return fmt.Errorf("flux validation failed: %w", err)
	}
	if s.Execution.MaxParallel < 1 {
		return fmt.Errorf("execution.max_parallel must be at least 1")
	}
	if s.Artifacts.S3.Enabled() && s.Artifacts.S3.Endpoint == "" {
		return fmt.Errorf("artifacts.s3.endpoint is required when a bucket is set")
	}
	return nil
}

func (s *Settings) validateFlux() error {
	f := s.K8s.Flux
	if !f.Enabled {
		return nil
	}
	if f.GitURL == "" {
		return fmt.Errorf("github_url is required")
	}
	if f.ClusterPath == "" {
		return fmt.Errorf("cluster_path is required")
	}
	if f.LocalKeyPath == "" {
		return fmt.Errorf("local_key_path is required")
	}
	return nil
}

// ValidateAzure checks the fields needed by the Azure tasks. It is not part
// of Validate because goals that never touch Azure should not require them.
func (s *Settings) ValidateAzure() error {
	if s.Azure.SubscriptionID == "" {
		return fmt.Errorf("azure.subscription_id is required (or AZURE_SUBSCRIPTION_ID)")
	}
	if s.Azure.ResourceGroup == "" {
		return fmt.Errorf("azure.resource_group is required (or AZURE_RESOURCE_GROUP)")
	}
	if s.Azure.Location == "" {
		return fmt.Errorf("azure.location is required (or AZURE_LOCATION)")
	}
	return nil
}

func parsePositiveInt(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("value must be positive, got %d", n)
	}
	return n, nil
}
