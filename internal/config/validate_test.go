package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validSettings() *Settings {
	s := &Settings{}
	s.ApplyDefaults()
	return s
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Settings) {}},
		{name: "v prefixed version", mutate: func(s *Settings) { s.K8s.Version = "v1.30.2" }},
		{name: "bad version", mutate: func(s *Settings) { s.K8s.Version = "latest" }, wantErr: "not a valid Kubernetes version"},
		{name: "bad cidr", mutate: func(s *Settings) { s.K8s.PodNetworkCIDR = "10.0.0.0" }, wantErr: "pod_network_cidr"},
		{
			name:    "flux without url",
			mutate:  func(s *Settings) { s.K8s.Flux.Enabled = true },
			wantErr: "github_url is required",
		},
		{
			name: "flux without key",
			mutate: func(s *Settings) {
				s.K8s.Flux = FluxConfig{Enabled: true, GitURL: "ssh://git@x/y.git", ClusterPath: "c"}
			},
			wantErr: "local_key_path is required",
		},
		{
			name:    "s3 without endpoint",
			mutate:  func(s *Settings) { s.Artifacts.S3.Bucket = "artifacts" },
			wantErr: "endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateAzure(t *testing.T) {
	t.Parallel()

	s := validSettings()
	assert.ErrorContains(t, s.ValidateAzure(), "subscription_id")

	s.Azure = AzureConfig{SubscriptionID: "sub", ResourceGroup: "rg", Location: "westeurope"}
	assert.NoError(t, s.ValidateAzure())
}
