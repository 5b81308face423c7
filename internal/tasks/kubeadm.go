package tasks

import (
	"fmt"
	"net"

	"sigs.k8s.io/yaml"
)

const kubeadmAPIVersion = "kubeadm.k8s.io/v1beta3"

type kubeadmInitConfiguration struct {
	APIVersion       string                  `json:"apiVersion"`
	Kind             string                  `json:"kind"`
	NodeRegistration kubeadmNodeRegistration `json:"nodeRegistration"`
}

type kubeadmNodeRegistration struct {
	Name             string            `json:"name"`
	KubeletExtraArgs map[string]string `json:"kubeletExtraArgs,omitempty"`
	// An empty list keeps kubeadm from tainting the control plane.
	Taints []string `json:"taints"`
}

type kubeadmClusterConfiguration struct {
	APIVersion  string            `json:"apiVersion"`
	Kind        string            `json:"kind"`
	ClusterName string            `json:"clusterName,omitempty"`
	Networking  kubeadmNetworking `json:"networking"`
}

type kubeadmNetworking struct {
	PodSubnet string `json:"podSubnet"`
}

// KubeadmParams are the inputs of the kubeadm init configuration.
type KubeadmParams struct {
	NodeName    string
	NodeIP      string
	ClusterName string
	PodSubnet   string
}

// RenderKubeadmConfig returns the InitConfiguration and ClusterConfiguration
// documents for kubeadm init --config. NodeIP is only pinned when it is an
// IP address.
func RenderKubeadmConfig(p KubeadmParams) (string, error) {
	init := kubeadmInitConfiguration{
		APIVersion: kubeadmAPIVersion,
		Kind:       "InitConfiguration",
		NodeRegistration: kubeadmNodeRegistration{
			Name:   p.NodeName,
			Taints: []string{},
		},
	}
	if ip := net.ParseIP(p.NodeIP); ip != nil {
		init.NodeRegistration.KubeletExtraArgs = map[string]string{"node-ip": ip.String()}
	}

	cluster := kubeadmClusterConfiguration{
		APIVersion:  kubeadmAPIVersion,
		Kind:        "ClusterConfiguration",
		ClusterName: p.ClusterName,
		Networking:  kubeadmNetworking{PodSubnet: p.PodSubnet},
	}

	initDoc, err := yaml.Marshal(init)
	if err != nil {
		return "", fmt.Errorf("failed to render InitConfiguration: %w", err)
	}
	clusterDoc, err := yaml.Marshal(cluster)
	if err != nil {
		return "", fmt.Errorf("failed to render ClusterConfiguration: %w", err)
	}
	return string(initDoc) + "---\n" + string(clusterDoc), nil
}
