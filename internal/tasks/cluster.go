package tasks

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/imamik/calcifer/internal/k8s"
	"github.com/imamik/calcifer/internal/task"
)

const nodePollInterval = 5 * time.Second

// KubeClientFactory builds an API client from kubeconfig bytes.
type KubeClientFactory func(kubeconfig []byte) (*k8s.Client, error)

// loadKubeconfig reads the configured local kubeconfig, falling back to the
// artifact store. The returned path is empty when the data did not come from
// a local file.
func loadKubeconfig(tc *task.Context) ([]byte, string, error) {
	if p := tc.Settings.KubeconfigPath(); p != "" {
		data, err := os.ReadFile(p) // #nosec G304 -- path from operator settings
		if err == nil {
			return data, p, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("failed to read kubeconfig %s: %w", p, err)
		}
	}
	data, err := tc.Artifacts.Load(tc, ArtifactKubeconfig)
	if err != nil {
		return nil, "", fmt.Errorf("local kubeconfig not found, run the INIT goal first: %w", err)
	}
	return data, "", nil
}

// VerifyClusterNodes reports the readiness of every node.
func VerifyClusterNodes(newClient KubeClientFactory) task.Task {
	return task.Func("verify_cluster_nodes", func(tc *task.Context) task.Result {
		data, _, err := loadKubeconfig(tc)
		if err != nil {
			return task.Failed(err.Error())
		}
		client, err := newClient(data)
		if err != nil {
			return task.Failedf("Failed to create Kubernetes client: %v", err)
		}
		nodes, err := client.Nodes(tc)
		if err != nil {
			return task.Failedf("Cluster API unreachable: %v", err)
		}
		if len(nodes) == 0 {
			return task.Warning("Cluster reports no nodes")
		}

		if notReady := k8s.NotReady(nodes); len(notReady) > 0 {
			return task.Warning(fmt.Sprintf("%d/%d nodes not ready: %s",
				len(notReady), len(nodes), describeNotReady(nodes))).WithData(nodes)
		}
		return task.OKf("All %d nodes Ready (%s)", len(nodes), nodes[0].Version).WithData(nodes)
	})
}

// WaitNodeReady waits until the host's own node reports Ready. A node that
// stays not ready is a warning since the CNI can take a while to settle.
func WaitNodeReady(newClient KubeClientFactory) task.Task {
	return task.Func("wait_node_ready", func(tc *task.Context) task.Result {
		data, _, err := loadKubeconfig(tc)
		if err != nil {
			return task.Failed(err.Error())
		}
		client, err := newClient(data)
		if err != nil {
			return task.Failedf("Failed to create Kubernetes client: %v", err)
		}

		timeout := 5 * time.Minute
		if tc.Timeouts != nil && tc.Timeouts.ClusterReady > 0 {
			timeout = tc.Timeouts.ClusterReady
		}
		if _, err := client.WaitForNodesReady(tc, nodePollInterval, timeout, tc.Host.Name); err != nil {
			return task.Warning(fmt.Sprintf("Node %s not ready after %s: %v", tc.Host.Name, timeout, err))
		}
		return task.OKf("Node %s is Ready", tc.Host.Name)
	})
}

func describeNotReady(nodes []k8s.NodeStatus) string {
	var parts []string
	for _, n := range nodes {
		if n.Ready {
			continue
		}
		if n.Reason != "" {
			parts = append(parts, n.Name+" ("+n.Reason+")")
		} else {
			parts = append(parts, n.Name)
		}
	}
	return strings.Join(parts, ", ")
}
