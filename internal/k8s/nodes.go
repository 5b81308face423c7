package k8s

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
)

const roleLabelPrefix = "node-role.kubernetes.io/"

// NodeStatus is the readiness summary of a node.
type NodeStatus struct {
	Name    string
	Ready   bool
	Roles   []string
	Version string
	// Reason explains a node that is not ready.
	Reason string
}

// Nodes lists every node with its readiness, sorted by name.
func (c *Client) Nodes(ctx context.Context) ([]NodeStatus, error) {
	list, err := c.Clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	out := make([]NodeStatus, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, nodeStatus(&list.Items[i]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// NotReady returns the names of nodes that are not ready.
func NotReady(nodes []NodeStatus) []string {
	var names []string
	for _, n := range nodes {
		if !n.Ready {
			names = append(names, n.Name)
		}
	}
	return names
}

// WaitForNodesReady polls until at least one node exists and every node is
// Ready, or timeout elapses. With names, only those nodes are considered and
// each of them must exist. It returns the last observed state.
func (c *Client) WaitForNodesReady(ctx context.Context, interval, timeout time.Duration, names ...string) ([]NodeStatus, error) {
	var last []NodeStatus
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		nodes, err := c.Nodes(ctx)
		if err != nil {
			// The API server may still be starting.
			return false, nil
		}
		last = selectNodes(nodes, names)
		if len(names) > 0 && len(last) < len(names) {
			return false, nil
		}
		return len(last) > 0 && len(NotReady(last)) == 0, nil
	})
	if err != nil {
		if len(last) == 0 {
			return nil, fmt.Errorf("no nodes became visible: %w", err)
		}
		if missing := missingNodes(last, names); len(missing) > 0 {
			return last, fmt.Errorf("nodes not registered (%s): %w", strings.Join(missing, ", "), err)
		}
		return last, fmt.Errorf("nodes not ready (%s): %w", strings.Join(NotReady(last), ", "), err)
	}
	return last, nil
}

func selectNodes(nodes []NodeStatus, names []string) []NodeStatus {
	if len(names) == 0 {
		return nodes
	}
	var out []NodeStatus
	for _, n := range nodes {
		if slices.Contains(names, n.Name) {
			out = append(out, n)
		}
	}
	return out
}

func missingNodes(nodes []NodeStatus, names []string) []string {
	var missing []string
	for _, name := range names {
		if !slices.ContainsFunc(nodes, func(n NodeStatus) bool { return n.Name == name }) {
			missing = append(missing, name)
		}
	}
	return missing
}

func nodeStatus(node *corev1.Node) NodeStatus {
	s := NodeStatus{
		Name:    node.Name,
		Version: node.Status.NodeInfo.KubeletVersion,
		Reason:  "no Ready condition reported",
	}
	for label := range node.Labels {
		if role, ok := strings.CutPrefix(label, roleLabelPrefix); ok && role != "" {
			s.Roles = append(s.Roles, role)
		}
	}
	sort.Strings(s.Roles)

	for _, cond := range node.Status.Conditions {
		if cond.Type != corev1.NodeReady {
			continue
		}
		s.Ready = cond.Status == corev1.ConditionTrue
		s.Reason = ""
		if !s.Ready {
			s.Reason = cond.Reason
			if cond.Message != "" {
				s.Reason += ": " + cond.Message
			}
		}
	}
	return s
}
