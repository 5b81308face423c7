// Package hcloud discovers inventory hosts from Hetzner Cloud servers.
//
// Servers are selected with a label selector and mapped to inventory groups
// by their labels:
//
//   - calcifer-group=<group> names the group directly
//     (k8s_control_plane, k8s_worker);
//   - otherwise role=control-plane or role=worker is used.
//
// Servers matching neither are ignored. The connection address is the public
// IPv4, falling back to the first private network IP.
package hcloud
