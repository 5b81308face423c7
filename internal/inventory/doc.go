// Package inventory models the hosts a run targets.
//
// Hosts are loaded from a YAML file keyed by host name, or discovered from
// Hetzner Cloud. Each [Host] belongs to one or more groups and carries a
// per-run data bag that tasks use to hand facts to later tasks on the same
// host.
package inventory
