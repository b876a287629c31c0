// Package kupgrade implements the fleet-wide Kubernetes node upgrade
// sequence for apt-managed hosts.
//
// A run resolves the target version from the first control plane host,
// rewrites the Kubernetes apt sources entry on every host, then upgrades
// each host in turn: the first control plane host (which also applies the
// control plane upgrade), then the rest of the fleet in inventory order.
// Hosts are processed strictly one at a time so the control plane keeps
// quorum, and any failed command aborts the entire run.
package kupgrade
