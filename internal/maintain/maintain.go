// Package maintain performs the routine package upgrade on the host the
// tool runs on, announcing each milestone through the notification relay
// and scheduling a reboot when updates were applied.
package maintain

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
)

// DefaultRebootMarker is the conventional Debian marker file whose presence
// schedules the node for a reboot.
const DefaultRebootMarker = "/var/run/reboot-required"

// CommandRunner runs a local command; satisfied by the local platform
// runner.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// Notifier delivers milestone messages; failures are logged, never fatal.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// Logger receives progress output.
type Logger interface {
	Printf(format string, v ...any)
}

// Maintainer drives one maintenance run.
type Maintainer struct {
	Runner   CommandRunner
	Notifier Notifier

	// RebootMarker defaults to DefaultRebootMarker.
	RebootMarker string

	// Hostname defaults to os.Hostname; it prefixes every notification.
	Hostname string

	// Log defaults to the standard log package.
	Log Logger
}

// Run performs the maintenance sequence: skip entirely when a reboot is
// already pending, otherwise refresh the package cache, announce the
// pending upgrades, apply them, and schedule the reboot.
func (m *Maintainer) Run(ctx context.Context) error {
	host := m.hostname()
	marker := m.marker()

	if _, err := os.Stat(marker); err == nil {
		m.logf("Node is already scheduled for reboot, skipping updates")
		m.notify(ctx, host+": Node is already scheduled for reboot. Skipping updates.")
		return nil
	}

	m.logf("Updating package cache...")
	if _, err := m.Runner.Run(ctx, "apt-get", "update"); err != nil {
		return fmt.Errorf("failed to update package cache: %w", err)
	}

	m.logf("Determining packages to upgrade...")
	out, err := m.Runner.Run(ctx, "apt", "list", "--upgradable")
	if err != nil {
		return fmt.Errorf("failed to list upgradable packages: %w", err)
	}
	changes := parseUpgradable(out)

	if len(changes) == 0 {
		m.logf("No packages to upgrade")
		m.notify(ctx, host+": No updates available.")
		return nil
	}

	m.logf("Sending package list to notification relay...")
	m.notify(ctx, fmt.Sprintf("%s: The following updates will be applied:\n%s",
		host, strings.Join(changes, ", ")))

	m.logf("Performing package upgrade...")
	if _, err := m.Runner.Run(ctx, "apt-get", "dist-upgrade", "-y"); err != nil {
		return fmt.Errorf("failed to upgrade packages: %w", err)
	}

	m.logf("Notifying user of completion")
	m.notify(ctx, host+": Updates have been applied, scheduling the node to be rebooted.")

	// Creating this file schedules the node for a reboot.
	f, err := os.OpenFile(marker, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) // #nosec G302,G304
	if err != nil {
		return fmt.Errorf("failed to schedule reboot: %w", err)
	}
	return f.Close()
}

func (m *Maintainer) hostname() string {
	if m.Hostname != "" {
		return m.Hostname
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	return host
}

func (m *Maintainer) marker() string {
	if m.RebootMarker != "" {
		return m.RebootMarker
	}
	return DefaultRebootMarker
}

func (m *Maintainer) logf(format string, v ...any) {
	if m.Log != nil {
		m.Log.Printf(format, v...)
		return
	}
	log.Printf(format, v...)
}

func (m *Maintainer) notify(ctx context.Context, message string) {
	if m.Notifier == nil {
		return
	}
	if err := m.Notifier.Send(ctx, message); err != nil {
		m.logf("notification failed (continuing): %v", err)
	}
}

// parseUpgradable extracts sorted package names from "apt list
// --upgradable" output.
func parseUpgradable(out string) []string {
	var pkgs []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Listing") {
			continue
		}
		if name, _, ok := strings.Cut(line, "/"); ok && name != "" {
			pkgs = append(pkgs, name)
		}
	}
	sort.Strings(pkgs)
	return pkgs
}
