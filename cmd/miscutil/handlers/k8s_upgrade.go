// Package handlers implements the command execution logic for the miscutil
// CLI. Each handler loads the configuration, wires the platform clients
// together, and delegates to the library packages under internal/.
package handlers

import (
	"context"
	"fmt"
	"log"
	"os"

	"golang.org/x/term"

	"github.com/neboman11/misc-utility/internal/config"
	"github.com/neboman11/misc-utility/internal/inventory"
	"github.com/neboman11/misc-utility/internal/kupgrade"
	"github.com/neboman11/misc-utility/internal/notify"
	"github.com/neboman11/misc-utility/internal/platform/ssh"
	"github.com/neboman11/misc-utility/internal/sshconf"
)

// sudoPassEnv overrides the interactive sudo password prompt.
const sudoPassEnv = "MISCUTIL_SUDO_PASS"

// K8sUpgradeOptions contains options for the k8s-upgrade command.
type K8sUpgradeOptions struct {
	ConfigPath    string
	InventoryPath string
	AskSudoPass   bool
}

// K8sUpgrade handles the k8s-upgrade command.
//
// It loads the inventory, resolves per-host connection parameters from the
// SSH config, and runs the fleet upgrade sequencer: versions are resolved on
// the first control plane node, sources are rewritten everywhere, then every
// node is upgraded one at a time with the control plane going first.
func K8sUpgrade(ctx context.Context, opts K8sUpgradeOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.InventoryPath != "" {
		cfg.Upgrade.InventoryPath = opts.InventoryPath
	}

	inv, err := inventory.Load(cfg.Upgrade.InventoryPath)
	if err != nil {
		return fmt.Errorf("failed to load inventory: %w", err)
	}

	resolver, err := sshconf.NewResolver(
		cfg.Upgrade.SSHConfigPath, cfg.Upgrade.User, cfg.Upgrade.IdentityFile)
	if err != nil {
		return fmt.Errorf("failed to load SSH config: %w", err)
	}

	sudoPass, err := sudoPassword(opts.AskSudoPass)
	if err != nil {
		return err
	}

	log.Printf("Upgrading %d nodes (%d control plane, %d worker)",
		len(inv.Hosts()), len(inv.Control), len(inv.Worker))

	var notifier kupgrade.Notifier
	if cfg.Notify.Enabled() {
		notifier = notify.NewClient(cfg.Notify.Endpoint, cfg.Notify.UserID)
	}

	seq := kupgrade.New(inv, sessionFactory(resolver, sudoPass), kupgrade.Options{
		SourcesPath: cfg.Upgrade.SourcesListPath,
		Notifier:    notifier,
	})
	if err := seq.Run(ctx); err != nil {
		return fmt.Errorf("upgrade failed: %w", err)
	}
	return nil
}

// sessionFactory adapts the SSH platform client to the sequencer's session
// interface, resolving each host through the SSH config.
func sessionFactory(resolver *sshconf.Resolver, sudoPass string) kupgrade.SessionFactory {
	return func(ctx context.Context, host string) (kupgrade.Session, error) {
		p := resolver.Resolve(host)

		// #nosec G304
		key, err := os.ReadFile(p.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read identity file for %s: %w", host, err)
		}

		return ssh.Dial(ctx, &ssh.Config{
			Host:         p.Address,
			Port:         p.Port,
			User:         p.User,
			PrivateKey:   key,
			SudoPassword: sudoPass,
		})
	}
}

// sudoPassword returns the remote sudo password: the environment override if
// set, an interactive prompt when asked for, otherwise empty (passwordless
// sudo).
func sudoPassword(ask bool) (string, error) {
	if pass, ok := os.LookupEnv(sudoPassEnv); ok {
		return pass, nil
	}
	if !ask {
		return "", nil
	}

	fmt.Fprint(os.Stderr, "sudo password: ")
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read sudo password: %w", err)
	}
	return string(pass), nil
}
