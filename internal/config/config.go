// Package config loads the tool configuration from an optional YAML file,
// layering user overrides on top of the built-in defaults.
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
)

// Config is the root configuration shared by all subcommands.
type Config struct {
	Notify  NotifyConfig  `mapstructure:"notify" yaml:"notify"`
	Upgrade UpgradeConfig `mapstructure:"k8s_upgrade" yaml:"k8s_upgrade"`
	Ebuild  EbuildConfig  `mapstructure:"ebuild" yaml:"ebuild"`
	Node    NodeConfig    `mapstructure:"node" yaml:"node"`
}

// NotifyConfig points at the Discord notification relay. An empty endpoint
// disables notifications entirely.
type NotifyConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	UserID   int64  `mapstructure:"user_id" yaml:"user_id"`
}

// Enabled reports whether a notification relay is configured.
func (n NotifyConfig) Enabled() bool {
	return n.Endpoint != ""
}

// UpgradeConfig drives the k8s-upgrade subcommand.
type UpgradeConfig struct {
	// InventoryPath holds the role-annotated host list.
	InventoryPath string `mapstructure:"inventory" yaml:"inventory"`

	// SourcesListPath is the apt source list rewritten on every node.
	SourcesListPath string `mapstructure:"sources_list" yaml:"sources_list"`

	// SSHConfigPath is consulted for per-host connection overrides.
	SSHConfigPath string `mapstructure:"ssh_config" yaml:"ssh_config"`

	// IdentityFile is the private key used when the SSH config names none.
	IdentityFile string `mapstructure:"identity_file" yaml:"identity_file"`

	// User is the login user when the SSH config names none.
	User string `mapstructure:"user" yaml:"user"`
}

// EbuildConfig drives the update-ebuild subcommand.
type EbuildConfig struct {
	// Overlay is the root of the local portage overlay.
	Overlay string `mapstructure:"overlay" yaml:"overlay"`
}

// NodeConfig drives the update-node subcommand.
type NodeConfig struct {
	// RebootMarker schedules a reboot when present.
	RebootMarker string `mapstructure:"reboot_marker" yaml:"reboot_marker"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	home, _ := os.UserHomeDir()
	login := ""
	if u, err := user.Current(); err == nil {
		login = u.Username
	}
	return &Config{
		Notify: NotifyConfig{
			Endpoint: "http://ponyboy.apartment/send_discord_message",
			UserID:   178748204999901185,
		},
		Upgrade: UpgradeConfig{
			InventoryPath:   "inventory.txt",
			SourcesListPath: "/etc/apt/sources.list.d/kubernetes.list",
			SSHConfigPath:   filepath.Join(home, ".ssh", "config"),
			IdentityFile:    filepath.Join(home, ".ssh", "id_rsa"),
			User:            login,
		},
		Ebuild: EbuildConfig{
			Overlay: "/var/db/repos/localrepo",
		},
		Node: NodeConfig{
			RebootMarker: "/var/run/reboot-required",
		},
	}
}

// Validate checks the invariants the subcommands rely on.
func (c *Config) Validate() error {
	if c.Notify.Enabled() && c.Notify.UserID <= 0 {
		return fmt.Errorf("notify.user_id must be set when notify.endpoint is configured")
	}
	if c.Upgrade.InventoryPath == "" {
		return fmt.Errorf("k8s_upgrade.inventory must not be empty")
	}
	if c.Upgrade.SourcesListPath == "" {
		return fmt.Errorf("k8s_upgrade.sources_list must not be empty")
	}
	if c.Ebuild.Overlay == "" {
		return fmt.Errorf("ebuild.overlay must not be empty")
	}
	if c.Node.RebootMarker == "" {
		return fmt.Errorf("node.reboot_marker must not be empty")
	}
	return nil
}
