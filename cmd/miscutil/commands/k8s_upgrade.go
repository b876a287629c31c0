package commands

import (
	"github.com/spf13/cobra"

	"github.com/neboman11/misc-utility/cmd/miscutil/handlers"
)

// K8sUpgrade returns the command for rolling a Kubernetes upgrade across the
// node fleet.
//
// The fleet is read from a role-annotated inventory file and upgraded
// strictly one node at a time, control plane first. Connection parameters
// come from the user's SSH config, falling back to the configured defaults.
//
// Optional flags:
//
//	--config, -c: Path to miscutil configuration YAML file
//	--inventory, -i: Override the inventory file path
//	--ask-sudo-pass: Prompt for the remote sudo password
//
// Environment variables:
//
//	MISCUTIL_SUDO_PASS: Remote sudo password (avoids the prompt)
func K8sUpgrade() *cobra.Command {
	var configPath string
	var inventoryPath string
	var askSudoPass bool

	cmd := &cobra.Command{
		Use:   "k8s-upgrade",
		Short: "Upgrade Kubernetes across the node fleet",
		Long: `Upgrade every node in the inventory to the latest Kubernetes version
available from the apt repository.

The upgrade process:
1. Resolves the current and latest versions on the first control plane node
2. Rewrites the Kubernetes apt sources entry on every node
3. Upgrades the first control plane node and applies the control plane upgrade
4. Upgrades the remaining nodes one at a time, control plane before workers

Nodes are never upgraded in parallel. Any failure stops the run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := handlers.K8sUpgradeOptions{
				ConfigPath:    configPath,
				InventoryPath: inventoryPath,
				AskSudoPass:   askSudoPass,
			}
			return handlers.K8sUpgrade(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVarP(&inventoryPath, "inventory", "i", "", "Override the inventory file path")
	cmd.Flags().BoolVar(&askSudoPass, "ask-sudo-pass", false, "Prompt for the remote sudo password")

	return cmd
}
