package commands

import (
	"github.com/spf13/cobra"

	"github.com/neboman11/misc-utility/cmd/miscutil/handlers"
)

// UpdateNode returns the command for applying pending package upgrades on
// the local node.
//
// The run is skipped entirely while a reboot is already pending. Progress is
// announced through the notification relay, and a reboot is scheduled once
// upgrades were applied. Must run as root.
//
// Optional flags:
//
//	--config, -c: Path to miscutil configuration YAML file
func UpdateNode() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "update-node",
		Short: "Apply pending package upgrades on this node",
		Long: `Apply all pending apt package upgrades on the local node.

The run refreshes the package cache, announces the pending upgrades through
the notification relay, applies them, and schedules a reboot by creating the
reboot marker file. A node already scheduled for reboot is left alone.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := handlers.UpdateNodeOptions{
				ConfigPath: configPath,
			}
			return handlers.UpdateNode(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	return cmd
}
