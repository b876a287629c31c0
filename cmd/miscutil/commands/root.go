// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing, flag binding, and validation. Command execution is delegated to
// handler functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the miscutil CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "miscutil",
		Short: "Home lab maintenance utilities",
		Long: `miscutil bundles recurring home lab maintenance chores:

  k8s-upgrade    Roll a Kubernetes version upgrade across the node fleet
  update-ebuild  Bump overlay ebuilds to the latest upstream GitHub tag
  update-node    Apply pending package upgrades on this node`,
	}

	cmd.AddCommand(K8sUpgrade())
	cmd.AddCommand(UpdateEbuild())
	cmd.AddCommand(UpdateNode())
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}
