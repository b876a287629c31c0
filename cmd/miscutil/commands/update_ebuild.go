package commands

import (
	"github.com/spf13/cobra"

	"github.com/neboman11/misc-utility/cmd/miscutil/handlers"
)

// UpdateEbuild returns the command for bumping overlay ebuilds to the latest
// upstream GitHub tag.
//
// Each argument is a category/package atom inside the local overlay. The
// newest existing ebuild serves as the template for the new version; the
// package manifest is regenerated afterwards.
//
// Optional flags:
//
//	--config, -c: Path to miscutil configuration YAML file
//	--overlay: Override the overlay root directory
func UpdateEbuild() *cobra.Command {
	var configPath string
	var overlay string

	cmd := &cobra.Command{
		Use:   "update-ebuild <category/package>...",
		Short: "Bump overlay ebuilds to the latest upstream tag",
		Long: `Bump one or more overlay packages to the latest tag of their upstream
GitHub repository.

For each package the newest existing ebuild is copied, its SRC_URI tarball
reference is rewritten to the new tag, and the manifest is regenerated with
the ebuild tool. Repositories without tags fall back to a 9999 live ebuild.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := handlers.UpdateEbuildOptions{
				ConfigPath: configPath,
				Overlay:    overlay,
				Packages:   args,
			}
			return handlers.UpdateEbuild(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&overlay, "overlay", "", "Override the overlay root directory")

	return cmd
}
