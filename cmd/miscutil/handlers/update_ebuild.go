package handlers

import (
	"context"
	"fmt"

	"github.com/neboman11/misc-utility/internal/config"
	"github.com/neboman11/misc-utility/internal/ebuild"
	"github.com/neboman11/misc-utility/internal/platform/github"
	"github.com/neboman11/misc-utility/internal/platform/local"
)

// UpdateEbuildOptions contains options for the update-ebuild command.
type UpdateEbuildOptions struct {
	ConfigPath string
	Overlay    string
	Packages   []string
}

// UpdateEbuild handles the update-ebuild command.
//
// Each package atom is bumped to the latest tag of its upstream GitHub
// repository. Packages that are already up to date are left alone; a failure
// on one package aborts the run.
func UpdateEbuild(ctx context.Context, opts UpdateEbuildOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.Overlay != "" {
		cfg.Ebuild.Overlay = opts.Overlay
	}

	bumper := &ebuild.Bumper{
		Overlay: cfg.Ebuild.Overlay,
		Tags:    github.NewClient(),
		Runner:  local.Runner{},
	}

	for _, catpkg := range opts.Packages {
		if err := bumper.Bump(ctx, catpkg); err != nil {
			return fmt.Errorf("failed to bump %s: %w", catpkg, err)
		}
	}
	return nil
}
