package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/neboman11/misc-utility/internal/config"
	"github.com/neboman11/misc-utility/internal/maintain"
	"github.com/neboman11/misc-utility/internal/notify"
	"github.com/neboman11/misc-utility/internal/platform/local"
)

// geteuid is swapped in tests.
var geteuid = os.Geteuid

// UpdateNodeOptions contains options for the update-node command.
type UpdateNodeOptions struct {
	ConfigPath string
}

// UpdateNode handles the update-node command.
//
// It applies pending apt upgrades on the local node and schedules a reboot
// afterwards. Package management needs root, so the handler refuses to run
// otherwise.
func UpdateNode(ctx context.Context, opts UpdateNodeOptions) error {
	if geteuid() != 0 {
		return fmt.Errorf("update-node must be run as root")
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	m := &maintain.Maintainer{
		Runner:       local.Runner{},
		RebootMarker: cfg.Node.RebootMarker,
	}
	if cfg.Notify.Enabled() {
		m.Notifier = notify.NewClient(cfg.Notify.Endpoint, cfg.Notify.UserID)
	}

	if err := m.Run(ctx); err != nil {
		return fmt.Errorf("node update failed: %w", err)
	}
	return nil
}
