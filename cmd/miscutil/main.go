// Package main is the entry point for the miscutil CLI.
//
// miscutil bundles the recurring maintenance chores of a small home lab:
// rolling Kubernetes upgrades over SSH, ebuild version bumps against
// upstream GitHub tags, and routine package upgrades on the local node.
//
// For detailed usage information, run:
//
//	miscutil --help
package main

import (
	"fmt"
	"os"

	"github.com/neboman11/misc-utility/cmd/miscutil/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
