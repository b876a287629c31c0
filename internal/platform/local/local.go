// Package local executes commands on the local machine. It is the
// non-SSH counterpart of the remote executor, used by the ebuild bumper
// (manifest regeneration) and the node maintenance run (apt).
package local

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes local commands and captures their combined output.
type Runner struct{}

// Run executes name with args and returns its combined stdout/stderr. A
// non-zero exit is an error carrying the captured output.
func (Runner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s %s: %w\noutput: %s",
			name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
