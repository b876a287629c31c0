package kupgrade

import (
	"context"
	"fmt"
	"strings"
)

// SourceRewriter rewrites the pinned minor version in a host's Kubernetes
// apt sources entry.
//
// Rewriting with the minor version already present yields byte-identical
// content, so re-running a partially completed fleet run is safe.
type SourceRewriter struct {
	// Path of the sources entry; DefaultSourcesPath when empty.
	Path string
}

func (s *SourceRewriter) path() string {
	if s.Path != "" {
		return s.Path
	}
	return DefaultSourcesPath
}

// Rewrite reads the sources entry, substitutes the embedded minor version
// for newMinor, and writes the result back through an elevated move. The
// write happens even when the content is unchanged.
func (s *SourceRewriter) Rewrite(ctx context.Context, r Runner, newMinor string) error {
	res, err := r.Run(ctx, "cat "+s.path(), true)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.path(), err)
	}

	if !sourcesVersionRE.MatchString(res.Stdout) {
		return &ParseError{What: "kubernetes minor version", Output: res.Stdout}
	}

	// echo appends the final newline, so strip the one cat captured to keep
	// repeated rewrites byte-identical.
	content := sourcesVersionRE.ReplaceAllString(strings.TrimRight(res.Stdout, "\n"), "v"+newMinor+"/deb")

	tmp := "/tmp/kubernetes.list"
	if _, err := r.Run(ctx, fmt.Sprintf("echo %s | tee %s", shellQuote(content), tmp), false); err != nil {
		return fmt.Errorf("failed to stage sources entry: %w", err)
	}
	if _, err := r.Run(ctx, fmt.Sprintf("mv %s %s", tmp, s.path()), true); err != nil {
		return fmt.Errorf("failed to install sources entry: %w", err)
	}

	return nil
}

// shellQuote single-quotes s for safe interpolation into a remote shell
// command line.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
