package kupgrade

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// DefaultSourcesPath is where apt-managed hosts keep the Kubernetes
// package source entry.
const DefaultSourcesPath = "/etc/apt/sources.list.d/kubernetes.list"

var (
	// sourcesVersionRE matches the pinned minor version in the sources
	// entry, e.g. "v1.29/deb".
	sourcesVersionRE = regexp.MustCompile(`v(\d+\.\d+)/deb`)

	// madisonVersionRE matches the full version on the first line of
	// "apt-cache madison kubeadm" output, e.g. "kubeadm | 1.29.4-...".
	madisonVersionRE = regexp.MustCompile(`\|\s*(\d+\.\d+\.\d+)-`)
)

// ParseError indicates an expected version token was absent from command
// output or file content.
type ParseError struct {
	What   string
	Output string
}

func (e *ParseError) Error() string {
	out := strings.TrimSpace(e.Output)
	if len(out) > 200 {
		out = out[:200] + "..."
	}
	return fmt.Sprintf("could not parse %s from %q", e.What, out)
}

// VersionSource resolves the current and latest Kubernetes versions on a
// host. It exists as an interface so the apt scraping below can be swapped
// for a structured package-index client without touching the sequencer.
type VersionSource interface {
	// CurrentMinor returns the two-component version pinned in the host's
	// package sources, e.g. "1.28".
	CurrentMinor(ctx context.Context, r Runner) (string, error)

	// LatestFull returns the three-component version of the newest kubeadm
	// package the host's index offers, e.g. "1.29.4".
	LatestFull(ctx context.Context, r Runner) (string, error)
}

// AptVersionSource scrapes versions from a host's apt configuration and
// package index.
type AptVersionSource struct {
	// SourcesPath overrides DefaultSourcesPath when set.
	SourcesPath string
}

func (v *AptVersionSource) sourcesPath() string {
	if v.SourcesPath != "" {
		return v.SourcesPath
	}
	return DefaultSourcesPath
}

// CurrentMinor reads the sources entry and extracts the pinned minor
// version.
func (v *AptVersionSource) CurrentMinor(ctx context.Context, r Runner) (string, error) {
	res, err := r.Run(ctx, "cat "+v.sourcesPath(), true)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", v.sourcesPath(), err)
	}

	m := sourcesVersionRE.FindStringSubmatch(res.Stdout)
	if m == nil {
		return "", &ParseError{What: "kubernetes minor version", Output: res.Stdout}
	}
	return m[1], nil
}

// LatestFull queries the package index for the newest available kubeadm
// version.
func (v *AptVersionSource) LatestFull(ctx context.Context, r Runner) (string, error) {
	res, err := r.Run(ctx, "apt-cache madison kubeadm | head -1", true)
	if err != nil {
		return "", fmt.Errorf("failed to query package index: %w", err)
	}

	m := madisonVersionRE.FindStringSubmatch(res.Stdout)
	if m == nil {
		return "", &ParseError{What: "latest kubeadm version", Output: res.Stdout}
	}
	return m[1], nil
}

// MinorOf derives the two-component minor version from a full version by
// truncation: "1.29.4" becomes "1.29". Versions with fewer than two
// components are returned unchanged.
func MinorOf(full string) string {
	parts := strings.Split(full, ".")
	if len(parts) < 2 {
		return full
	}
	return parts[0] + "." + parts[1]
}
