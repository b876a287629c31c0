package ebuild

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
)

// TagSource resolves the latest upstream tag of a GitHub repository.
// Satisfied by the github platform client.
type TagSource interface {
	LatestTag(ctx context.Context, repo string) (string, error)
}

// CommandRunner runs a local command; satisfied by the local platform
// runner. Used for "ebuild <file> manifest".
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// Logger receives progress output.
type Logger interface {
	Printf(format string, v ...any)
}

// Bumper creates new ebuild versions from upstream tags.
type Bumper struct {
	Overlay string
	Tags    TagSource
	Runner  CommandRunner

	// Log defaults to the standard log package.
	Log Logger
}

func (b *Bumper) logf(format string, v ...any) {
	if b.Log != nil {
		b.Log.Printf(format, v...)
		return
	}
	log.Printf(format, v...)
}

// Bump updates catpkg to the latest upstream tag: it copies the newest
// existing ebuild, rewrites the SRC_URI tarball, and regenerates the
// manifest. Nothing happens when the package is already up to date.
func (b *Bumper) Bump(ctx context.Context, catpkg string) error {
	pkg, err := OpenPackage(b.Overlay, catpkg)
	if err != nil {
		return err
	}

	versions, err := pkg.Versions()
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return fmt.Errorf("no ebuilds found in %s", pkg.Dir)
	}

	basever := versions[len(versions)-1]
	basePath := pkg.EbuildPath(basever)
	b.logf("Using %s as template", basePath)

	// #nosec G304
	text, err := os.ReadFile(basePath)
	if err != nil {
		return fmt.Errorf("failed to read template ebuild: %w", err)
	}

	repo, err := RepoFromEbuild(string(text))
	if err != nil {
		return err
	}
	b.logf("Detected repo: %s", repo)

	newver, err := b.Tags.LatestTag(ctx, repo)
	if err != nil {
		return fmt.Errorf("failed to query upstream tags: %w", err)
	}
	if newver == "" {
		b.logf("No tags found upstream, falling back to %s live ebuild.", LiveVersion)
		newver = LiveVersion
	} else {
		b.logf("Latest upstream tag: %s", newver)
	}

	if slices.Contains(versions, newver) {
		b.logf("Already up to date.")
		return nil
	}

	return b.writeNew(ctx, pkg, string(text), basever, newver, repo)
}

func (b *Bumper) writeNew(ctx context.Context, pkg *Package, text, oldver, newver, repo string) error {
	newPath := pkg.EbuildPath(newver)
	if _, err := os.Stat(newPath); err == nil {
		b.logf("Ebuild %s already exists", newPath)
		return nil
	}

	// Live ebuilds fetch from the repository head, so there is no tarball
	// reference to rewrite in either direction.
	if oldver != LiveVersion && newver != LiveVersion {
		text = BumpSrcURI(text, repo, oldver, newver)
	}

	if err := os.WriteFile(newPath, []byte(text), 0o644); err != nil { // #nosec G306 -- ebuilds are world-readable
		return fmt.Errorf("failed to write new ebuild: %w", err)
	}
	b.logf("Created %s", newPath)

	if _, err := b.Runner.Run(ctx, "ebuild", newPath, "manifest"); err != nil {
		return fmt.Errorf("failed to regenerate manifest: %w", err)
	}
	return nil
}
