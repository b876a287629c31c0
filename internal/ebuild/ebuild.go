// Package ebuild bumps Gentoo ebuild versions in a local overlay against
// upstream GitHub tags.
//
// A bump scans the package directory for existing ebuilds, takes the newest
// one as a template, asks GitHub for the latest tag of the repository named
// in EGIT_REPO_URI, and writes a new ebuild with the SRC_URI tarball rewritten
// to the new version. When upstream has no tags, a 9999 live ebuild is
// created instead.
package ebuild

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/blang/semver"
)

// LiveVersion is Gentoo's conventional version for live (VCS head) ebuilds.
const LiveVersion = "9999"

var egitRepoRE = regexp.MustCompile(`EGIT_REPO_URI="https://github\.com/([^"]+)"`)

// Package is a category/name directory inside an overlay.
type Package struct {
	Dir      string
	Category string
	Name     string
}

// OpenPackage locates catpkg ("category/name") inside the overlay.
func OpenPackage(overlay, catpkg string) (*Package, error) {
	category, name, ok := strings.Cut(catpkg, "/")
	if !ok || category == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("invalid package atom %q (expected category/name)", catpkg)
	}

	dir := filepath.Join(overlay, category, name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("package directory %s not found in overlay", dir)
	}

	return &Package{Dir: dir, Category: category, Name: name}, nil
}

// Versions returns the versions of every ebuild in the package directory,
// sorted ascending. Semver-parseable versions sort numerically; everything
// else (including 9999 live ebuilds) falls back to lexical order.
func (p *Package) Versions() ([]string, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read package directory: %w", err)
	}

	re := regexp.MustCompile("^" + regexp.QuoteMeta(p.Name) + `-(.+)\.ebuild$`)
	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if m := re.FindStringSubmatch(e.Name()); m != nil {
			versions = append(versions, m[1])
		}
	}

	sort.Slice(versions, func(i, j int) bool {
		return compareVersions(versions[i], versions[j]) < 0
	})
	return versions, nil
}

// EbuildPath returns the path of the ebuild for a given version.
func (p *Package) EbuildPath(version string) string {
	return filepath.Join(p.Dir, fmt.Sprintf("%s-%s.ebuild", p.Name, version))
}

func compareVersions(a, b string) int {
	av, aerr := semver.Parse(a)
	bv, berr := semver.Parse(b)
	if aerr == nil && berr == nil {
		return av.Compare(bv)
	}
	return strings.Compare(a, b)
}

// RepoFromEbuild extracts the "owner/name" GitHub repository from the
// ebuild's EGIT_REPO_URI.
func RepoFromEbuild(text string) (string, error) {
	m := egitRepoRE.FindStringSubmatch(text)
	if m == nil {
		return "", fmt.Errorf("could not find EGIT_REPO_URI in ebuild")
	}
	return strings.TrimSuffix(strings.TrimSpace(m[1]), ".git"), nil
}

// BumpSrcURI rewrites the SRC_URI tag tarball reference from oldver to
// newver.
func BumpSrcURI(text, repo, oldver, newver string) string {
	pattern := regexp.MustCompile(`https://github\.com/` + regexp.QuoteMeta(repo) + `/archive/refs/tags/([^ ]+)`)
	text = pattern.ReplaceAllString(text,
		fmt.Sprintf("https://github.com/%s/archive/refs/tags/%s.tar.gz", repo, newver))
	return strings.ReplaceAll(text, oldver+".tar.gz", newver+".tar.gz")
}
