package sshconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestResolve_ConfiguredHost(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
Host node1
    HostName 192.168.1.10
    User ops
    IdentityFile /keys/node1
    Port 2222
`)

	r, err := NewResolver(path, "fallback", "/keys/default")
	require.NoError(t, err)

	p := r.Resolve("node1")
	assert.Equal(t, "192.168.1.10", p.Address)
	assert.Equal(t, "ops", p.User)
	assert.Equal(t, "/keys/node1", p.IdentityFile)
	assert.Equal(t, 2222, p.Port)
}

func TestResolve_FallbackDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
Host node1
    HostName 192.168.1.10
`)

	r, err := NewResolver(path, "fallback", "/keys/default")
	require.NoError(t, err)

	p := r.Resolve("10.0.0.5")
	assert.Equal(t, "10.0.0.5", p.Address)
	assert.Equal(t, "fallback", p.User)
	assert.Equal(t, "/keys/default", p.IdentityFile)
	assert.Equal(t, 22, p.Port)
}

func TestResolve_PartialEntry(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
Host node1
    User ops
`)

	r, err := NewResolver(path, "fallback", "/keys/default")
	require.NoError(t, err)

	p := r.Resolve("node1")
	assert.Equal(t, "node1", p.Address, "address falls back to the host identifier")
	assert.Equal(t, "ops", p.User)
	assert.Equal(t, "/keys/default", p.IdentityFile)
	assert.Equal(t, 22, p.Port)
}

func TestNewResolver_MissingFile(t *testing.T) {
	t.Parallel()

	r, err := NewResolver(filepath.Join(t.TempDir(), "config"), "fallback", "/keys/default")
	require.NoError(t, err)

	p := r.Resolve("anyhost")
	assert.Equal(t, "anyhost", p.Address)
	assert.Equal(t, "fallback", p.User)
}

func TestNewResolver_UnreadableFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// A directory at the config path makes reads fail without relying on
	// permission bits (which root ignores).
	path := filepath.Join(dir, "config")
	require.NoError(t, os.Mkdir(path, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(path, "x"), []byte("x"), 0o600))

	_, err := NewResolver(path, "fallback", "/keys/default")
	require.Error(t, err)

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestExpandHome(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".ssh", "id_rsa"), expandHome("~/.ssh/id_rsa"))
	assert.Equal(t, "/keys/plain", expandHome("/keys/plain"))
}
