// Package sshconf resolves per-host connection parameters from the user's
// SSH client configuration (~/.ssh/config), with fallback defaults for hosts
// that have no matching entry.
package sshconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kevinburke/ssh_config"
)

const defaultPort = 22

// Params holds the resolved connection parameters for one host.
type Params struct {
	// Address is the network address to dial (HostName from the config,
	// or the host identifier itself).
	Address      string
	User         string
	IdentityFile string
	Port         int
}

// ConfigError indicates the SSH configuration source could not be read.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("ssh config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Resolver looks up hosts in a parsed SSH configuration.
//
// Lookups are pure: the configuration is parsed once at construction and
// never written.
type Resolver struct {
	cfg             *ssh_config.Config
	defaultUser     string
	defaultIdentity string
}

// NewResolver parses the SSH configuration at path. A missing file is not an
// error (every lookup then falls through to the defaults); any other read
// failure is reported as a ConfigError.
func NewResolver(path, defaultUser, defaultIdentity string) (*Resolver, error) {
	r := &Resolver{
		defaultUser:     defaultUser,
		defaultIdentity: defaultIdentity,
	}

	// #nosec G304
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	cfg, err := ssh_config.Decode(f)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	r.cfg = cfg

	return r, nil
}

// Resolve returns the connection parameters for host, applying fallbacks for
// anything the configuration leaves unset: the host identifier itself as
// address, the resolver's default user and identity file, and port 22.
func (r *Resolver) Resolve(host string) Params {
	p := Params{
		Address:      host,
		User:         r.defaultUser,
		IdentityFile: r.defaultIdentity,
		Port:         defaultPort,
	}

	if r.cfg == nil {
		return p
	}

	if v, err := r.cfg.Get(host, "HostName"); err == nil && v != "" {
		p.Address = v
	}
	if v, err := r.cfg.Get(host, "User"); err == nil && v != "" {
		p.User = v
	}
	if v, err := r.cfg.Get(host, "IdentityFile"); err == nil && v != "" {
		p.IdentityFile = expandHome(v)
	}
	if v, err := r.cfg.Get(host, "Port"); err == nil && v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			p.Port = port
		}
	}

	return p
}

// expandHome substitutes a leading ~ with the user's home directory, the way
// ssh itself treats IdentityFile values.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
