// Package ssh executes commands on remote hosts over SSH sessions.
// It handles connection establishment with retry logic, key-based
// authentication, and privilege escalation via sudo.
//
// The primary use case is the fleet upgrade sequencer, which opens one
// session per host, runs a fixed command sequence through it, and closes it
// before the next host is contacted.
//
// Security: Host key verification is disabled by default, matching how the
// original operator scripts accepted unknown host keys. Configure
// HostKeyCallback when the fleet's keys are known.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/neboman11/misc-utility/internal/util/retry"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
	defaultMaxRetries  = 3
	defaultRetryDelay  = 2 * time.Second
	defaultMaxDelay    = 10 * time.Second
)

// Config holds the parameters for one host connection.
type Config struct {
	Host       string
	Port       int
	User       string
	PrivateKey []byte

	// SudoPassword is fed to sudo's stdin for elevated commands. Empty is
	// valid and assumes passwordless sudo on the remote side.
	SudoPassword string

	// DialTimeout is the timeout for establishing the TCP connection.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// MaxRetries is the maximum number of connection retry attempts.
	// If zero, defaultMaxRetries is used.
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts.
	// If zero, defaultRetryDelay is used.
	RetryDelay time.Duration

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used.
	HostKeyCallback ssh.HostKeyCallback
}

// Result captures the outcome of a remote command that was dispatched
// successfully.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ConnectionError indicates a session could not be established or a command
// could not be dispatched (network, auth, or transport failure).
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CommandError indicates a command ran on the remote host and returned a
// non-zero exit status.
type CommandError struct {
	Host     string
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command failed on %s (exit %d): %s", e.Host, e.ExitCode, e.Command)
	if e.Stderr != "" {
		msg += "\nstderr: " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

// Session is an established connection to one host. It is not safe for
// concurrent use; the sequencer runs one command at a time by design.
type Session struct {
	host         string
	client       *ssh.Client
	sudoPassword string
}

// Dial validates the key, establishes the SSH connection with retry, and
// returns a Session. Failures are reported as ConnectionError.
func Dial(ctx context.Context, cfg *Config) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("config host cannot be empty")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("config private key cannot be empty")
	}

	// Copy config to avoid mutating caller's struct
	c := *cfg
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.HostKeyCallback == nil {
		c.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // matches the original scripts' auto-accept policy
	}

	signer, err := ssh.ParsePrivateKey(c.PrivateKey)
	if err != nil {
		return nil, &ConnectionError{Host: c.Host, Err: fmt.Errorf("failed to parse private key: %w", err)}
	}

	clientConfig := &ssh.ClientConfig{
		User: c.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: c.HostKeyCallback,
		Timeout:         c.DialTimeout,
	}

	addr := fmt.Sprintf("%s:%d", c.Host, c.Port)
	var client *ssh.Client

	err = retry.Do(ctx, func() error {
		var dialErr error
		client, dialErr = ssh.Dial("tcp", addr, clientConfig)
		return dialErr
	},
		retry.WithMaxRetries(c.MaxRetries),
		retry.WithInitialDelay(c.RetryDelay),
		retry.WithMaxDelay(defaultMaxDelay),
	)
	if err != nil {
		return nil, &ConnectionError{Host: c.Host, Err: err}
	}

	return &Session{
		host:         c.Host,
		client:       client,
		sudoPassword: c.SudoPassword,
	}, nil
}

// Host returns the host this session is connected to.
func (s *Session) Host() string { return s.host }

// Run executes a command on the remote host. When elevate is true the
// command is wrapped in sudo and the stored password is written to its
// stdin. A non-zero exit status is returned as CommandError together with
// the captured output; dispatch failures are ConnectionError.
func (s *Session) Run(ctx context.Context, command string, elevate bool) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, &ConnectionError{Host: s.host, Err: err}
	}

	sess, err := s.client.NewSession()
	if err != nil {
		return Result{}, &ConnectionError{Host: s.host, Err: fmt.Errorf("failed to create session: %w", err)}
	}
	defer func() { _ = sess.Close() }()

	if elevate {
		// -S reads the password from stdin, -p '' suppresses the prompt so
		// it never pollutes captured output.
		command = "sudo -S -p '' " + command
		sess.Stdin = strings.NewReader(s.sudoPassword + "\n")
	}

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	err = sess.Run(command)
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return result, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitStatus()
		return result, &CommandError{
			Host:     s.host,
			Command:  command,
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
		}
	}

	return result, &ConnectionError{Host: s.host, Err: fmt.Errorf("command dispatch failed: %w", err)}
}

// Close tears down the underlying connection.
func (s *Session) Close() error {
	return s.client.Close()
}
