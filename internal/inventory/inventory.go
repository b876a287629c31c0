// Package inventory loads the static host inventory that drives fleet runs.
//
// The inventory is a plain text file with one host per non-blank line,
// whitespace-separated: "<host> <role>". Recognized roles are "control" and
// "worker"; anything else is a parse error. Roles are never defaulted.
package inventory

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Role tags a host as control plane or worker.
type Role string

const (
	// RoleControl marks a control plane host.
	RoleControl Role = "control"
	// RoleWorker marks a worker host.
	RoleWorker Role = "worker"
)

// Inventory groups hosts by role, preserving the order they were listed in.
type Inventory struct {
	Control []string
	Worker  []string
}

// ParseError describes a malformed inventory line.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("inventory line %d (%q): %s", e.Line, e.Text, e.Reason)
}

// Load reads and parses the inventory file at path.
func Load(path string) (*Inventory, error) {
	// #nosec G304
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Parse reads an inventory from r.
func Parse(r io.Reader) (*Inventory, error) {
	inv := &Inventory{}
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, &ParseError{
				Line:   lineNo,
				Text:   line,
				Reason: fmt.Sprintf("expected \"<host> <role>\", got %d fields", len(fields)),
			}
		}

		host := fields[0]
		switch Role(fields[1]) {
		case RoleControl:
			inv.Control = append(inv.Control, host)
		case RoleWorker:
			inv.Worker = append(inv.Worker, host)
		default:
			return nil, &ParseError{
				Line:   lineNo,
				Text:   line,
				Reason: fmt.Sprintf("unknown role %q (expected %q or %q)", fields[1], RoleControl, RoleWorker),
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}

	return inv, nil
}

// Hosts returns every host in fleet order: control plane hosts first, then
// workers, each group in listed order.
func (inv *Inventory) Hosts() []string {
	hosts := make([]string, 0, len(inv.Control)+len(inv.Worker))
	hosts = append(hosts, inv.Control...)
	hosts = append(hosts, inv.Worker...)
	return hosts
}

// Role returns the role of a listed host, or false if the host is unknown.
func (inv *Inventory) Role(host string) (Role, bool) {
	for _, h := range inv.Control {
		if h == host {
			return RoleControl, true
		}
	}
	for _, h := range inv.Worker {
		if h == host {
			return RoleWorker, true
		}
	}
	return "", false
}

// String serializes the inventory back to its file format, control plane
// hosts first.
func (inv *Inventory) String() string {
	var b strings.Builder
	for _, h := range inv.Control {
		fmt.Fprintf(&b, "%s %s\n", h, RoleControl)
	}
	for _, h := range inv.Worker {
		fmt.Fprintf(&b, "%s %s\n", h, RoleWorker)
	}
	return b.String()
}
