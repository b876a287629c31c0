package kupgrade

import (
	"context"
	"log"

	"github.com/neboman11/misc-utility/internal/platform/ssh"
)

// Runner runs a single command on one host, optionally elevated.
type Runner interface {
	Run(ctx context.Context, command string, elevate bool) (ssh.Result, error)
}

// Session is an open connection to one host.
type Session interface {
	Runner
	Close() error
}

// SessionFactory opens a session to a named host from the inventory.
type SessionFactory func(ctx context.Context, host string) (Session, error)

// Logger receives progress output from the sequencer.
type Logger interface {
	Printf(format string, v ...any)
}

// Notifier delivers milestone messages. Delivery failures are logged by the
// sequencer, never treated as fatal.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// stdLogger routes sequencer output through the standard log package.
type stdLogger struct{}

func (stdLogger) Printf(format string, v ...any) {
	log.Printf(format, v...)
}
