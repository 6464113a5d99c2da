package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/iotworkbench/iotwb/pkg/engine"
)

// ConsoleNotifier prints user-facing messages to out and mirrors them to the
// logger.
type ConsoleNotifier struct {
	mu     sync.Mutex
	out    io.Writer
	logger zerolog.Logger
}

var _ engine.Notifier = (*ConsoleNotifier)(nil)

// NewConsoleNotifier creates a notifier writing to out.
func NewConsoleNotifier(out io.Writer, logger zerolog.Logger) *ConsoleNotifier {
	return &ConsoleNotifier{
		out:    out,
		logger: logger.With().Str("component", "notifier").Logger(),
	}
}

// Info implements engine.Notifier.
func (n *ConsoleNotifier) Info(message string) {
	n.print("", message)
	n.logger.Debug().Msg(message)
}

// Warn implements engine.Notifier.
func (n *ConsoleNotifier) Warn(message string) {
	n.print("Warning: ", message)
	n.logger.Debug().Str("level", "warn").Msg(message)
}

// Error implements engine.Notifier.
func (n *ConsoleNotifier) Error(message string) {
	n.print("Error: ", message)
	n.logger.Debug().Str("level", "error").Msg(message)
}

func (n *ConsoleNotifier) print(prefix, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.out, prefix+message)
}
