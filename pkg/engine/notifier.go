package engine

import (
	"github.com/rs/zerolog"
)

// LogNotifier is a Notifier that writes messages to a zerolog logger.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier backed by logger.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Info implements Notifier.
func (n *LogNotifier) Info(message string) {
	n.logger.Info().Msg(message)
}

// Warn implements Notifier.
func (n *LogNotifier) Warn(message string) {
	n.logger.Warn().Msg(message)
}

// Error implements Notifier.
func (n *LogNotifier) Error(message string) {
	n.logger.Error().Msg(message)
}
