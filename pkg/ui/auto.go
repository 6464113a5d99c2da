package ui

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/iotworkbench/iotwb/pkg/engine"
)

// AutoPrompter answers every question without user interaction: the first
// item of a pick, yes to confirmations and the default of an input. It backs
// the --yes flag and non-interactive runs.
type AutoPrompter struct {
	logger zerolog.Logger
}

var _ engine.Prompter = (*AutoPrompter)(nil)

// NewAutoPrompter creates an auto-answering prompter that logs each answer.
func NewAutoPrompter(logger zerolog.Logger) *AutoPrompter {
	return &AutoPrompter{logger: logger.With().Str("component", "prompter").Logger()}
}

// Pick selects the first item.
func (p *AutoPrompter) Pick(ctx context.Context, req engine.PickRequest) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	if len(req.Items) == 0 {
		return 0, false, nil
	}
	p.logger.Debug().Str("prompt", req.Placeholder).Str("answer", req.Items[0].Label).Msg("Auto-selected")
	return 0, true, nil
}

// Confirm answers yes.
func (p *AutoPrompter) Confirm(ctx context.Context, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.logger.Debug().Str("prompt", message).Msg("Auto-confirmed")
	return true, nil
}

// Input returns defaultValue. Without a default the prompt is dismissed.
func (p *AutoPrompter) Input(ctx context.Context, prompt, defaultValue string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if defaultValue == "" {
		p.logger.Warn().Str("prompt", prompt).Msg("No default answer available")
		return "", false, nil
	}
	return defaultValue, true, nil
}
