// Package ui implements the engine prompter and notifier for the terminal.
package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/iotworkbench/iotwb/pkg/engine"
)

// maxAttempts bounds how often an invalid answer is asked again.
const maxAttempts = 3

// TerminalPrompter asks questions on a line-oriented terminal. Any reader
// works, so answers may also be scripted from a file or pipe.
type TerminalPrompter struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

var _ engine.Prompter = (*TerminalPrompter)(nil)

// NewTerminalPrompter creates a prompter reading answers from in and writing
// questions to out.
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Pick prints the numbered items and reads the chosen number. An empty
// answer, "q" or end of input dismisses the prompt.
func (p *TerminalPrompter) Pick(ctx context.Context, req engine.PickRequest) (int, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(req.Items) == 0 {
		return 0, false, nil
	}

	fmt.Fprintln(p.out, req.Placeholder)
	for i, item := range req.Items {
		line := fmt.Sprintf("  %d) %s", i+1, item.Label)
		if item.Description != "" {
			line += "  " + item.Description
		}
		fmt.Fprintln(p.out, line)
		if item.Detail != "" {
			fmt.Fprintf(p.out, "     %s\n", item.Detail)
		}
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		answer, ok, err := p.readLine(ctx, fmt.Sprintf("Select [1-%d, q to cancel]: ", len(req.Items)))
		if err != nil || !ok {
			return 0, false, err
		}
		if answer == "" || strings.EqualFold(answer, "q") {
			return 0, false, nil
		}

		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= len(req.Items) {
			return n - 1, true, nil
		}
		fmt.Fprintf(p.out, "Invalid selection %q.\n", answer)
	}
	return 0, false, nil
}

// Confirm asks a yes/no question. Anything other than y or yes is a no.
func (p *TerminalPrompter) Confirm(ctx context.Context, message string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	answer, ok, err := p.readLine(ctx, message+" [y/N]: ")
	if err != nil || !ok {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Input reads free text. An empty answer yields defaultValue and end of
// input dismisses the prompt.
func (p *TerminalPrompter) Input(ctx context.Context, prompt, defaultValue string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	label := prompt
	if defaultValue != "" {
		label = fmt.Sprintf("%s [%s]", prompt, defaultValue)
	}

	answer, ok, err := p.readLine(ctx, label+": ")
	if err != nil || !ok {
		return "", false, err
	}
	if answer == "" {
		return defaultValue, true, nil
	}
	return answer, true, nil
}

// readLine prints prompt and reads one trimmed line. ok is false at end of
// input.
func (p *TerminalPrompter) readLine(ctx context.Context, prompt string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	fmt.Fprint(p.out, prompt)

	line, err := p.in.ReadString('\n')
	if errors.Is(err, io.EOF) {
		if line == "" {
			fmt.Fprintln(p.out)
			return "", false, nil
		}
	} else if err != nil {
		return "", false, fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(line), true, nil
}
