package ui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotworkbench/iotwb/pkg/engine"
)

var overwriteRequest = engine.PickRequest{
	Placeholder: "Configuration file tasks.json already exists. Overwrite?",
	Items: []engine.PickItem{
		{Label: "Yes", Detail: "Overwrite existing configuration files"},
		{Label: "No", Detail: "Keep existing configuration files and stop"},
	},
}

func TestTerminalPrompterPick(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantIdx int
		wantOK  bool
	}{
		{name: "first", input: "1\n", wantIdx: 0, wantOK: true},
		{name: "second with spaces", input: "  2 \n", wantIdx: 1, wantOK: true},
		{name: "retry after invalid", input: "7\nabc\n2\n", wantIdx: 1, wantOK: true},
		{name: "too many invalid", input: "7\n8\n9\n1\n", wantOK: false},
		{name: "quit", input: "q\n", wantOK: false},
		{name: "empty", input: "\n", wantOK: false},
		{name: "eof", input: "", wantOK: false},
		{name: "answer without newline", input: "2", wantIdx: 1, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewTerminalPrompter(strings.NewReader(tt.input), &out)

			idx, ok, err := p.Pick(context.Background(), overwriteRequest)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantIdx, idx)
			}
			assert.Contains(t, out.String(), "1) Yes")
			assert.Contains(t, out.String(), "Keep existing configuration files and stop")
		})
	}
}

func TestTerminalPrompterPickNoItems(t *testing.T) {
	p := NewTerminalPrompter(strings.NewReader("1\n"), &bytes.Buffer{})
	_, ok, err := p.Pick(context.Background(), engine.PickRequest{Placeholder: "Nothing"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTerminalPrompterConfirm(t *testing.T) {
	for input, want := range map[string]bool{
		"y\n":   true,
		"YES\n": true,
		"n\n":   false,
		"\n":    false,
		"":      false,
	} {
		p := NewTerminalPrompter(strings.NewReader(input), &bytes.Buffer{})
		got, err := p.Confirm(context.Background(), "Deploy weather-fn?")
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", input)
	}
}

func TestTerminalPrompterInput(t *testing.T) {
	var out bytes.Buffer
	p := NewTerminalPrompter(strings.NewReader("\nrg-custom\n"), &out)

	value, ok, err := p.Input(context.Background(), "Resource group", "rg-default")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "rg-default", value)
	assert.Contains(t, out.String(), "Resource group [rg-default]: ")

	value, ok, err = p.Input(context.Background(), "Resource group", "rg-default")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "rg-custom", value)

	_, ok, err = p.Input(context.Background(), "Resource group", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTerminalPrompterCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewTerminalPrompter(strings.NewReader("1\n"), &bytes.Buffer{})
	_, ok, err := p.Pick(ctx, overwriteRequest)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}

func TestAutoPrompter(t *testing.T) {
	p := NewAutoPrompter(zerolog.Nop())
	ctx := context.Background()

	idx, ok, err := p.Pick(ctx, overwriteRequest)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)

	_, ok, err = p.Pick(ctx, engine.PickRequest{})
	require.NoError(t, err)
	assert.False(t, ok)

	yes, err := p.Confirm(ctx, "Continue?")
	require.NoError(t, err)
	assert.True(t, yes)

	value, ok, err := p.Input(ctx, "Resource group", "rg-default")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "rg-default", value)

	_, ok, err = p.Input(ctx, "Resource group", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsoleNotifier(t *testing.T) {
	var out, logs bytes.Buffer
	n := NewConsoleNotifier(&out, zerolog.New(&logs).Level(zerolog.DebugLevel))

	n.Info("Azure deploy succeeded.")
	n.Warn("Provision cancelled.")
	n.Error("The deployment of weather-fn failed.")

	assert.Equal(t,
		"Azure deploy succeeded.\nWarning: Provision cancelled.\nError: The deployment of weather-fn failed.\n",
		out.String())
	assert.Contains(t, logs.String(), `"component":"notifier"`)
}
