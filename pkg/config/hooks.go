package config

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// HookProceed is the global a hook script sets to False to skip the phase.
const HookProceed = "proceed"

// HookResult is the outcome of a hook script.
type HookResult struct {
	// Proceed is false when the script asked to skip the phase.
	Proceed bool `json:"proceed"`

	// Output holds the script's exported globals.
	Output map[string]interface{} `json:"output,omitempty"`

	// Messages holds lines printed by the script.
	Messages []string `json:"messages,omitempty"`

	// ExecutionTime is how long the script ran.
	ExecutionTime time.Duration `json:"execution_time"`
}

// HookEvaluator runs Starlark pre-action hooks with a time limit.
type HookEvaluator struct {
	timeout time.Duration
	logger  zerolog.Logger
}

// NewHookEvaluator creates a hook evaluator.
func NewHookEvaluator(timeout time.Duration, logger zerolog.Logger) *HookEvaluator {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HookEvaluator{
		timeout: timeout,
		logger:  logger.With().Str("component", "hooks").Logger(),
	}
}

// Evaluate runs script with input bound as predeclared globals. The script
// sees fail() for aborting with an error and print() for messages.
// Proceed defaults to true when the script does not assign it.
func (he *HookEvaluator) Evaluate(ctx context.Context, name, script string, input map[string]interface{}) (*HookResult, error) {
	startTime := time.Now()
	result := &HookResult{Proceed: true}

	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			result.Messages = append(result.Messages, msg)
			he.logger.Info().Str("hook", name).Msg(msg)
		},
	}

	evalCtx, cancel := context.WithTimeout(ctx, he.timeout)
	defer cancel()
	stop := context.AfterFunc(evalCtx, func() {
		thread.Cancel(fmt.Sprintf("hook %s exceeded %v", name, he.timeout))
	})
	defer stop()

	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
	}
	for key, val := range input {
		starlarkVal, err := toStarlarkValue(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert input %s: %w", key, err)
		}
		predeclared[key] = starlarkVal
	}

	globals, err := starlark.ExecFile(thread, name, script, predeclared)
	result.ExecutionTime = time.Since(startTime)
	if err != nil {
		return nil, fmt.Errorf("hook %s failed: %w", name, err)
	}

	result.Output = make(map[string]interface{})
	for key, val := range globals {
		// Skip private globals
		if len(key) > 0 && key[0] == '_' {
			continue
		}
		if key == HookProceed {
			b, ok := val.(starlark.Bool)
			if !ok {
				return nil, fmt.Errorf("hook %s: %s must be a bool, got %s", name, HookProceed, val.Type())
			}
			result.Proceed = bool(b)
			continue
		}
		goVal, err := fromStarlarkValue(val)
		if err != nil {
			// Functions and other non-data globals are not exported
			continue
		}
		result.Output[key] = goVal
	}

	he.logger.Debug().
		Str("hook", name).
		Bool("proceed", result.Proceed).
		Dur("duration", result.ExecutionTime).
		Msg("Hook evaluated")

	return result, nil
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []string:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			list[i] = starlark.String(item)
		}
		return starlark.NewList(list), nil
	case map[string]string:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			if err := dict.SetKey(starlark.String(k), starlark.String(v)); err != nil {
				return nil, err
			}
		}
		return dict, nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			starlarkVal, err := toStarlarkValue(v)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]interface{})
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
