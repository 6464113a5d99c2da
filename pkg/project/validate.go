package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/iotworkbench/iotwb/pkg/config"
	"github.com/iotworkbench/iotwb/pkg/engine"
)

// Finding is one problem in a project descriptor.
type Finding struct {
	// Key is the descriptor key, with an index for list items.
	Key string

	// Message describes the problem.
	Message string

	// Warning is set for problems that do not stop the project from loading.
	Warning bool
}

// ValidateDescriptor checks the descriptor under root one key at a time, so
// each problem points at the key that caused it. Cloud components are checked
// against the service schema and the remote target against the remote schema.
// Keys the workbench does not read are reported as warnings.
func ValidateDescriptor(ctx context.Context, root string, layout config.Layout, schemas *config.SchemaRegistry) ([]Finding, error) {
	raw, err := os.ReadFile(filepath.Join(root, layout.ProjectFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, engine.NewPrerequisiteError(fmt.Sprintf("No %s found in %s.", layout.ProjectFile, root), err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", layout.ProjectFile, err)
	}

	d, err := engine.ParseDescriptor(raw)
	if err != nil {
		return []Finding{{Message: err.Error()}}, nil
	}

	var findings []Finding
	add := func(key string, err error) {
		findings = append(findings, Finding{Key: key, Message: err.Error()})
	}

	for _, key := range d.Keys() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		value, _ := d.Raw(key)

		switch key {
		case engine.KeyComponents:
			var items []json.RawMessage
			if err := json.Unmarshal(value, &items); err != nil {
				add(key, fmt.Errorf("must be a list of components"))
				continue
			}
			for i, item := range items {
				if err := schemas.ValidateAgainstSchema(ctx, config.SchemaService, item); err != nil {
					add(fmt.Sprintf("%s[%d]", key, i), err)
				}
			}
		case engine.KeyRemote:
			if err := schemas.ValidateAgainstSchema(ctx, config.SchemaRemote, value); err != nil {
				add(key, err)
			}
		case engine.KeyProjectHostType, engine.KeyWorkbenchVersion, engine.KeyDevicePath,
			engine.KeyBoardID, engine.KeyDisabledPolicies:
			single, err := json.Marshal(map[string]json.RawMessage{key: value})
			if err != nil {
				add(key, err)
				continue
			}
			if err := schemas.ValidateDescriptor(ctx, single); err != nil {
				add(key, err)
			}
		default:
			findings = append(findings, Finding{Key: key, Message: "unknown key", Warning: true})
		}
	}
	return findings, nil
}
