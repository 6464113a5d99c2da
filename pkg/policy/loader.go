package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iotworkbench/iotwb/pkg/config"
	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/rs/zerolog"
	"github.com/tidwall/jsonc"
)

// ProjectPolicies is what a project contributes to the policy engine.
type ProjectPolicies struct {
	// Dir is the policies folder that was scanned.
	Dir string

	// Policies are the loaded policies in file order.
	Policies []Policy

	// Disabled lists the policy names turned off in the project descriptor.
	Disabled []string

	// Skipped lists the files that could not be loaded.
	Skipped []SkippedFile
}

// SkippedFile is a policy file that was ignored.
type SkippedFile struct {
	Path string
	Err  error
}

// Loader reads the policies folder of a project. The folder may hold Rego
// modules (.rego), single JSON policy definitions and JSON policy bundles.
// Comments are allowed in JSON files.
type Loader struct {
	layout config.Layout
	logger zerolog.Logger
}

// NewLoader creates a loader for projects using layout.
func NewLoader(layout config.Layout, logger zerolog.Logger) *Loader {
	return &Loader{
		layout: layout,
		logger: logger.With().Str("component", "policy-loader").Logger(),
	}
}

// Load reads the policies of the project at root. A project without a
// policies folder yields no policies. A file that cannot be read or parsed
// is skipped and reported in Skipped.
func (l *Loader) Load(ctx context.Context, root string) (*ProjectPolicies, error) {
	dir := filepath.Join(root, l.layout.PoliciesFolder)
	result := &ProjectPolicies{Dir: dir}

	disabled, err := DisabledPolicies(root, l.layout)
	if err != nil {
		return nil, err
	}
	result.Disabled = disabled

	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read policies folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a folder", dir)
	}

	seen := make(map[string]string)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		var policies []Policy
		switch strings.ToLower(filepath.Ext(path)) {
		case ".rego":
			policies, err = l.readRego(path)
		case ".json":
			policies, err = l.readJSON(path)
		default:
			return nil
		}
		if err == nil {
			err = claimNames(seen, path, policies)
		}
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Skipping policy file")
			result.Skipped = append(result.Skipped, SkippedFile{Path: path, Err: err})
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		for i := range policies {
			if policies[i].Metadata == nil {
				policies[i].Metadata = make(map[string]interface{})
			}
			policies[i].Metadata[MetadataSource] = filepath.ToSlash(rel)
		}
		result.Policies = append(result.Policies, policies...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan policies folder: %w", err)
	}

	l.logger.Debug().
		Str("dir", dir).
		Int("policies", len(result.Policies)).
		Int("skipped", len(result.Skipped)).
		Int("disabled", len(result.Disabled)).
		Msg("Project policies read")

	return result, nil
}

// claimNames records the names of policies read from path and rejects names
// already taken by an earlier file.
func claimNames(seen map[string]string, path string, policies []Policy) error {
	for i := range policies {
		if first, dup := seen[policies[i].Name]; dup {
			return fmt.Errorf("policy %s is already defined in %s", policies[i].Name, first)
		}
	}
	for i := range policies {
		seen[policies[i].Name] = path
	}
	return nil
}

// readRego turns a Rego module into a blocking policy named after the file.
// Leading comment lines become the description.
func (l *Loader) readRego(path string) ([]Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return []Policy{{
		Name:        strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Description: leadingComment(string(data)),
		Rego:        string(data),
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}}, nil
}

// definition is a JSON policy as written by users. Enabled defaults to true.
type definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Rego        string                 `json:"rego"`
	Severity    Severity               `json:"severity"`
	Enabled     *bool                  `json:"enabled"`
	Tags        []string               `json:"tags"`
	Metadata    map[string]interface{} `json:"metadata"`
}

func (d *definition) policy() (Policy, error) {
	if d.Name == "" {
		return Policy{}, fmt.Errorf("policy definition has no name")
	}
	if strings.TrimSpace(d.Rego) == "" {
		return Policy{}, fmt.Errorf("policy %s has no rego module", d.Name)
	}
	severity := d.Severity
	if severity == "" {
		severity = SeverityError
	}
	if err := severity.Validate(); err != nil {
		return Policy{}, fmt.Errorf("policy %s: %w", d.Name, err)
	}
	enabled := true
	if d.Enabled != nil {
		enabled = *d.Enabled
	}
	now := time.Now()
	return Policy{
		Name:        d.Name,
		Description: d.Description,
		Rego:        d.Rego,
		Severity:    severity,
		Enabled:     enabled,
		Tags:        d.Tags,
		Metadata:    d.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// readJSON reads a single definition, or a bundle when the document has a
// "policies" array. Bundle policies are tagged with the bundle name.
func (l *Loader) readJSON(path string) ([]Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = jsonc.ToJSON(data)

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON policy: %w", err)
	}

	if _, isBundle := doc["policies"]; !isBundle {
		var def definition
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to parse JSON policy: %w", err)
		}
		p, err := def.policy()
		if err != nil {
			return nil, err
		}
		return []Policy{p}, nil
	}

	var bundle struct {
		Name     string       `json:"name"`
		Version  string       `json:"version"`
		Policies []definition `json:"policies"`
	}
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("failed to parse policy bundle: %w", err)
	}
	if bundle.Name == "" {
		return nil, fmt.Errorf("policy bundle has no name")
	}

	policies := make([]Policy, 0, len(bundle.Policies))
	for i := range bundle.Policies {
		p, err := bundle.Policies[i].policy()
		if err != nil {
			return nil, fmt.Errorf("bundle %s: %w", bundle.Name, err)
		}
		p.Tags = append(p.Tags, "bundle:"+bundle.Name)
		policies = append(policies, p)
	}

	l.logger.Debug().
		Str("bundle", bundle.Name).
		Str("version", bundle.Version).
		Int("policies", len(policies)).
		Msg("Policy bundle read")

	return policies, nil
}

// leadingComment joins the first block of comment lines. Blank lines and a
// package clause before the block are skipped.
func leadingComment(content string) string {
	var parts []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "package ") && len(parts) == 0:
			continue
		case strings.HasPrefix(trimmed, "#"):
			if c := strings.TrimSpace(strings.TrimPrefix(trimmed, "#")); c != "" {
				parts = append(parts, c)
			}
		default:
			return strings.Join(parts, " ")
		}
	}
	return strings.Join(parts, " ")
}

// DisabledPolicies returns the policy names turned off in the descriptor of
// the project at root. A project without a descriptor has none.
func DisabledPolicies(root string, layout config.Layout) ([]string, error) {
	d, err := engine.ReadDescriptor(root, layout)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read project descriptor: %w", err)
	}
	var names []string
	if _, err := d.Get(engine.KeyDisabledPolicies, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// SetPolicyDisabled records in the descriptor of the project at root whether
// the named policy is turned off. The descriptor must exist.
func SetPolicyDisabled(root string, layout config.Layout, name string, disabled bool) error {
	if _, err := engine.ReadDescriptor(root, layout); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return engine.NewPrerequisiteError(
				fmt.Sprintf("No %s found. Policies can only be toggled inside a project.", layout.ProjectFile), err)
		}
		return err
	}

	return engine.UpdateDescriptor(root, layout, func(d *engine.Descriptor) error {
		var names []string
		if _, err := d.Get(engine.KeyDisabledPolicies, &names); err != nil {
			return err
		}
		kept := make([]string, 0, len(names)+1)
		for _, n := range names {
			if n != name {
				kept = append(kept, n)
			}
		}
		if disabled {
			kept = append(kept, name)
		}
		return d.Set(engine.KeyDisabledPolicies, kept)
	})
}
