package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/iotworkbench/iotwb/pkg/config"
	"github.com/tidwall/jsonc"
)

// Descriptor keys.
const (
	KeyProjectHostType  = "projectHostType"
	KeyWorkbenchVersion = "workbenchVersion"
	KeyDevicePath       = "devicePath"
	KeyBoardID          = "boardId"
	KeyComponents       = "components"
	KeyRemote           = "remote"
	KeyDisabledPolicies = "disabledPolicies"
)

const descriptorIndent = "    "

// Descriptor is the project descriptor: a JSON object whose keys keep their
// original order and whose values are kept as raw JSON, so a rewrite only
// changes the keys that were set.
type Descriptor struct {
	keys   []string
	values map[string]json.RawMessage
}

// NewDescriptor creates an empty descriptor.
func NewDescriptor() *Descriptor {
	return &Descriptor{values: make(map[string]json.RawMessage)}
}

// ParseDescriptor parses descriptor content. Comments and trailing commas are
// tolerated. Empty content yields an empty descriptor.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	d := NewDescriptor()
	data = bytes.TrimSpace(jsonc.ToJSON(data))
	if len(data) == 0 {
		return d, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("descriptor must be a JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read descriptor key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("descriptor key must be a string, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to read descriptor value %q: %w", key, err)
		}
		d.SetRaw(key, raw)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to read descriptor end: %w", err)
	}
	return d, nil
}

// Keys returns the keys in document order.
func (d *Descriptor) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Raw returns the raw JSON value for key.
func (d *Descriptor) Raw(key string) (json.RawMessage, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Get decodes the value for key into v. It returns false if key is absent.
func (d *Descriptor) Get(key string, v interface{}) (bool, error) {
	raw, ok := d.values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("failed to decode descriptor key %s: %w", key, err)
	}
	return true, nil
}

// GetString returns the string value for key.
func (d *Descriptor) GetString(key string) (string, bool) {
	var s string
	found, err := d.Get(key, &s)
	if !found || err != nil {
		return "", false
	}
	return s, true
}

// Set encodes v and stores it under key, keeping the key's position if it
// already exists.
func (d *Descriptor) Set(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode descriptor key %s: %w", key, err)
	}
	d.SetRaw(key, raw)
	return nil
}

// SetRaw stores raw JSON under key.
func (d *Descriptor) SetRaw(key string, raw json.RawMessage) {
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = append(json.RawMessage(nil), raw...)
}

// Marshal renders the descriptor with 4-space indentation.
func (d *Descriptor) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(d.values[key])
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", descriptorIndent); err != nil {
		return nil, fmt.Errorf("failed to format descriptor: %w", err)
	}
	return out.Bytes(), nil
}

// ReadDescriptor reads the descriptor under root. It returns fs.ErrNotExist
// (wrapped) when the file is absent.
func ReadDescriptor(root string, layout config.Layout) (*Descriptor, error) {
	data, err := os.ReadFile(filepath.Join(root, layout.ProjectFile))
	if err != nil {
		return nil, err
	}
	return ParseDescriptor(data)
}

// GetProjectType determines the host type of the project at root. A declared
// host type in a valid descriptor wins. Without one, a container marker
// folder means Container and anything else means Workspace. An empty or
// missing root is Unknown.
func GetProjectType(root string, layout config.Layout) ProjectHostType {
	if root == "" || !isDir(root) {
		return HostTypeUnknown
	}

	if d, err := ReadDescriptor(root, layout); err == nil {
		if value, ok := d.GetString(KeyProjectHostType); ok {
			if h, err := ParseProjectHostType(value); err == nil {
				return h
			}
		}
	}

	if isDir(filepath.Join(root, layout.ContainerMarkerFolder)) {
		return HostTypeContainer
	}
	return HostTypeWorkspace
}

// WriteProjectFile creates the descriptor in projectFolder if absent and sets
// the host type and schema version. Every other key is preserved.
func WriteProjectFile(projectFolder string, layout config.Layout, hostType ProjectHostType) error {
	if !isDir(projectFolder) {
		return NewInvariantError("Unable to find the project folder.", nil)
	}

	if err := writeProjectFile(projectFolder, layout, hostType); err != nil {
		return NewOperationalError(fmt.Sprintf("Generate or update %s file failed", layout.ProjectFile), err).
			WithOperation("generateOrUpdateProjectFile")
	}
	return nil
}

func writeProjectFile(projectFolder string, layout config.Layout, hostType ProjectHostType) error {
	return UpdateDescriptor(projectFolder, layout, func(d *Descriptor) error {
		if err := d.Set(KeyProjectHostType, string(hostType)); err != nil {
			return err
		}
		return d.Set(KeyWorkbenchVersion, layout.WorkbenchVersion)
	})
}

// UpdateDescriptor reads the descriptor under root, or starts an empty one
// when the file is absent, applies fn and writes the result back.
func UpdateDescriptor(root string, layout config.Layout, fn func(d *Descriptor) error) error {
	d, err := ReadDescriptor(root, layout)
	if errors.Is(err, fs.ErrNotExist) {
		d = NewDescriptor()
	} else if err != nil {
		return err
	}
	if err := fn(d); err != nil {
		return err
	}
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(root, layout.ProjectFile), data, 0o644)
}

// GenerateOrUpdateProjectFile writes the project's host type into the
// descriptor in projectFolder.
func (p *Project) GenerateOrUpdateProjectFile(projectFolder string) error {
	if err := WriteProjectFile(projectFolder, p.layout, p.hostType); err != nil {
		return err
	}
	p.logger.Debug().
		Str("folder", projectFolder).
		Str("host_type", string(p.hostType)).
		Msg("Project descriptor updated")
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
