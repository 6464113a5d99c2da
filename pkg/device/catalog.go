package device

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/iotworkbench/iotwb/pkg/config"
	"github.com/iotworkbench/iotwb/pkg/engine"
	"gopkg.in/yaml.v3"
)

//go:embed resources/boards.yaml
var builtinCatalog []byte

// BoardSpec is one entry of the board catalog.
type BoardSpec struct {
	// ID is the board identifier stored in the project descriptor.
	ID string `yaml:"id" json:"id" validate:"required"`

	// Name is the display name.
	Name string `yaml:"name" json:"name" validate:"required"`

	// DeviceType is the board family name, e.g. "Esp32".
	DeviceType string `yaml:"deviceType" json:"deviceType" validate:"required,oneof=MXChip_AZ3166 IoT_Button Esp32 Raspberry_Pi"`

	// FQBN is the Arduino fully qualified board name.
	FQBN string `yaml:"fqbn,omitempty" json:"fqbn,omitempty"`

	// Version is the board package version used in editor include paths.
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	// TemplateFolder names the board's template bundle.
	TemplateFolder string `yaml:"templateFolder" json:"templateFolder" validate:"required"`

	// PreCompile is an inline Starlark hook run before compiling.
	PreCompile string `yaml:"preCompile,omitempty" json:"preCompile,omitempty"`

	// PreUpload is an inline Starlark hook run before uploading.
	PreUpload string `yaml:"preUpload,omitempty" json:"preUpload,omitempty"`
}

// Type parses the board's device type.
func (s BoardSpec) Type() (engine.DeviceType, error) {
	return engine.ParseDeviceType(s.DeviceType)
}

// Catalog is an ordered set of board specs.
type Catalog struct {
	boards []BoardSpec
	byID   map[string]int
}

type catalogFile struct {
	Boards []BoardSpec `yaml:"boards" validate:"required,dive"`
}

// DefaultCatalog returns the catalog shipped with iotwb.
func DefaultCatalog(schemas *config.SchemaRegistry) (*Catalog, error) {
	return LoadCatalog(builtinCatalog, schemas)
}

// LoadCatalog parses and validates a YAML board catalog.
func LoadCatalog(data []byte, schemas *config.SchemaRegistry) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse board catalog: %w", err)
	}
	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("invalid board catalog: %w", err)
	}

	c := &Catalog{byID: make(map[string]int, len(file.Boards))}
	for _, b := range file.Boards {
		if schemas != nil {
			if err := schemas.ValidateAgainstSchema(context.Background(), config.SchemaBoard, b); err != nil {
				return nil, fmt.Errorf("board %s: %w", b.ID, err)
			}
		}
		if _, dup := c.byID[b.ID]; dup {
			return nil, fmt.Errorf("duplicate board id %s", b.ID)
		}
		c.byID[b.ID] = len(c.boards)
		c.boards = append(c.boards, b)
	}
	return c, nil
}

// Lookup returns the board with the given id.
func (c *Catalog) Lookup(id string) (BoardSpec, bool) {
	i, ok := c.byID[id]
	if !ok {
		return BoardSpec{}, false
	}
	return c.boards[i], true
}

// Boards returns all boards in catalog order.
func (c *Catalog) Boards() []BoardSpec {
	out := make([]BoardSpec, len(c.boards))
	copy(out, c.boards)
	return out
}
