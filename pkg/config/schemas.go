package config

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Schema names.
const (
	SchemaDescriptor = "descriptor"
	SchemaService    = "service"
	SchemaRemote     = "remote"
	SchemaBoard      = "board"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	// The built-in schemas are constants; a compile failure is a bug caught by tests.
	_ = sr.RegisterSchema(SchemaDescriptor, "#Descriptor", builtinSchemas)
	_ = sr.RegisterSchema(SchemaService, "#Service", builtinSchemas)
	_ = sr.RegisterSchema(SchemaRemote, "#Remote", builtinSchemas)
	_ = sr.RegisterSchema(SchemaBoard, "#Board", builtinSchemas)

	return sr
}

// RegisterSchema compiles source and registers the definition at path under name.
func (sr *SchemaRegistry) RegisterSchema(name, path, source string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(source)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	def := val.LookupPath(cue.ParsePath(path))
	if err := def.Err(); err != nil {
		return fmt.Errorf("failed to find definition %s in schema %s: %w", path, name, err)
	}

	sr.schemas[name] = def
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema. data may be a
// Go value with json tags or raw JSON bytes.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()

	var dataVal cue.Value
	switch v := data.(type) {
	case json.RawMessage:
		dataVal = sr.ctx.CompileBytes(v)
	case []byte:
		dataVal = sr.ctx.CompileBytes(v)
	default:
		dataVal = sr.ctx.Encode(data)
	}
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed against %s: %w", schemaName, err)
	}

	return nil
}

// ValidateDescriptor validates raw project descriptor JSON.
func (sr *SchemaRegistry) ValidateDescriptor(ctx context.Context, data []byte) error {
	return sr.ValidateAgainstSchema(ctx, SchemaDescriptor, data)
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const builtinSchemas = `
// Project descriptor stored at the project root.
#Descriptor: {
	projectHostType?:  "Unknown" | "Workspace" | "Container"
	workbenchVersion?: string & =~"^[0-9]+\\.[0-9]+\\.[0-9]+$"
	devicePath?:       string & !=""
	boardId?:          string & =~"^[a-zA-Z0-9_]+$"
	components?: [...#Service]
	remote?: #Remote
	disabledPolicies?: [...string & !=""]
	...
}

// Cloud service component.
#Service: {
	name: string & =~"^[a-zA-Z0-9_.-]+$"
	type: "IoTHub" | "IoTHubDevice" | "AzureFunctions" | "StreamAnalyticsJob" | "CosmosDB"
	provision?: [...string]
	deploy?: [...string]
	...
}

// SSH target of an embedded Linux device.
#Remote: {
	host:            string & !=""
	port?:           int & >0 & <65536
	user:            string & !=""
	auth?:           "password" | "key"
	password?:       string
	privateKeyPath?: string
	targetDir?:      string
	run?:            string
	...
}

// Board catalog entry.
#Board: {
	id:             string & =~"^[a-zA-Z0-9_]+$"
	name:           string & !=""
	deviceType:     "MXChip_AZ3166" | "IoT_Button" | "Esp32" | "Raspberry_Pi"
	fqbn?:          string
	version?:       string
	templateFolder: string & !=""
	preCompile?:    string
	preUpload?:     string
	...
}
`
