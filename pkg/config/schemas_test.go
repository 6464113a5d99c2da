package config

import (
	"context"
	"testing"
)

func TestSchemaRegistry_RegisterAndGet(t *testing.T) {
	sr := NewSchemaRegistry()

	customSchema := `
#Task: {
	label:   string
	command: string
}
`

	if err := sr.RegisterSchema("task", "#Task", customSchema); err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}

	schema, ok := sr.GetSchema("task")
	if !ok {
		t.Fatal("expected to find task schema")
	}
	if schema.Err() != nil {
		t.Errorf("schema has errors: %v", schema.Err())
	}

	if err := sr.RegisterSchema("broken", "#Broken", "#Broken: {"); err == nil {
		t.Error("expected compile error")
	}
	if err := sr.RegisterSchema("missing", "#Missing", customSchema); err == nil {
		t.Error("expected missing definition error")
	}
}

func TestSchemaRegistry_BuiltInSchemas(t *testing.T) {
	sr := NewSchemaRegistry()

	builtins := []string{SchemaBoard, SchemaDescriptor, SchemaRemote, SchemaService}
	got := sr.ListSchemas()
	if len(got) != len(builtins) {
		t.Fatalf("expected %d schemas, got %v", len(builtins), got)
	}

	for i, name := range builtins {
		t.Run(name, func(t *testing.T) {
			if got[i] != name {
				t.Errorf("expected %s at %d, got %s", name, i, got[i])
			}
			schema, ok := sr.GetSchema(name)
			if !ok {
				t.Fatalf("built-in schema %s not found", name)
			}
			if schema.Err() != nil {
				t.Errorf("built-in schema %s has errors: %v", name, schema.Err())
			}
		})
	}
}

func TestSchemaRegistry_ValidateDescriptor(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name: "minimal descriptor",
			data: `{"projectHostType": "Workspace", "workbenchVersion": "1.0.0"}`,
		},
		{
			name: "extra keys allowed",
			data: `{"projectHostType": "Container", "anything": {"x": 1}}`,
		},
		{
			name: "components and remote",
			data: `{
				"projectHostType": "Container",
				"components": [{"name": "hub", "type": "IoTHub", "provision": ["iot", "hub", "create"]}],
				"remote": {"host": "raspberrypi.local", "port": 22, "user": "pi"}
			}`,
		},
		{
			name:    "invalid host type",
			data:    `{"projectHostType": "Cloud"}`,
			wantErr: true,
		},
		{
			name:    "invalid version",
			data:    `{"workbenchVersion": "one"}`,
			wantErr: true,
		},
		{
			name:    "invalid component type",
			data:    `{"components": [{"name": "x", "type": "Database"}]}`,
			wantErr: true,
		},
		{
			name:    "remote port out of range",
			data:    `{"remote": {"host": "pi", "user": "pi", "port": 70000}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidateDescriptor(ctx, []byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDescriptor() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSchemaRegistry_ValidateStruct(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	type board struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		DeviceType     string `json:"deviceType"`
		TemplateFolder string `json:"templateFolder"`
	}

	valid := board{ID: "esp32", Name: "ESP32 Arduino", DeviceType: "Esp32", TemplateFolder: "esp32"}
	if err := sr.ValidateAgainstSchema(ctx, SchemaBoard, valid); err != nil {
		t.Errorf("expected valid board, got %v", err)
	}

	invalid := board{ID: "esp-32", Name: "ESP32", DeviceType: "Esp32", TemplateFolder: "esp32"}
	if err := sr.ValidateAgainstSchema(ctx, SchemaBoard, invalid); err == nil {
		t.Error("expected invalid board id to fail")
	}

	if err := sr.ValidateAgainstSchema(ctx, "nope", valid); err == nil {
		t.Error("expected unknown schema error")
	}
}
