package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/iotworkbench/iotwb/pkg/config"
	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDescriptor(t *testing.T, content string) string {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, config.DefaultLayout().ProjectFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return root
}

func TestValidateDescriptor(t *testing.T) {
	ctx := context.Background()
	layout := config.DefaultLayout()
	schemas := config.NewSchemaRegistry()

	t.Run("valid", func(t *testing.T) {
		root := writeDescriptor(t, `{
    // written by iotwb
    "projectHostType": "Container",
    "boardId": "raspberrypi",
    "components": [{"name": "weather-hub", "type": "IoTHub"}],
    "remote": {"host": "pi.local", "user": "pi"},
    "disabledPolicies": ["component-naming"]
}`)
		findings, err := ValidateDescriptor(ctx, root, layout, schemas)
		require.NoError(t, err)
		assert.Empty(t, findings)
	})

	t.Run("findings point at keys", func(t *testing.T) {
		root := writeDescriptor(t, `{
    "projectHostType": "Laptop",
    "boardId": "esp32",
    "components": [
        {"name": "weather-hub", "type": "IoTHub"},
        {"name": "weather-db", "type": "Postgres"}
    ],
    "remote": {"host": "pi.local"},
    "custom": true
}`)
		findings, err := ValidateDescriptor(ctx, root, layout, schemas)
		require.NoError(t, err)
		require.Len(t, findings, 4)

		assert.Equal(t, engine.KeyProjectHostType, findings[0].Key)
		assert.False(t, findings[0].Warning)
		assert.Equal(t, "components[1]", findings[1].Key)
		assert.Equal(t, engine.KeyRemote, findings[2].Key)
		assert.Equal(t, Finding{Key: "custom", Message: "unknown key", Warning: true}, findings[3])
	})

	t.Run("components must be a list", func(t *testing.T) {
		root := writeDescriptor(t, `{"components": {"name": "weather-hub"}}`)
		findings, err := ValidateDescriptor(ctx, root, layout, schemas)
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, engine.KeyComponents, findings[0].Key)
	})

	t.Run("not an object", func(t *testing.T) {
		root := writeDescriptor(t, `["boardId"]`)
		findings, err := ValidateDescriptor(ctx, root, layout, schemas)
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Empty(t, findings[0].Key)
	})

	t.Run("missing descriptor", func(t *testing.T) {
		_, err := ValidateDescriptor(ctx, t.TempDir(), layout, schemas)
		require.Error(t, err)
		assert.True(t, engine.IsPrerequisite(err))
	})
}
