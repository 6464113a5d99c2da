package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/iotworkbench/iotwb/pkg/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectType(t *testing.T) {
	layout := config.DefaultLayout()

	t.Run("empty root", func(t *testing.T) {
		assert.Equal(t, HostTypeUnknown, GetProjectType("", layout))
	})

	t.Run("missing root", func(t *testing.T) {
		assert.Equal(t, HostTypeUnknown, GetProjectType(filepath.Join(t.TempDir(), "nope"), layout))
	})

	t.Run("no descriptor and no marker", func(t *testing.T) {
		assert.Equal(t, HostTypeWorkspace, GetProjectType(t.TempDir(), layout))
	})

	t.Run("no descriptor with container marker", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(root, layout.ContainerMarkerFolder), 0o755))
		assert.Equal(t, HostTypeContainer, GetProjectType(root, layout))
	})

	t.Run("descriptor wins over marker", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(root, layout.ContainerMarkerFolder), 0o755))
		writeFile(t, filepath.Join(root, layout.ProjectFile), `{"projectHostType": "Workspace"}`)
		assert.Equal(t, HostTypeWorkspace, GetProjectType(root, layout))
	})

	t.Run("invalid descriptor falls back", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(root, layout.ContainerMarkerFolder), 0o755))
		writeFile(t, filepath.Join(root, layout.ProjectFile), `{not json`)
		assert.Equal(t, HostTypeContainer, GetProjectType(root, layout))
	})

	t.Run("descriptor with comments", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, layout.ProjectFile), "{\n  // host\n  \"projectHostType\": \"Container\",\n}")
		assert.Equal(t, HostTypeContainer, GetProjectType(root, layout))
	})
}

func TestGenerateOrUpdateProjectFile(t *testing.T) {
	layout := config.DefaultLayout()

	t.Run("missing folder", func(t *testing.T) {
		p := NewProject(ProjectConfig{Layout: layout, Logger: zerolog.Nop()})
		err := p.GenerateOrUpdateProjectFile(filepath.Join(t.TempDir(), "missing"))
		require.Error(t, err)
		assert.True(t, IsInvariant(err))
		assert.Equal(t, "Unable to find the project folder.", UserMessage(err))
	})

	t.Run("creates descriptor", func(t *testing.T) {
		root := t.TempDir()
		p := NewProject(ProjectConfig{Root: root, HostType: HostTypeContainer, Layout: layout, Logger: zerolog.Nop()})
		require.NoError(t, p.GenerateOrUpdateProjectFile(root))

		data, err := os.ReadFile(filepath.Join(root, layout.ProjectFile))
		require.NoError(t, err)
		assert.Equal(t, "{\n    \"projectHostType\": \"Container\",\n    \"workbenchVersion\": \"1.0.0\"\n}", string(data))
		assert.Equal(t, HostTypeContainer, GetProjectType(root, layout))
	})

	t.Run("preserves unrelated keys", func(t *testing.T) {
		root := t.TempDir()
		original := `{
    "devicePath": "Device",
    "projectHostType": "Container",
    "custom": {"nested": [1, 2, {"x": null}], "flag": true},
    "workbenchVersion": "0.9.0"
}`
		writeFile(t, filepath.Join(root, layout.ProjectFile), original)

		p := NewProject(ProjectConfig{Root: root, HostType: HostTypeWorkspace, Layout: layout, Logger: zerolog.Nop()})
		require.NoError(t, p.GenerateOrUpdateProjectFile(root))

		d, err := ReadDescriptor(root, layout)
		require.NoError(t, err)
		assert.Equal(t, []string{"devicePath", "projectHostType", "custom", "workbenchVersion"}, d.Keys())

		var custom, want interface{}
		raw, ok := d.Raw("custom")
		require.True(t, ok)
		require.NoError(t, json.Unmarshal(raw, &custom))
		require.NoError(t, json.Unmarshal([]byte(`{"nested": [1, 2, {"x": null}], "flag": true}`), &want))
		assert.Equal(t, want, custom)

		devicePath, _ := d.GetString(KeyDevicePath)
		assert.Equal(t, "Device", devicePath)
		hostType, _ := d.GetString(KeyProjectHostType)
		assert.Equal(t, "Workspace", hostType)
		version, _ := d.GetString(KeyWorkbenchVersion)
		assert.Equal(t, "1.0.0", version)
	})

	t.Run("unparseable descriptor is reported", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, layout.ProjectFile), `[1, 2]`)

		p := NewProject(ProjectConfig{Root: root, Layout: layout, Logger: zerolog.Nop()})
		err := p.GenerateOrUpdateProjectFile(root)
		require.Error(t, err)
		assert.Contains(t, UserMessage(err), "Generate or update .iotworkbenchproject file failed")
	})
}

func TestParseDescriptor(t *testing.T) {
	d, err := ParseDescriptor([]byte("   "))
	require.NoError(t, err)
	assert.Empty(t, d.Keys())

	d, err = ParseDescriptor([]byte(`{"a": 1, "b": "two", "a": 3}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, d.Keys())

	var a int
	found, err := d.Get("a", &a)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, a)

	_, ok := d.GetString("a")
	assert.False(t, ok)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
