package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Defaults(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv("HOME", t.TempDir())

	s, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "arduino-cli", s.ArduinoCLI)
	assert.Equal(t, "az", s.AzureCLI)
	assert.Equal(t, "none", s.Tracing.Exporter)
	assert.Equal(t, 10*time.Second, s.HookTimeout)
	assert.Equal(t, DefaultLayout(), s.Layout)
	assert.True(t, s.JournalEnabled())
}

func TestLoadSettings_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
arduino_cli: /opt/arduino/arduino-cli
resource_group: from-file
journal: "off"
hook_timeout: 3s
layout:
  device_folder: Firmware
`), 0o644))

	t.Setenv(EnvResourceGroup, "from-env")
	t.Setenv(EnvAutoApprove, "true")

	s, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/arduino/arduino-cli", s.ArduinoCLI)
	assert.Equal(t, "from-env", s.ResourceGroup)
	assert.True(t, s.AutoApprove)
	assert.False(t, s.JournalEnabled())
	assert.Equal(t, 3*time.Second, s.HookTimeout)
	assert.Equal(t, "Firmware", s.Layout.DeviceFolder)
	assert.Equal(t, ".iotworkbenchproject", s.Layout.ProjectFile)
}

func TestLoadSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad exporter", content: "tracing:\n  exporter: jaeger\n"},
		{name: "otlp without endpoint", content: "tracing:\n  exporter: otlp\n"},
		{name: "bad yaml", content: "arduino_cli: [\n"},
		{name: "zero hook timeout", content: "hook_timeout: 0s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := LoadSettings(path)
			assert.Error(t, err)
		})
	}
}

func TestSettings_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	s := DefaultSettings()
	s.ResourceGroup = "rg-devices"
	require.NoError(t, s.Save(path))

	loaded, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "rg-devices", loaded.ResourceGroup)
}

func TestLayout(t *testing.T) {
	l := DefaultLayout()
	require.NoError(t, l.Validate())

	merged := l.Merge(Layout{BuildFolder: "out"})
	assert.Equal(t, "out", merged.BuildFolder)
	assert.Equal(t, ".build", l.BuildFolder, "merge must not change the receiver")

	l.ProjectFile = ""
	assert.Error(t, l.Validate())
}
