package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotworkbench/iotwb/pkg/config"
	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/policy"
	"github.com/iotworkbench/iotwb/pkg/project"
	"github.com/iotworkbench/iotwb/pkg/runner"
	"github.com/iotworkbench/iotwb/pkg/ui"
)

func isolateSettings(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfig, filepath.Join(dir, "settings.yaml"))
	t.Setenv(config.EnvJournal, filepath.Join(dir, "journal.db"))
	t.Setenv(config.EnvMetricsFile, "")
	t.Setenv(config.EnvTracing, "none")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand("1.0.0", "abc123", "2026-01-01")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := newRootCommand("dev", "unknown", "unknown")

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{
		"create", "configure", "compile", "upload", "provision",
		"deploy", "settings", "crc", "codegen", "history", "policy",
		"validate", "init", "version",
	} {
		assert.Contains(t, names, want)
	}
}

// createProject creates an ESP32 project in a folder that does not exist yet.
// No external tool is found on PATH, so nothing is launched.
func createProject(t *testing.T) string {
	t.Helper()
	isolateSettings(t)
	t.Setenv("PATH", t.TempDir())
	root := filepath.Join(t.TempDir(), "weather-station")

	out, err := execute(t, "create", root, "--board", "esp32", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Created esp32 project in "+root)
	return root
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "iotwb 1.0.0")
	assert.Contains(t, out, "commit:     abc123")
}

func TestParsePlatform(t *testing.T) {
	p, err := parsePlatform("Arduino")
	require.NoError(t, err)
	assert.Equal(t, project.PlatformArduino, p)

	p, err = parsePlatform("linux")
	require.NoError(t, err)
	assert.Equal(t, project.PlatformEmbeddedLinux, p)

	_, err = parsePlatform("zephyr")
	assert.Error(t, err)
}

func TestConfigureRejectsUnknownPlatform(t *testing.T) {
	isolateSettings(t)
	_, err := execute(t, "configure", "--platform", "zephyr")
	assert.ErrorContains(t, err, "unknown platform")
}

func TestCreateListBoards(t *testing.T) {
	dir := isolateSettings(t)
	out, err := execute(t, "create", "--list-boards", "--project", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "mxchip_az3166")
	assert.Contains(t, out, "raspberrypi")
}

func TestCreateRequiresBoard(t *testing.T) {
	dir := isolateSettings(t)
	_, err := execute(t, "create", filepath.Join(dir, "weather"))
	assert.ErrorContains(t, err, "--board is required")
}

func TestCompileOutsideProjectIsJournaled(t *testing.T) {
	dir := isolateSettings(t)
	empty := t.TempDir()

	_, err := execute(t, "compile", "--project", empty)
	require.Error(t, err)

	out, err := execute(t, "history", "--project", empty, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"command": "compile"`)
	assert.Contains(t, out, `"result": "Failed"`)

	out, err = execute(t, "history", "--all", "--project", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "COMMAND")
	assert.Contains(t, out, "compile")
}

func TestHistoryJournalDisabled(t *testing.T) {
	isolateSettings(t)
	t.Setenv(config.EnvJournal, config.JournalDisabled)

	_, err := execute(t, "history")
	assert.ErrorContains(t, err, "journal is disabled")
}

func TestCreateInFreshFolder(t *testing.T) {
	root := createProject(t)

	assert.FileExists(t, filepath.Join(root, config.DefaultLayout().ProjectFile))
	assert.FileExists(t, filepath.Join(root, "weather-station.code-workspace"))

	out, err := execute(t, "history", "--project", root, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"command": "create"`)
	assert.Contains(t, out, `"result": "Succeeded"`)
}

func TestEmptyProvisionAndDeploySucceed(t *testing.T) {
	root := createProject(t)

	out, err := execute(t, "provision", "--project", root, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, engine.MsgNothingToProvision)

	out, err = execute(t, "deploy", "--project", root, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, engine.MsgNothingToDeploy)

	out, err = execute(t, "history", "--project", root, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"command": "provision"`)
	assert.Contains(t, out, `"command": "deploy"`)
	assert.NotContains(t, out, `"result": "Failed"`)
}

func TestPolicyDisableAndEnable(t *testing.T) {
	root := createProject(t)
	namingRow := regexp.MustCompile(`component-naming\s+\S+\s+(true|false)\s+built-in`)

	out, err := execute(t, "policy", "list", "--project", root)
	require.NoError(t, err)
	assert.Contains(t, out, "cloud-session")
	require.Equal(t, "true", namingRow.FindStringSubmatch(out)[1])

	out, err = execute(t, "policy", "disable", "component-naming", "--project", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Policy component-naming disabled")

	disabled, err := policy.DisabledPolicies(root, config.DefaultLayout())
	require.NoError(t, err)
	assert.Equal(t, []string{"component-naming"}, disabled)

	out, err = execute(t, "policy", "list", "--project", root)
	require.NoError(t, err)
	require.Equal(t, "false", namingRow.FindStringSubmatch(out)[1])

	out, err = execute(t, "policy", "enable", "component-naming", "--project", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Policy component-naming enabled")

	out, err = execute(t, "policy", "list", "--project", root)
	require.NoError(t, err)
	require.Equal(t, "true", namingRow.FindStringSubmatch(out)[1])

	_, err = execute(t, "policy", "disable", "no-such-policy", "--project", root)
	assert.ErrorContains(t, err, "policy not found")
}

func TestPolicyToggleOutsideProject(t *testing.T) {
	isolateSettings(t)
	_, err := execute(t, "policy", "disable", "component-naming", "--project", t.TempDir())
	require.Error(t, err)
	assert.True(t, engine.IsPrerequisite(err))
}

func TestValidateCommand(t *testing.T) {
	root := createProject(t)

	out, err := execute(t, "validate", "--project", root)
	require.NoError(t, err)
	assert.Contains(t, out, ".iotworkbenchproject is valid")

	out, err = execute(t, "validate", "--list-schemas", "--project", root)
	require.NoError(t, err)
	assert.Equal(t, "board\ndescriptor\nremote\nservice\n", out)

	path := filepath.Join(root, config.DefaultLayout().ProjectFile)
	require.NoError(t, os.WriteFile(path, []byte(`{"boardId": "esp-32", "legacy": 1}`), 0o644))

	out, err = execute(t, "validate", "--project", root)
	assert.ErrorContains(t, err, "1 problem(s)")
	assert.Regexp(t, `error\s+boardId`, out)
	assert.Regexp(t, `warning\s+legacy\s+unknown key`, out)
}

func TestInitWritesSettings(t *testing.T) {
	dir := isolateSettings(t)
	path := filepath.Join(dir, "settings.yaml")

	out, err := execute(t, "init", "--project", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Created settings file: "+path)
	assert.Contains(t, out, "Initialized journal: "+filepath.Join(dir, "journal.db"))

	settings, err := config.LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSettings().ArduinoCLI, settings.ArduinoCLI)

	_, err = execute(t, "init", "--project", dir)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "init", "--project", dir, "--force")
	require.NoError(t, err)
}

func TestOpenGenerated(t *testing.T) {
	var (
		out bytes.Buffer
		ran []runner.Request
	)
	deps := project.Deps{
		Runner: runner.Func(func(_ context.Context, req runner.Request) (*runner.Result, error) {
			ran = append(ran, req)
			return &runner.Result{}, nil
		}),
		Notifier: ui.NewConsoleNotifier(&out, zerolog.Nop()),
	}
	dir := t.TempDir()

	require.NoError(t, openGenerated(context.Background(), deps, dir, false))
	assert.Empty(t, ran)
	assert.Contains(t, out.String(), "Open it with: "+project.EditorCLI+" "+dir)

	require.NoError(t, openGenerated(context.Background(), deps, dir, true))
	require.Len(t, ran, 1)
	assert.Equal(t, project.EditorCLI, ran[0].Command)
	assert.Equal(t, []string{dir}, ran[0].Args)
}
