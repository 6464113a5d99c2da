package codegen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/iotworkbench/iotwb/pkg/config"
	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/runner"
	"github.com/iotworkbench/iotwb/pkg/templates"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	requests []runner.Request
	exitCode int
}

func (r *recordingRunner) Run(_ context.Context, req runner.Request) (*runner.Result, error) {
	r.requests = append(r.requests, req)
	return &runner.Result{ExitCode: r.exitCode}, nil
}

func (r *recordingRunner) Available(string) bool { return true }

func newGenerator(t *testing.T, r runner.Runner, goos string) *Generator {
	t.Helper()
	store, err := templates.NewStore(templates.Embedded(), zerolog.Nop())
	require.NoError(t, err)
	return NewGenerator(r, store, config.DefaultLayout(), "/opt/iotpnp-codegen", goos, zerolog.Nop())
}

func TestCommand(t *testing.T) {
	assert.Equal(t, "./PnPCodeGen", newGenerator(t, &recordingRunner{}, "linux").Command())
	assert.Equal(t, "PnPCodeGen.exe", newGenerator(t, &recordingRunner{}, "windows").Command())
}

func TestParseProvisionType(t *testing.T) {
	p, err := ParseProvisionType("iotcSasKey")
	require.NoError(t, err)
	assert.Equal(t, ProvisionIoTCSasKey, p)

	_, err = ParseProvisionType("x509")
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}

func TestGenerateCode(t *testing.T) {
	target := filepath.Join(t.TempDir(), "thermostat")
	utilities := filepath.Join(target, "utilities")
	require.NoError(t, os.MkdirAll(utilities, 0o755))
	for _, name := range []string{"digitaltwin_client.c", "digitaltwin_client.h"} {
		require.NoError(t, os.WriteFile(filepath.Join(utilities, name), nil, 0o644))
	}

	r := &recordingRunner{}
	ok, err := newGenerator(t, r, "linux").GenerateCode(context.Background(), Request{
		TargetPath:       target,
		ModelFile:        "/models/thermostat.capabilitymodel.json",
		ConnectionString: "HostName=hub;DeviceId=d;SharedAccessKey=k",
		Provision:        ProvisionConnectionString,
	})
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, r.requests, 1)
	assert.Equal(t, "./PnPCodeGen", r.requests[0].Command)
	assert.Equal(t, "/opt/iotpnp-codegen", r.requests[0].Dir)
	assert.Equal(t, []string{
		"scaffold",
		"--jsonldUri", "/models/thermostat.capabilitymodel.json",
		"--language", "ansic",
		"--output", target,
		"--connectionString", "HostName=hub;DeviceId=d;SharedAccessKey=k",
	}, r.requests[0].Args)

	vcxproj, err := os.ReadFile(filepath.Join(target, "iotproject.vcxproj"))
	require.NoError(t, err)
	assert.Contains(t, string(vcxproj), "    <ClInclude Include=\"utilities\\digitaltwin_client.c\" />\r\n")
	assert.Contains(t, string(vcxproj), "    <ClInclude Include=\"utilities\\digitaltwin_client.h\" />\r\n")
	assert.NotContains(t, string(vcxproj), "{UTILITIESFILES_")
	assert.Contains(t, string(vcxproj), "{PROJECT_NAME}")

	readme, err := os.ReadFile(filepath.Join(target, "ReadMe.md"))
	require.NoError(t, err)
	assert.Contains(t, string(readme), "thermostat")
	assert.NotContains(t, string(readme), "{PROJECT_NAME}")
}

func TestGenerateCodeToolFailure(t *testing.T) {
	target := t.TempDir()
	ok, err := newGenerator(t, &recordingRunner{exitCode: 1}, "linux").GenerateCode(context.Background(), Request{
		TargetPath: target,
		Provision:  ProvisionIoTCSasKey,
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoFileExists(t, filepath.Join(target, "main.c"))
}

func TestGenerateCodeUnsupportedProvision(t *testing.T) {
	r := &recordingRunner{}
	_, err := newGenerator(t, r, "linux").GenerateCode(context.Background(), Request{
		TargetPath: t.TempDir(),
		Provision:  "x509",
	})
	require.Error(t, err)
	assert.Equal(t, msgUnsupportedProvision, engine.UserMessage(err))
	assert.Empty(t, r.requests)
}

func TestCheckPrerequisites(t *testing.T) {
	store, err := templates.NewStore(templates.Embedded(), zerolog.Nop())
	require.NoError(t, err)
	dir := t.TempDir()
	g := NewGenerator(&recordingRunner{}, store, config.DefaultLayout(), dir, "linux", zerolog.Nop())

	ok, err := g.CheckPrerequisites()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "PnPCodeGen"), []byte("#!/bin/sh\n"), 0o755))
	ok, err = g.CheckPrerequisites()
	require.NoError(t, err)
	assert.True(t, ok)
}
