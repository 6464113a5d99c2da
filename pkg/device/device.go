// Package device implements the physical targets of an IoT project: Arduino
// boards built with arduino-cli and embedded Linux boards built in a
// container and pushed over SSH.
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/iotworkbench/iotwb/pkg/config"
	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/runner"
	"github.com/iotworkbench/iotwb/pkg/templates"
	"github.com/rs/zerolog"
)

const (
	msgMissingDevicePath = "Unable to find the project device path, please open the folder and initialize project again."
	msgMissingTemplate   = "Internal error: Couldn't find the template folder."
	msgInvalidBoard      = "Invalid / unsupported target platform"
)

// Hook script names looked up in the project's hooks folder.
const (
	PreCompileHook = "precompile.star"
	PreUploadHook  = "preupload.star"
)

// Options are the collaborators shared by all devices of a project.
type Options struct {
	// Layout holds file and folder names.
	Layout config.Layout

	// Runner executes external toolchains.
	Runner runner.Runner

	// Templates provides template bundles.
	Templates *templates.Store

	// Hooks evaluates pre-action hook scripts. Nil disables hooks.
	Hooks *config.HookEvaluator

	// Prompter asks the user questions.
	Prompter engine.Prompter

	// Output receives reports such as CRC information.
	Output io.Writer

	// Logger is the parent logger.
	Logger zerolog.Logger

	// ArduinoCLI is the arduino-cli executable.
	ArduinoCLI string

	// DockerCLI is the docker executable.
	DockerCLI string

	// GOOS selects platform specific templates. Defaults to runtime.GOOS.
	GOOS string

	// HomeDir is the user's home folder. Defaults to os.UserHomeDir.
	HomeDir string
}

func (o Options) withDefaults() Options {
	if o.ArduinoCLI == "" {
		o.ArduinoCLI = "arduino-cli"
	}
	if o.DockerCLI == "" {
		o.DockerCLI = "docker"
	}
	if o.GOOS == "" {
		o.GOOS = runtime.GOOS
	}
	if o.HomeDir == "" {
		o.HomeDir, _ = os.UserHomeDir()
	}
	if o.Output == nil {
		o.Output = io.Discard
	}
	return o
}

// Board describes the board specific parts of an Arduino device.
type Board interface {
	// BoardID returns the catalog identifier.
	BoardID() string

	// Name returns the display name.
	Name() string

	// DeviceType returns the board family.
	DeviceType() engine.DeviceType

	// FQBN returns the fully qualified board name.
	FQBN() string

	// TemplateFolder names the board's template bundle.
	TemplateFolder() string

	// CppPropertiesVersion is substituted for {VERSION} in editor include paths.
	CppPropertiesVersion() string

	// PreCompile runs before compiling. false skips the compile.
	PreCompile(ctx context.Context, deviceFolder string) (bool, error)

	// PreUpload runs before uploading. false skips the upload.
	PreUpload(ctx context.Context, deviceFolder string) (bool, error)
}

// CatalogBoard is a Board backed by a catalog entry. Its pre-action hooks run
// the project's hook scripts when present and the catalog's inline scripts
// otherwise.
type CatalogBoard struct {
	spec       BoardSpec
	deviceType engine.DeviceType
	hooks      *config.HookEvaluator
	hooksDir   string
	layout     config.Layout
}

var _ Board = (*CatalogBoard)(nil)

// NewCatalogBoard creates a board for spec. hooksDir may be empty.
func NewCatalogBoard(spec BoardSpec, layout config.Layout, hooks *config.HookEvaluator, hooksDir string) (*CatalogBoard, error) {
	dt, err := spec.Type()
	if err != nil {
		return nil, engine.NewInvariantError(msgInvalidBoard, err)
	}
	return &CatalogBoard{spec: spec, deviceType: dt, hooks: hooks, hooksDir: hooksDir, layout: layout}, nil
}

func (b *CatalogBoard) BoardID() string { return b.spec.ID }
func (b *CatalogBoard) Name() string { return b.spec.Name }
func (b *CatalogBoard) DeviceType() engine.DeviceType { return b.deviceType }
func (b *CatalogBoard) FQBN() string { return b.spec.FQBN }
func (b *CatalogBoard) TemplateFolder() string { return b.spec.TemplateFolder }
func (b *CatalogBoard) CppPropertiesVersion() string { return b.spec.Version }

// PreCompile implements Board.
func (b *CatalogBoard) PreCompile(ctx context.Context, deviceFolder string) (bool, error) {
	return b.runHook(ctx, PreCompileHook, b.spec.PreCompile, string(engine.PhaseCompile), deviceFolder)
}

// PreUpload implements Board.
func (b *CatalogBoard) PreUpload(ctx context.Context, deviceFolder string) (bool, error) {
	return b.runHook(ctx, PreUploadHook, b.spec.PreUpload, string(engine.PhaseUpload), deviceFolder)
}

func (b *CatalogBoard) runHook(ctx context.Context, name, inline, phase, deviceFolder string) (bool, error) {
	if b.hooks == nil {
		return true, nil
	}

	script := inline
	if b.hooksDir != "" {
		data, err := os.ReadFile(filepath.Join(b.hooksDir, name))
		switch {
		case err == nil:
			script = string(data)
		case !errors.Is(err, fs.ErrNotExist):
			return false, fmt.Errorf("failed to read hook %s: %w", name, err)
		}
	}
	if script == "" {
		return true, nil
	}

	input := map[string]interface{}{
		"board":         b.spec.ID,
		"fqbn":          b.spec.FQBN,
		"phase":         phase,
		"device_folder": deviceFolder,
		"port":          "",
	}
	if cfg, err := ReadArduinoConfig(deviceFolder, b.layout); err == nil {
		input["port"] = cfg.Port
	}

	res, err := b.hooks.Evaluate(ctx, name, script, input)
	if err != nil {
		return false, engine.NewOperationalError(fmt.Sprintf("Hook %s failed.", name), err)
	}
	return res.Proceed, nil
}

// RequireDeviceFolder returns an invariant error when folder does not exist.
func RequireDeviceFolder(folder string) error {
	if folder == "" || !isDir(folder) {
		return engine.NewInvariantError(msgMissingDevicePath, nil)
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
