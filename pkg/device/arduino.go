package device

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/runner"
	"github.com/rs/zerolog"
)

const msgArduinoConfigured = "Arduino device configuration done."

// ArduinoDevice is a board programmed through arduino-cli.
type ArduinoDevice struct {
	board  Board
	folder string
	opts   Options
	logger zerolog.Logger
}

var _ engine.Device = (*ArduinoDevice)(nil)

// NewArduinoDevice creates an Arduino device rooted at folder.
func NewArduinoDevice(folder string, board Board, opts Options) *ArduinoDevice {
	opts = opts.withDefaults()
	return &ArduinoDevice{
		board:  board,
		folder: folder,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "device").Str("board", board.BoardID()).Logger(),
	}
}

// Name implements engine.Component.
func (d *ArduinoDevice) Name() string { return d.board.Name() }

// ComponentType implements engine.Component.
func (d *ArduinoDevice) ComponentType() engine.ComponentType { return engine.ComponentTypeDevice }

// DeviceType implements engine.Device.
func (d *ArduinoDevice) DeviceType() engine.DeviceType { return d.board.DeviceType() }

// DeviceFolder implements engine.Device.
func (d *ArduinoDevice) DeviceFolder() string { return d.folder }

// Board returns the device's board.
func (d *ArduinoDevice) Board() Board { return d.board }

// CheckPrerequisites reports whether arduino-cli can be found. Both compile
// and upload run through it.
func (d *ArduinoDevice) CheckPrerequisites(ctx context.Context, phase engine.Phase) (bool, error) {
	if !d.opts.Runner.Available(d.opts.ArduinoCLI) {
		d.logger.Warn().Str("cli", d.opts.ArduinoCLI).
			Msg("arduino-cli is required for the current project. Install it or set IOTWB_ARDUINO_CLI.")
		return false, nil
	}
	return true, nil
}

// Create scaffolds the board's sketch and editor files into the device folder.
func (d *ArduinoDevice) Create(ctx context.Context) (bool, error) {
	bundle, err := d.opts.Templates.Bundle(d.board.TemplateFolder())
	if err != nil {
		return false, engine.NewInvariantError(msgInvalidBoard, err)
	}
	return CreateCore(ctx, d, d.opts, d.board, bundle.Files)
}

// Load checks that the device folder exists.
func (d *ArduinoDevice) Load() error {
	return RequireDeviceFolder(d.folder)
}

// Compile runs the pre-compile hook, then arduino-cli compile.
func (d *ArduinoDevice) Compile(ctx context.Context) (bool, error) {
	if err := RequireDeviceFolder(d.folder); err != nil {
		return false, err
	}
	if ok, err := d.board.PreCompile(ctx, d.folder); err != nil || !ok {
		if err == nil {
			d.logger.Info().Msg("Compile skipped by pre-compile hook")
		}
		return false, err
	}

	cfg, err := d.arduinoConfig()
	if err != nil {
		return false, err
	}

	return d.run(ctx, "compile",
		"compile",
		"--fqbn", cfg.Board,
		"--output-dir", filepath.Join(d.folder, cfg.Output),
		filepath.Join(d.folder, cfg.Sketch),
	)
}

// Upload runs the pre-upload hook, then arduino-cli upload.
func (d *ArduinoDevice) Upload(ctx context.Context) (bool, error) {
	if err := RequireDeviceFolder(d.folder); err != nil {
		return false, err
	}
	if ok, err := d.board.PreUpload(ctx, d.folder); err != nil || !ok {
		if err == nil {
			d.logger.Info().Msg("Upload skipped by pre-upload hook")
		}
		return false, err
	}

	cfg, err := d.arduinoConfig()
	if err != nil {
		return false, err
	}

	args := []string{"upload", "--fqbn", cfg.Board, "--input-dir", filepath.Join(d.folder, cfg.Output)}
	if cfg.Port != "" {
		args = append(args, "--port", cfg.Port)
	}
	args = append(args, filepath.Join(d.folder, cfg.Sketch))

	return d.run(ctx, "upload", args...)
}

func (d *ArduinoDevice) run(ctx context.Context, op string, args ...string) (bool, error) {
	res, err := d.opts.Runner.Run(ctx, runner.Request{
		Command: d.opts.ArduinoCLI,
		Args:    args,
		Dir:     d.folder,
	})
	if err != nil {
		return false, engine.NewOperationalError(fmt.Sprintf("Failed to run %s", d.opts.ArduinoCLI), err).
			WithComponent(d.Name()).WithOperation(op)
	}
	if !res.Succeeded() {
		d.logger.Error().Str("operation", op).Int("exit_code", res.ExitCode).Msg("arduino-cli failed")
		return false, nil
	}
	return true, nil
}

// arduinoConfig reads arduino.json, filling blanks from the board.
func (d *ArduinoDevice) arduinoConfig() (*ArduinoConfig, error) {
	cfg, err := ReadArduinoConfig(d.folder, d.opts.Layout)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, engine.NewValidationError("Invalid Arduino configuration", err)
		}
		cfg = &ArduinoConfig{}
	}
	if cfg.Board == "" {
		cfg.Board = d.board.FQBN()
	}
	if cfg.Sketch == "" {
		cfg.Sketch = d.opts.Layout.SketchFile
	}
	if cfg.Output == "" {
		cfg.Output = d.opts.Layout.BuildFolder
	}
	if cfg.Board == "" {
		return nil, engine.NewValidationError(fmt.Sprintf("No board configured for %s", d.Name()), nil)
	}
	return cfg, nil
}

// ConfigDeviceEnvironment writes the Arduino task files into the device folder.
func (d *ArduinoDevice) ConfigDeviceEnvironment(ctx context.Context, projectPath string, scaffold engine.ScaffoldType) (bool, error) {
	ok, err := ConfigDeviceEnvironment(ctx, d.opts, d.folder, d.opts.Layout.ArduinoEnvTemplate)
	if err != nil || !ok {
		return false, err
	}
	d.logger.Info().Str("scaffold", string(scaffold)).Msg(msgArduinoConfigured)
	return true, nil
}

const (
	settingPort = iota
	settingCrc
)

// ConfigDeviceSettings lets the user set the upload port or generate the
// firmware CRC.
func (d *ArduinoDevice) ConfigDeviceSettings(ctx context.Context) (bool, error) {
	if d.opts.Prompter == nil {
		return false, engine.NewInvariantError("no prompter configured", nil)
	}
	idx, ok, err := d.opts.Prompter.Pick(ctx, engine.PickRequest{
		Placeholder: "Select an option",
		Items: []engine.PickItem{
			settingPort: {Label: "Config upload port", Detail: "Set the serial port used for uploads"},
			settingCrc:  {Label: "Generate CRC", Detail: "Generate CRC for the compiled firmware"},
		},
	})
	if err != nil {
		return false, err
	}
	if !ok {
		return false, engine.NewCancelOperationError("Device setting type selection cancelled.")
	}

	switch idx {
	case settingPort:
		return d.configPort(ctx)
	case settingCrc:
		info, err := GenerateCrc(ctx, d.opts, d.folder)
		if err != nil {
			return false, err
		}
		fmt.Fprint(d.opts.Output, info.Report())
		d.logger.Info().Msg("Generate CRC succeeded.")
		return true, nil
	}
	return false, nil
}

func (d *ArduinoDevice) configPort(ctx context.Context) (bool, error) {
	cfg, err := d.arduinoConfig()
	if err != nil {
		return false, err
	}
	port, ok, err := d.opts.Prompter.Input(ctx, "Serial port", cfg.Port)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, engine.NewCancelOperationError("Serial port input cancelled.")
	}
	cfg.Port = port
	if err := WriteArduinoConfig(d.folder, d.opts.Layout, cfg); err != nil {
		return false, engine.NewOperationalError("Failed to save Arduino configuration", err)
	}
	return true, nil
}
