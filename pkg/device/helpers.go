package device

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/iotworkbench/iotwb/pkg/config"
	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/templates"
	"github.com/tidwall/jsonc"
)

// ArduinoConfig is the content of the device's arduino.json.
type ArduinoConfig struct {
	// Board is the fully qualified board name.
	Board string `json:"board"`

	// Port is the serial port used for uploads.
	Port string `json:"port"`

	// Sketch is the main sketch file, relative to the device folder.
	Sketch string `json:"sketch"`

	// Output is the build output folder, relative to the device folder.
	Output string `json:"output"`
}

func arduinoConfigPath(deviceFolder string, layout config.Layout) string {
	return filepath.Join(deviceFolder, layout.EditorSettingsFolder, layout.ArduinoConfigFile)
}

// ReadArduinoConfig reads arduino.json from the device's editor settings folder.
func ReadArduinoConfig(deviceFolder string, layout config.Layout) (*ArduinoConfig, error) {
	data, err := os.ReadFile(arduinoConfigPath(deviceFolder, layout))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", layout.ArduinoConfigFile, err)
	}
	var cfg ArduinoConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", layout.ArduinoConfigFile, err)
	}
	return &cfg, nil
}

// WriteArduinoConfig writes arduino.json into the device's editor settings folder.
func WriteArduinoConfig(deviceFolder string, layout config.Layout, cfg *ArduinoConfig) error {
	path := arduinoConfigPath(deviceFolder, layout)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", layout.EditorSettingsFolder, err)
	}
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", layout.ArduinoConfigFile, err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// CreateCore scaffolds a new device: it writes files into the device folder,
// generates the editor include path file and configures the device
// environment. The device folder must already exist.
func CreateCore(ctx context.Context, dev engine.Device, opts Options, board Board, files []templates.TemplateFileInfo) (bool, error) {
	opts = opts.withDefaults()
	folder := dev.DeviceFolder()
	if !isDir(folder) {
		return false, engine.NewInvariantError(msgMissingTemplate, nil)
	}
	if board == nil {
		return false, engine.NewInvariantError(msgInvalidBoard, nil)
	}

	if err := templates.GenerateAll(folder, files); err != nil {
		return false, engine.NewOperationalError("Generate template files failed", err)
	}

	if err := GenerateCppPropertiesFile(opts, folder, board); err != nil {
		return false, err
	}

	return dev.ConfigDeviceEnvironment(ctx, folder, engine.ScaffoldLocal)
}

// GenerateCppPropertiesFile writes the editor include path file for board
// unless it already exists. Windows gets the board's win32 template with the
// Arduino data folder and board version substituted; other platforms get the
// macOS template as is.
func GenerateCppPropertiesFile(opts Options, deviceFolder string, board Board) error {
	opts = opts.withDefaults()
	layout := opts.Layout
	settingsFolder := filepath.Join(deviceFolder, layout.EditorSettingsFolder)
	target := filepath.Join(settingsFolder, layout.CppPropertiesFile)

	if _, err := os.Stat(target); err == nil {
		return nil
	}

	if err := generateCppProperties(opts, settingsFolder, target, board); err != nil {
		return engine.NewOperationalError("Create cpp properties file failed", err)
	}
	return nil
}

func generateCppProperties(opts Options, settingsFolder, target string, board Board) error {
	if err := os.MkdirAll(settingsFolder, 0o755); err != nil {
		return err
	}

	var content string
	if opts.GOOS == "windows" {
		data, err := opts.Templates.ReadFile(board.TemplateFolder(), opts.Layout.CppPropertiesWinTemplate)
		if err != nil {
			return err
		}
		localAppData := strings.Join([]string{opts.HomeDir, "AppData", "Local"}, `\`)
		content = templates.ReplaceTokens(string(data), map[string]string{
			"ROOTPATH": strings.ReplaceAll(localAppData, `\`, `\\`),
			"VERSION":  board.CppPropertiesVersion(),
		})
	} else {
		data, err := opts.Templates.ReadFile(board.TemplateFolder(), opts.Layout.CppPropertiesMacTemplate)
		if err != nil {
			return err
		}
		content = string(data)
	}

	return os.WriteFile(target, []byte(content), 0o644)
}

// ConfigDeviceEnvironment writes the files of the bundle into deviceDir,
// asking once before overwriting existing files. It returns false when the
// user declines.
func ConfigDeviceEnvironment(ctx context.Context, opts Options, deviceDir, bundle string) (bool, error) {
	if deviceDir == "" {
		return false, engine.NewInvariantError(msgMissingDevicePath, nil)
	}

	b, err := opts.Templates.Bundle(bundle)
	if err != nil {
		return false, engine.NewOperationalError("Failed to load environment templates", err)
	}

	ok, err := templates.AskToOverwrite(ctx, opts.Prompter, deviceDir, b.Files)
	if err != nil || !ok {
		return false, err
	}

	if err := templates.GenerateAll(deviceDir, b.Files); err != nil {
		return false, engine.NewOperationalError("Generate environment files failed", err)
	}
	return true, nil
}

// CrcInfo describes a firmware image.
type CrcInfo struct {
	// Path is the firmware file.
	Path string `json:"fwPath"`

	// Crc is the CRC-32 (IEEE) checksum in hex.
	Crc string `json:"fwPackageCheckValue"`

	// Size is the file size in bytes.
	Size int64 `json:"fwSize"`
}

// Report formats the information block printed after generating a CRC.
func (c *CrcInfo) Report() string {
	var b strings.Builder
	b.WriteString("========== CRC Information ==========\n\n")
	fmt.Fprintf(&b, "fwPath: %s\n", c.Path)
	fmt.Fprintf(&b, "fwPackageCheckValue: %s\n", c.Crc)
	fmt.Fprintf(&b, "fwSize: %d\n", c.Size)
	b.WriteString("\n======================================\n")
	return b.String()
}

// GenerateCrc computes the checksum of the firmware image in the device's
// build folder. With several images the user picks one.
func GenerateCrc(ctx context.Context, opts Options, deviceFolder string) (*CrcInfo, error) {
	buildFolder := filepath.Join(deviceFolder, opts.Layout.BuildFolder)
	binFiles, err := filepath.Glob(filepath.Join(buildFolder, "*.bin"))
	if err != nil {
		return nil, fmt.Errorf("failed to list build output: %w", err)
	}
	if len(binFiles) == 0 {
		return nil, engine.NewPrerequisiteError("No bin file found. Please run the command of Device Compile first.", nil)
	}
	sort.Strings(binFiles)

	binFile := binFiles[0]
	if len(binFiles) > 1 {
		if opts.Prompter == nil {
			return nil, engine.NewInvariantError("no prompter configured", nil)
		}
		items := make([]engine.PickItem, len(binFiles))
		for i, f := range binFiles {
			items[i] = engine.PickItem{Label: filepath.Base(f), Description: f}
		}
		idx, ok, err := opts.Prompter.Pick(ctx, engine.PickRequest{Placeholder: "Select bin file", Items: items})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, engine.NewCancelOperationError("Bin file selection cancelled.")
		}
		binFile = binFiles[idx]
	}

	data, err := os.ReadFile(binFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", binFile, err)
	}

	return &CrcInfo{
		Path: binFile,
		Crc:  fmt.Sprintf("0x%08x", crc32.ChecksumIEEE(data)),
		Size: int64(len(data)),
	}, nil
}
