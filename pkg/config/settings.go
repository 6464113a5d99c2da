package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings holds the workbench settings shared by every command.
type Settings struct {
	// ArduinoCLI is the arduino-cli executable used to compile and upload sketches.
	ArduinoCLI string `yaml:"arduino_cli" validate:"required"`

	// DockerCLI is the docker executable used for container projects.
	DockerCLI string `yaml:"docker_cli" validate:"required"`

	// AzureCLI is the az executable used for cloud sign-in, provisioning and deployment.
	AzureCLI string `yaml:"azure_cli" validate:"required"`

	// CodegenDir is the code generator install folder.
	CodegenDir string `yaml:"codegen_dir" validate:"required"`

	// ResourceGroup is the default cloud resource group. Prompted when empty.
	ResourceGroup string `yaml:"resource_group,omitempty"`

	// Journal is the sqlite journal path. "off" disables journaling.
	Journal string `yaml:"journal" validate:"required"`

	// MetricsFile, if set, receives Prometheus metrics in text format after each command.
	MetricsFile string `yaml:"metrics_file,omitempty"`

	// Tracing configures span export.
	Tracing TracingSettings `yaml:"tracing"`

	// AutoApprove answers every confirmation with yes.
	AutoApprove bool `yaml:"auto_approve"`

	// HookTimeout bounds pre-action hook scripts.
	HookTimeout time.Duration `yaml:"hook_timeout" validate:"gt=0"`

	// CommandTimeout bounds external tool invocations. Zero means no limit.
	CommandTimeout time.Duration `yaml:"command_timeout" validate:"gte=0"`

	// Layout overrides project file and folder names.
	Layout Layout `yaml:"layout"`
}

// TracingSettings configures span export.
type TracingSettings struct {
	// Exporter is none, stdout or otlp.
	Exporter string `yaml:"exporter" validate:"oneof=none stdout otlp"`

	// Endpoint is the OTLP gRPC endpoint.
	Endpoint string `yaml:"endpoint,omitempty" validate:"required_if=Exporter otlp"`

	// SampleRate is the trace sampling ratio.
	SampleRate float64 `yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// Environment variables that override settings.
const (
	EnvConfig         = "IOTWB_CONFIG"
	EnvArduinoCLI     = "IOTWB_ARDUINO_CLI"
	EnvDockerCLI      = "IOTWB_DOCKER_CLI"
	EnvAzureCLI       = "IOTWB_AZ_CLI"
	EnvCodegenDir     = "IOTWB_CODEGEN_DIR"
	EnvResourceGroup  = "IOTWB_RESOURCE_GROUP"
	EnvJournal        = "IOTWB_JOURNAL"
	EnvMetricsFile    = "IOTWB_METRICS_FILE"
	EnvTracing        = "IOTWB_TRACING"
	EnvTracingAddress = "IOTWB_TRACING_ENDPOINT"
	EnvAutoApprove    = "IOTWB_AUTO_APPROVE"
)

// JournalDisabled turns off the operation journal.
const JournalDisabled = "off"

// HomeDir returns the workbench state folder, ~/.iotwb.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".iotwb")
}

// DefaultSettingsPath returns the settings file used when none is given.
func DefaultSettingsPath() string {
	return filepath.Join(HomeDir(), "settings.yaml")
}

// DefaultSettings returns settings with every default applied.
func DefaultSettings() *Settings {
	layout := DefaultLayout()
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return &Settings{
		ArduinoCLI:  "arduino-cli",
		DockerCLI:   "docker",
		AzureCLI:    "az",
		CodegenDir:  filepath.Join(home, layout.CodegenToolFolder),
		Journal:     filepath.Join(HomeDir(), "journal.db"),
		Tracing:     TracingSettings{Exporter: "none", SampleRate: 1.0},
		HookTimeout: 10 * time.Second,
		Layout:      layout,
	}
}

// SettingsPath resolves the settings file: path, then $IOTWB_CONFIG, then
// ~/.iotwb/settings.yaml.
func SettingsPath(path string) string {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		path = DefaultSettingsPath()
	}
	return path
}

// LoadSettings loads settings from path, falling back to $IOTWB_CONFIG and
// then ~/.iotwb/settings.yaml. A missing file is not an error. A .env file in
// the working directory and IOTWB_* variables override file values.
func LoadSettings(path string) (*Settings, error) {
	_ = godotenv.Load()

	s := DefaultSettings()
	path = SettingsPath(path)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
		}
	}

	s.applyEnv()
	s.Layout = DefaultLayout().Merge(s.Layout)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the settings.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// Save writes the settings to path as YAML.
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings folder: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings %s: %w", path, err)
	}
	return nil
}

// JournalEnabled returns true unless the journal is turned off.
func (s *Settings) JournalEnabled() bool {
	return !strings.EqualFold(s.Journal, JournalDisabled)
}

func (s *Settings) applyEnv() {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&s.ArduinoCLI, EnvArduinoCLI)
	override(&s.DockerCLI, EnvDockerCLI)
	override(&s.AzureCLI, EnvAzureCLI)
	override(&s.CodegenDir, EnvCodegenDir)
	override(&s.ResourceGroup, EnvResourceGroup)
	override(&s.Journal, EnvJournal)
	override(&s.MetricsFile, EnvMetricsFile)
	override(&s.Tracing.Exporter, EnvTracing)
	override(&s.Tracing.Endpoint, EnvTracingAddress)

	if v := strings.TrimSpace(os.Getenv(EnvAutoApprove)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			s.AutoApprove = b
		}
	}
}
