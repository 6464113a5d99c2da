package config

import (
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Layout holds every well-known file and folder name used by a project.
// It is built once and passed by value, so a holder cannot change the names
// seen by anyone else.
type Layout struct {
	// ProjectFile is the project descriptor file name at the project root.
	ProjectFile string `yaml:"project_file" validate:"required"`

	// WorkbenchVersion is the descriptor schema version written on every update.
	WorkbenchVersion string `yaml:"workbench_version" validate:"required"`

	// ContainerMarkerFolder marks a container-hosted project when no descriptor exists.
	ContainerMarkerFolder string `yaml:"container_marker_folder" validate:"required"`

	// EditorSettingsFolder holds editor settings inside a device folder.
	EditorSettingsFolder string `yaml:"editor_settings_folder" validate:"required"`

	// DeviceFolder is the default device folder name under the project root.
	DeviceFolder string `yaml:"device_folder" validate:"required"`

	// BuildFolder is the compile output folder inside a device folder.
	BuildFolder string `yaml:"build_folder" validate:"required"`

	// SketchFile is the default Arduino sketch file.
	SketchFile string `yaml:"sketch_file" validate:"required"`

	// ArduinoConfigFile is the Arduino board configuration file.
	ArduinoConfigFile string `yaml:"arduino_config_file" validate:"required"`

	// CppPropertiesFile is the generated C/C++ IntelliSense configuration file.
	CppPropertiesFile string `yaml:"cpp_properties_file" validate:"required"`

	// CppPropertiesMacTemplate is the board template used on macOS and Linux.
	CppPropertiesMacTemplate string `yaml:"cpp_properties_mac_template" validate:"required"`

	// CppPropertiesWinTemplate is the board template used on Windows.
	CppPropertiesWinTemplate string `yaml:"cpp_properties_win_template" validate:"required"`

	// TemplateManifestFile lists the files of a template bundle.
	TemplateManifestFile string `yaml:"template_manifest_file" validate:"required"`

	// ArduinoEnvTemplate is the environment template bundle for Arduino devices.
	ArduinoEnvTemplate string `yaml:"arduino_env_template" validate:"required"`

	// ContainerEnvTemplate is the environment template bundle for container devices.
	ContainerEnvTemplate string `yaml:"container_env_template" validate:"required"`

	// CompileTaskName and UploadTaskName are the task labels written to tasks.json.
	CompileTaskName string `yaml:"compile_task_name" validate:"required"`
	UploadTaskName  string `yaml:"upload_task_name" validate:"required"`

	// HooksFolder holds Starlark pre-action hooks, relative to the project root.
	HooksFolder string `yaml:"hooks_folder" validate:"required"`

	// PoliciesFolder holds Rego policies, relative to the project root.
	PoliciesFolder string `yaml:"policies_folder" validate:"required"`

	// UtilitiesFolder is the code generator utilities folder.
	UtilitiesFolder string `yaml:"utilities_folder" validate:"required"`

	// CodegenToolFolder is the code generator install folder under the home directory.
	CodegenToolFolder string `yaml:"codegen_tool_folder" validate:"required"`
}

// DefaultLayout returns the standard project layout.
func DefaultLayout() Layout {
	return Layout{
		ProjectFile:              ".iotworkbenchproject",
		WorkbenchVersion:         "1.0.0",
		ContainerMarkerFolder:    ".devcontainer",
		EditorSettingsFolder:     ".vscode",
		DeviceFolder:             "Device",
		BuildFolder:              ".build",
		SketchFile:               "device.ino",
		ArduinoConfigFile:        "arduino.json",
		CppPropertiesFile:        "c_cpp_properties.json",
		CppPropertiesMacTemplate: "c_cpp_properties_macos.json",
		CppPropertiesWinTemplate: "c_cpp_properties_win32.json",
		TemplateManifestFile:     "template_files.json",
		ArduinoEnvTemplate:       "arduino_task",
		ContainerEnvTemplate:     "container_task",
		CompileTaskName:          "Arduino Compile",
		UploadTaskName:           "Arduino Upload",
		HooksFolder:              filepath.Join(".iotworkbench", "hooks"),
		PoliciesFolder:           filepath.Join(".iotworkbench", "policies"),
		UtilitiesFolder:          "utilities",
		CodegenToolFolder:        "iotpnp-codegen",
	}
}

// Validate checks that no name is empty.
func (l Layout) Validate() error {
	if err := validator.New().Struct(l); err != nil {
		return fmt.Errorf("invalid layout: %w", err)
	}
	return nil
}

// Merge returns a copy of l with the non-empty fields of o applied.
func (l Layout) Merge(o Layout) Layout {
	set := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	set(&l.ProjectFile, o.ProjectFile)
	set(&l.WorkbenchVersion, o.WorkbenchVersion)
	set(&l.ContainerMarkerFolder, o.ContainerMarkerFolder)
	set(&l.EditorSettingsFolder, o.EditorSettingsFolder)
	set(&l.DeviceFolder, o.DeviceFolder)
	set(&l.BuildFolder, o.BuildFolder)
	set(&l.SketchFile, o.SketchFile)
	set(&l.ArduinoConfigFile, o.ArduinoConfigFile)
	set(&l.CppPropertiesFile, o.CppPropertiesFile)
	set(&l.CppPropertiesMacTemplate, o.CppPropertiesMacTemplate)
	set(&l.CppPropertiesWinTemplate, o.CppPropertiesWinTemplate)
	set(&l.TemplateManifestFile, o.TemplateManifestFile)
	set(&l.ArduinoEnvTemplate, o.ArduinoEnvTemplate)
	set(&l.ContainerEnvTemplate, o.ContainerEnvTemplate)
	set(&l.CompileTaskName, o.CompileTaskName)
	set(&l.UploadTaskName, o.UploadTaskName)
	set(&l.HooksFolder, o.HooksFolder)
	set(&l.PoliciesFolder, o.PoliciesFolder)
	set(&l.UtilitiesFolder, o.UtilitiesFolder)
	set(&l.CodegenToolFolder, o.CodegenToolFolder)
	return l
}
