package engine

import (
	"fmt"
)

// OutcomeState is the result state recorded by an OperationOutcome.
type OutcomeState string

const (
	// OutcomeNull indicates no result has been assigned yet.
	OutcomeNull OutcomeState = "Null"

	// OutcomeSucceeded indicates the operation completed successfully.
	OutcomeSucceeded OutcomeState = "Succeeded"

	// OutcomeFailed indicates the operation failed.
	OutcomeFailed OutcomeState = "Failed"

	// OutcomeCanceled indicates the user cancelled the operation.
	OutcomeCanceled OutcomeState = "Canceled"
)

// IsTerminal returns true if a result has been assigned.
func (s OutcomeState) IsTerminal() bool {
	return s == OutcomeSucceeded || s == OutcomeFailed || s == OutcomeCanceled
}

// Validate checks if the outcome state is valid.
func (s OutcomeState) Validate() error {
	switch s {
	case OutcomeNull, OutcomeSucceeded, OutcomeFailed, OutcomeCanceled:
		return nil
	default:
		return fmt.Errorf("invalid outcome state: %s", s)
	}
}

// ProjectHostType identifies where a project is hosted and therefore which
// project implementation may load it.
type ProjectHostType string

const (
	// HostTypeUnknown indicates the host type could not be determined.
	HostTypeUnknown ProjectHostType = "Unknown"

	// HostTypeWorkspace indicates a project built on the local workspace (Arduino boards).
	HostTypeWorkspace ProjectHostType = "Workspace"

	// HostTypeContainer indicates a project built inside a container (embedded Linux).
	HostTypeContainer ProjectHostType = "Container"
)

// Validate checks if the host type is valid.
func (h ProjectHostType) Validate() error {
	switch h {
	case HostTypeUnknown, HostTypeWorkspace, HostTypeContainer:
		return nil
	default:
		return fmt.Errorf("invalid project host type: %s", h)
	}
}

// ParseProjectHostType converts a descriptor value to a ProjectHostType.
func ParseProjectHostType(value string) (ProjectHostType, error) {
	h := ProjectHostType(value)
	if err := h.Validate(); err != nil {
		return HostTypeUnknown, err
	}
	return h, nil
}

// ComponentType tags the kind of a project component.
type ComponentType string

const (
	// ComponentTypeDevice is a physical or virtual device target.
	ComponentTypeDevice ComponentType = "Device"

	// ComponentTypeIoTHub is a cloud IoT hub.
	ComponentTypeIoTHub ComponentType = "IoTHub"

	// ComponentTypeIoTHubDevice is a device identity registered in an IoT hub.
	ComponentTypeIoTHubDevice ComponentType = "IoTHubDevice"

	// ComponentTypeAzureFunctions is a serverless function app.
	ComponentTypeAzureFunctions ComponentType = "AzureFunctions"

	// ComponentTypeStreamAnalyticsJob is a stream analytics job.
	ComponentTypeStreamAnalyticsJob ComponentType = "StreamAnalyticsJob"

	// ComponentTypeCosmosDB is a Cosmos DB account.
	ComponentTypeCosmosDB ComponentType = "CosmosDB"
)

// IsCloud returns true for component types backed by a cloud resource.
func (c ComponentType) IsCloud() bool {
	return c != ComponentTypeDevice && c.Validate() == nil
}

// Validate checks if the component type is valid.
func (c ComponentType) Validate() error {
	switch c {
	case ComponentTypeDevice, ComponentTypeIoTHub, ComponentTypeIoTHubDevice,
		ComponentTypeAzureFunctions, ComponentTypeStreamAnalyticsJob, ComponentTypeCosmosDB:
		return nil
	default:
		return fmt.Errorf("invalid component type: %s", c)
	}
}

// DeviceType identifies a board family.
type DeviceType int

const (
	// DeviceTypeMXChipAZ3166 is the MXChip IoT DevKit.
	DeviceTypeMXChipAZ3166 DeviceType = 1

	// DeviceTypeIoTButton is the IoT button.
	DeviceTypeIoTButton DeviceType = 2

	// DeviceTypeEsp32 is an ESP32 board.
	DeviceTypeEsp32 DeviceType = 3

	// DeviceTypeRaspberryPi is a Raspberry Pi running embedded Linux.
	DeviceTypeRaspberryPi DeviceType = 4
)

var deviceTypeNames = map[DeviceType]string{
	DeviceTypeMXChipAZ3166: "MXChip_AZ3166",
	DeviceTypeIoTButton:    "IoT_Button",
	DeviceTypeEsp32:        "Esp32",
	DeviceTypeRaspberryPi:  "Raspberry_Pi",
}

// String returns the board family name.
func (d DeviceType) String() string {
	if name, ok := deviceTypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DeviceType(%d)", int(d))
}

// Validate checks if the device type is valid.
func (d DeviceType) Validate() error {
	if _, ok := deviceTypeNames[d]; !ok {
		return fmt.Errorf("invalid device type: %d", int(d))
	}
	return nil
}

// ParseDeviceType converts a board family name to a DeviceType.
func ParseDeviceType(name string) (DeviceType, error) {
	for d, n := range deviceTypeNames {
		if n == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid device type: %s", name)
}

// ScaffoldType selects how scaffolded files are written.
type ScaffoldType string

const (
	// ScaffoldLocal writes files directly, used while creating a project.
	ScaffoldLocal ScaffoldType = "local"

	// ScaffoldWorkspace writes files into an already opened project.
	ScaffoldWorkspace ScaffoldType = "workspace"
)

// Validate checks if the scaffold type is valid.
func (s ScaffoldType) Validate() error {
	switch s {
	case ScaffoldLocal, ScaffoldWorkspace:
		return nil
	default:
		return fmt.Errorf("invalid scaffold type: %s", s)
	}
}

// Phase names a project lifecycle phase.
type Phase string

const (
	PhaseCompile   Phase = "compile"
	PhaseUpload    Phase = "upload"
	PhaseProvision Phase = "provision"
	PhaseDeploy    Phase = "deploy"
	PhaseConfigure Phase = "configure"
	PhaseSettings  Phase = "settings"
)
