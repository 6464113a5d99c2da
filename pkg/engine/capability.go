package engine

import (
	"context"
	"strings"
)

// Component is a named member of a project. It may implement any of the
// capability interfaces below.
type Component interface {
	// Name returns the component name shown in progress messages.
	Name() string

	// ComponentType returns the component type tag.
	ComponentType() ComponentType
}

// Compilable is implemented by components that can build code.
type Compilable interface {
	Component

	// CheckPrerequisites reports whether the component is ready for phase.
	// Components implementing several capabilities check only what phase
	// needs. false means "do not proceed" and is not an error.
	CheckPrerequisites(ctx context.Context, phase Phase) (bool, error)

	// Compile builds the component.
	Compile(ctx context.Context) (bool, error)
}

// Uploadable is implemented by components that can upload a build to a target.
type Uploadable interface {
	Component
	CheckPrerequisites(ctx context.Context, phase Phase) (bool, error)
	Upload(ctx context.Context) (bool, error)
}

// Provisionable is implemented by components backed by a cloud resource that
// must be created before use.
type Provisionable interface {
	Component
	CheckPrerequisites(ctx context.Context, phase Phase) (bool, error)

	// Provision creates the resource using the shared cloud session.
	Provision(ctx context.Context, session *CloudSession) (bool, error)
}

// Deployable is implemented by components that push code to a cloud resource.
type Deployable interface {
	Component
	CheckPrerequisites(ctx context.Context, phase Phase) (bool, error)
	Deploy(ctx context.Context, session *CloudSession) (bool, error)
}

// Device is a component representing one physical or virtual target.
type Device interface {
	Compilable
	Uploadable

	// DeviceType returns the board family.
	DeviceType() DeviceType

	// DeviceFolder returns the absolute path of the device folder.
	DeviceFolder() string

	// ConfigDeviceSettings runs interactive device settings configuration.
	ConfigDeviceSettings(ctx context.Context) (bool, error)

	// ConfigDeviceEnvironment scaffolds editor and task files into projectPath.
	ConfigDeviceEnvironment(ctx context.Context, projectPath string, scaffold ScaffoldType) (bool, error)
}

// Capability is a single optional component operation.
type Capability uint8

const (
	CapabilityCompile Capability = 1 << iota
	CapabilityUpload
	CapabilityProvision
	CapabilityDeploy
)

// Capabilities is the set of capabilities a component implements.
type Capabilities uint8

// Has returns true if c is in the set.
func (s Capabilities) Has(c Capability) bool {
	return uint8(s)&uint8(c) != 0
}

// String lists the capabilities in the set.
func (s Capabilities) String() string {
	names := make([]string, 0, 4)
	if s.Has(CapabilityCompile) {
		names = append(names, "compile")
	}
	if s.Has(CapabilityUpload) {
		names = append(names, "upload")
	}
	if s.Has(CapabilityProvision) {
		names = append(names, "provision")
	}
	if s.Has(CapabilityDeploy) {
		names = append(names, "deploy")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// CapabilitiesOf resolves which capability interfaces c implements.
func CapabilitiesOf(c Component) Capabilities {
	var s Capabilities
	if _, ok := c.(Compilable); ok {
		s |= Capabilities(CapabilityCompile)
	}
	if _, ok := c.(Uploadable); ok {
		s |= Capabilities(CapabilityUpload)
	}
	if _, ok := c.(Provisionable); ok {
		s |= Capabilities(CapabilityProvision)
	}
	if _, ok := c.(Deployable); ok {
		s |= Capabilities(CapabilityDeploy)
	}
	return s
}

// registration binds a component to its resolved capability views.
type registration struct {
	component     Component
	capabilities  Capabilities
	compilable    Compilable
	uploadable    Uploadable
	provisionable Provisionable
	deployable    Deployable
	device        Device
}

func register(c Component) registration {
	r := registration{
		component:    c,
		capabilities: CapabilitiesOf(c),
	}
	r.compilable, _ = c.(Compilable)
	r.uploadable, _ = c.(Uploadable)
	r.provisionable, _ = c.(Provisionable)
	r.deployable, _ = c.(Deployable)
	if c.ComponentType() == ComponentTypeDevice {
		r.device, _ = c.(Device)
	}
	return r
}
