// Package project implements the concrete IoT projects: workspace projects
// hosting an Arduino board and container projects hosting an embedded Linux
// board. Both load their components from the project descriptor and hand
// them to the engine orchestrator.
package project

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/iotworkbench/iotwb/pkg/config"
	"github.com/iotworkbench/iotwb/pkg/device"
	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/runner"
	"github.com/iotworkbench/iotwb/pkg/templates"
	"github.com/rs/zerolog"
)

// Deps are the collaborators a project is built from.
type Deps struct {
	// Settings holds tool paths and the project layout.
	Settings *config.Settings

	// Runner executes external tools.
	Runner runner.Runner

	// Templates serves template bundles.
	Templates *templates.Store

	// Catalog resolves board identifiers.
	Catalog *device.Catalog

	// Schemas validates the descriptor. Nil skips validation.
	Schemas *config.SchemaRegistry

	// Hooks evaluates pre-action hooks. Nil disables hooks.
	Hooks *config.HookEvaluator

	Notifier engine.Notifier
	Prompter engine.Prompter
	Gate     engine.Gate
	Observer engine.Observer

	// Dial opens SSH transports for embedded Linux uploads. Nil uses SSH.
	Dial device.Dialer

	// Output receives reports printed for the user.
	Output io.Writer

	Logger zerolog.Logger

	// GOOS overrides the target operating system of generated editor files.
	GOOS string
}

// Project is a loaded or created IoT project.
type Project interface {
	// Load builds the components from the descriptor. It returns false when
	// the root is not a project of this kind.
	Load(ctx context.Context, scaffold engine.ScaffoldType) (bool, error)

	// Create scaffolds a new project for boardID.
	Create(ctx context.Context, boardID string) (bool, error)

	// OpenProject opens path in the editor, or tells the user where it is.
	OpenProject(ctx context.Context, path string) error

	Root() string
	HostType() engine.ProjectHostType
	Components() []engine.Component
	Devices() []engine.Device
	Outcome() *engine.OperationOutcome

	Compile(ctx context.Context) (bool, error)
	Upload(ctx context.Context) (bool, error)
	Provision(ctx context.Context, auth engine.Authenticator) (bool, error)
	Deploy(ctx context.Context, auth engine.Authenticator) (bool, error)
	ConfigureProjectEnvironmentCore(ctx context.Context, projectPath string, scaffold engine.ScaffoldType) (bool, error)
	ConfigDeviceSettings(ctx context.Context) bool
}

func (d Deps) validate() error {
	if d.Settings == nil {
		return engine.NewInvariantError("project settings are required", nil)
	}
	if d.Runner == nil {
		return engine.NewInvariantError("project runner is required", nil)
	}
	if d.Templates == nil {
		return engine.NewInvariantError("template store is required", nil)
	}
	if d.Catalog == nil {
		return engine.NewInvariantError("board catalog is required", nil)
	}
	return nil
}

func (d Deps) layout() config.Layout {
	return d.Settings.Layout
}

func (d Deps) output() io.Writer {
	if d.Output == nil {
		return os.Stdout
	}
	return d.Output
}

func (d Deps) deviceOptions() device.Options {
	return device.Options{
		Layout:     d.layout(),
		Runner:     d.Runner,
		Templates:  d.Templates,
		Hooks:      d.Hooks,
		Prompter:   d.Prompter,
		Output:     d.output(),
		Logger:     d.Logger,
		ArduinoCLI: d.Settings.ArduinoCLI,
		DockerCLI:  d.Settings.DockerCLI,
		GOOS:       d.GOOS,
	}
}

func (d Deps) newCore(root string, hostType engine.ProjectHostType) *engine.Project {
	return engine.NewProject(engine.ProjectConfig{
		Root:     root,
		HostType: hostType,
		Layout:   d.layout(),
		Notifier: d.Notifier,
		Prompter: d.Prompter,
		Gate:     d.Gate,
		Observer: d.Observer,
		Logger:   d.Logger,
	})
}

// Open loads the project at root with the implementation matching its host
// type.
func Open(ctx context.Context, root string, deps Deps) (Project, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	var p Project
	switch engine.GetProjectType(root, deps.layout()) {
	case engine.HostTypeWorkspace:
		p = NewWorkspaceProject(root, deps)
	case engine.HostTypeContainer:
		p = NewContainerProject(root, deps)
	default:
		return nil, engine.NewInvariantError(msgMissingProjectFolder, nil)
	}

	ok, err := p.Load(ctx, engine.ScaffoldLocal)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, engine.NewOperationalError(MsgLoadFailed, nil)
	}
	return p, nil
}

// Create scaffolds a new project for boardID under root. Embedded Linux
// boards get a container project, all others a workspace project.
func Create(ctx context.Context, root, boardID string, deps Deps) (Project, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	spec, ok := deps.Catalog.Lookup(boardID)
	if !ok {
		return nil, engine.NewValidationError(msgInvalidBoard, fmt.Errorf("unknown board %q", boardID))
	}
	deviceType, err := spec.Type()
	if err != nil {
		return nil, engine.NewValidationError(msgInvalidBoard, err)
	}

	var p Project
	if deviceType == engine.DeviceTypeRaspberryPi {
		p = NewContainerProject(root, deps)
	} else {
		p = NewWorkspaceProject(root, deps)
	}

	created, err := p.Create(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, nil
	}
	return p, nil
}
