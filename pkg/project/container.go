package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iotworkbench/iotwb/pkg/device"
	"github.com/iotworkbench/iotwb/pkg/engine"
)

// externalDevicePath is the device path of a converted external project:
// its sources stay in the root.
const externalDevicePath = "."

// ContainerProject is a project whose device is an embedded Linux board
// built inside a container.
type ContainerProject struct {
	*engine.Project
	deps Deps
}

var _ Project = (*ContainerProject)(nil)

// NewContainerProject creates an unloaded container project.
func NewContainerProject(root string, deps Deps) *ContainerProject {
	return &ContainerProject{
		Project: deps.newCore(root, engine.HostTypeContainer),
		deps:    deps,
	}
}

// Load registers the embedded Linux device and the cloud components
// described by the descriptor.
func (p *ContainerProject) Load(ctx context.Context, scaffold engine.ScaffoldType) (bool, error) {
	root := p.Root()
	if !isDir(root) {
		return false, engine.NewInvariantError(msgMissingProjectFolder, nil)
	}
	if engine.GetProjectType(root, p.deps.layout()) != engine.HostTypeContainer {
		return false, nil
	}

	data, err := readDescriptorData(ctx, root, p.deps)
	if err != nil {
		return false, err
	}
	folder := data.deviceFolder(root)
	if !isDir(folder) {
		return false, engine.NewPrerequisiteError(msgMissingDevicePath, nil)
	}

	dev := device.NewRaspberryPiDevice(root, folder, data.Remote, p.deps.Dial, p.deps.deviceOptions())
	if err := p.AddComponent(dev); err != nil {
		return false, err
	}
	if err := addCloudComponents(p.Project, data, p.deps); err != nil {
		return false, err
	}

	logger := p.Logger()
	logger.Debug().
		Str("scaffold", string(scaffold)).
		Bool("remote", data.Remote != nil).
		Int("components", len(p.Components())).
		Msg("Container project loaded")
	return true, nil
}

// Create scaffolds the device sources, the container definition and the
// descriptor, then opens the project.
func (p *ContainerProject) Create(ctx context.Context, boardID string) (bool, error) {
	root := p.Root()
	layout := p.deps.layout()
	if !isDir(root) {
		return false, engine.NewInvariantError(msgMissingProjectFolder, nil)
	}

	spec, ok := p.deps.Catalog.Lookup(boardID)
	if !ok {
		return false, engine.NewValidationError(msgInvalidBoard, fmt.Errorf("unknown board %q", boardID))
	}
	if t, err := spec.Type(); err != nil || t != engine.DeviceTypeRaspberryPi {
		return false, engine.NewValidationError(msgInvalidBoard,
			fmt.Errorf("board %q is not an embedded Linux board", boardID))
	}

	folder := filepath.Join(root, layout.DeviceFolder)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return false, engine.NewOperationalError("Failed to create the device folder", err)
	}

	if err := p.GenerateOrUpdateProjectFile(root); err != nil {
		return false, err
	}
	if err := updateDescriptor(root, layout,
		descriptorEntry{engine.KeyDevicePath, layout.DeviceFolder},
		descriptorEntry{engine.KeyBoardID, spec.ID},
	); err != nil {
		return false, engine.NewOperationalError(fmt.Sprintf("Generate or update %s file failed", layout.ProjectFile), err)
	}

	dev := device.NewRaspberryPiDevice(root, folder, nil, p.deps.Dial, p.deps.deviceOptions())
	created, err := dev.Create(ctx)
	if err != nil || !created {
		return false, err
	}
	if err := p.AddComponent(dev); err != nil {
		return false, err
	}

	if err := p.OpenProject(ctx, root); err != nil {
		return false, err
	}
	return true, nil
}

// ConstructExternalProject turns a folder that is not yet an iotwb project
// into a container project: it writes the descriptor with the root as the
// device path and creates the container marker folder. Existing projects are
// left as they are.
func (p *ContainerProject) ConstructExternalProject(ctx context.Context) error {
	root := p.Root()
	layout := p.deps.layout()
	if !isDir(root) {
		return engine.NewInvariantError(msgMissingProjectFolder, nil)
	}
	if fileExists(filepath.Join(root, layout.ProjectFile)) {
		return nil
	}

	if err := p.GenerateOrUpdateProjectFile(root); err != nil {
		return err
	}
	if err := updateDescriptor(root, layout, descriptorEntry{engine.KeyDevicePath, externalDevicePath}); err != nil {
		return engine.NewOperationalError(fmt.Sprintf("Generate or update %s file failed", layout.ProjectFile), err)
	}
	if err := os.MkdirAll(filepath.Join(root, layout.ContainerMarkerFolder), 0o755); err != nil {
		return engine.NewOperationalError("Failed to create the container folder", err)
	}

	logger := p.Logger()
	logger.Info().Str("root", root).Msg("External project converted to a container project")
	return nil
}

// OpenProject opens path in the editor if it is installed.
func (p *ContainerProject) OpenProject(ctx context.Context, path string) error {
	return openInEditor(ctx, p.deps, p.Notifier(), path)
}
