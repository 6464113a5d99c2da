package project

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iotworkbench/iotwb/pkg/device"
	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/runner"
)

// EditorCLI is the editor launched by OpenProject when it is installed.
const EditorCLI = "code"

const workspaceExtension = ".code-workspace"

// WorkspaceProject is a project whose device is an Arduino board built on
// the local machine.
type WorkspaceProject struct {
	*engine.Project
	deps Deps
}

var _ Project = (*WorkspaceProject)(nil)

// NewWorkspaceProject creates an unloaded workspace project.
func NewWorkspaceProject(root string, deps Deps) *WorkspaceProject {
	return &WorkspaceProject{
		Project: deps.newCore(root, engine.HostTypeWorkspace),
		deps:    deps,
	}
}

// Load registers the Arduino device and the cloud components described by
// the descriptor. The board comes from the descriptor's boardId, or from the
// fqbn in arduino.json for projects created before boardId existed.
func (p *WorkspaceProject) Load(ctx context.Context, scaffold engine.ScaffoldType) (bool, error) {
	root := p.Root()
	if !isDir(root) {
		return false, engine.NewInvariantError(msgMissingProjectFolder, nil)
	}
	if engine.GetProjectType(root, p.deps.layout()) != engine.HostTypeWorkspace {
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

	board, err := p.resolveBoard(data.BoardID, folder)
	if err != nil {
		return false, err
	}
	dev := device.NewArduinoDevice(folder, board, p.deps.deviceOptions())
	if err := dev.Load(); err != nil {
		return false, err
	}
	if err := p.AddComponent(dev); err != nil {
		return false, err
	}
	if err := addCloudComponents(p.Project, data, p.deps); err != nil {
		return false, err
	}

	logger := p.Logger()
	logger.Debug().
		Str("board", board.BoardID()).
		Str("scaffold", string(scaffold)).
		Int("components", len(p.Components())).
		Msg("Workspace project loaded")
	return true, nil
}

func (p *WorkspaceProject) resolveBoard(boardID, folder string) (*device.CatalogBoard, error) {
	if boardID == "" {
		cfg, err := device.ReadArduinoConfig(folder, p.deps.layout())
		if err != nil {
			return nil, engine.NewValidationError(msgInvalidBoard, err)
		}
		for _, spec := range p.deps.Catalog.Boards() {
			if spec.FQBN != "" && spec.FQBN == cfg.Board {
				boardID = spec.ID
				break
			}
		}
	}
	spec, ok := p.deps.Catalog.Lookup(boardID)
	if !ok {
		return nil, engine.NewValidationError(msgInvalidBoard, fmt.Errorf("unknown board %q", boardID))
	}
	return device.NewCatalogBoard(spec, p.deps.layout(), p.deps.Hooks, filepath.Join(p.Root(), p.deps.layout().HooksFolder))
}

// Create scaffolds the device folder, the descriptor and the editor
// workspace file for boardID, then opens the project.
func (p *WorkspaceProject) Create(ctx context.Context, boardID string) (bool, error) {
	root := p.Root()
	layout := p.deps.layout()
	if !isDir(root) {
		return false, engine.NewInvariantError(msgMissingProjectFolder, nil)
	}

	spec, ok := p.deps.Catalog.Lookup(boardID)
	if !ok {
		return false, engine.NewValidationError(msgInvalidBoard, fmt.Errorf("unknown board %q", boardID))
	}
	board, err := device.NewCatalogBoard(spec, layout, p.deps.Hooks, filepath.Join(root, layout.HooksFolder))
	if err != nil {
		return false, err
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

	dev := device.NewArduinoDevice(folder, board, p.deps.deviceOptions())
	created, err := dev.Create(ctx)
	if err != nil || !created {
		return false, err
	}
	if err := p.AddComponent(dev); err != nil {
		return false, err
	}

	workspaceFile, err := p.writeWorkspaceFile()
	if err != nil {
		return false, err
	}
	if err := p.OpenProject(ctx, workspaceFile); err != nil {
		return false, err
	}
	return true, nil
}

type workspaceFolder struct {
	Path string `json:"path"`
}

type workspaceFile struct {
	Folders  []workspaceFolder `json:"folders"`
	Settings map[string]string `json:"settings"`
}

// writeWorkspaceFile writes <root>/<name>.code-workspace listing the device
// folder.
func (p *WorkspaceProject) writeWorkspaceFile() (string, error) {
	root := p.Root()
	layout := p.deps.layout()
	path := filepath.Join(root, filepath.Base(root)+workspaceExtension)

	data, err := json.MarshalIndent(workspaceFile{
		Folders: []workspaceFolder{{Path: layout.DeviceFolder}},
		Settings: map[string]string{
			"IoTWorkbench." + engine.KeyDevicePath: layout.DeviceFolder,
		},
	}, "", "    ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", engine.NewOperationalError("Failed to write the workspace file", err)
	}
	return path, nil
}

// OpenProject opens path in the editor if it is installed.
func (p *WorkspaceProject) OpenProject(ctx context.Context, path string) error {
	return openInEditor(ctx, p.deps, p.Notifier(), path)
}

// OpenFolder opens a folder, such as generated device code, in the editor.
// Without the editor it tells the user where the folder is.
func OpenFolder(ctx context.Context, deps Deps, path string) error {
	if !isDir(path) {
		return engine.NewInvariantError(fmt.Sprintf("Unable to find the folder %s.", path), nil)
	}
	return openInEditor(ctx, deps, deps.Notifier, path)
}

func openInEditor(ctx context.Context, deps Deps, notifier engine.Notifier, path string) error {
	if !fileExists(path) {
		return engine.NewInvariantError(msgMissingProjectFolder, nil)
	}
	if !deps.Runner.Available(EditorCLI) {
		notifier.Info(fmt.Sprintf("Project is ready at %s.", path))
		return nil
	}
	_, err := runner.Check(ctx, deps.Runner, runner.Request{
		Command: EditorCLI,
		Args:    []string{path},
		Quiet:   true,
	})
	if err != nil {
		notifier.Warn(fmt.Sprintf("Unable to open %s: %v", path, err))
	}
	return nil
}
