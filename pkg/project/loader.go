package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/iotworkbench/iotwb/pkg/cloud"
	"github.com/iotworkbench/iotwb/pkg/config"
	"github.com/iotworkbench/iotwb/pkg/device"
	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/tidwall/jsonc"
)

const (
	msgMissingProjectFolder = "Unable to find the project folder."
	msgMissingDevicePath    = "Unable to find the project device path, please open the folder and initialize project again."
	msgInvalidBoard         = "Invalid / unsupported target platform"

	// MsgLoadFailed is reported when a project cannot be loaded.
	MsgLoadFailed = "Failed to load project. Project environment configuration stopped."
)

// descriptorData is the part of the descriptor that describes components.
type descriptorData struct {
	DevicePath string
	BoardID    string
	Components []cloud.ServiceDefinition
	Remote     *device.RemoteTarget
}

// readDescriptorData reads and validates the descriptor under root. A
// missing descriptor yields the defaults.
func readDescriptorData(ctx context.Context, root string, deps Deps) (*descriptorData, error) {
	layout := deps.layout()
	data := &descriptorData{DevicePath: layout.DeviceFolder}

	raw, err := os.ReadFile(filepath.Join(root, layout.ProjectFile))
	if errors.Is(err, fs.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", layout.ProjectFile, err)
	}

	if deps.Schemas != nil {
		if err := deps.Schemas.ValidateDescriptor(ctx, jsonc.ToJSON(raw)); err != nil {
			return nil, engine.NewValidationError(fmt.Sprintf("Invalid %s", layout.ProjectFile), err)
		}
	}

	d, err := engine.ParseDescriptor(raw)
	if err != nil {
		return nil, engine.NewValidationError(fmt.Sprintf("Invalid %s", layout.ProjectFile), err)
	}

	if path, ok := d.GetString(engine.KeyDevicePath); ok && path != "" {
		data.DevicePath = path
	}
	if id, ok := d.GetString(engine.KeyBoardID); ok {
		data.BoardID = id
	}
	if _, err := d.Get(engine.KeyComponents, &data.Components); err != nil {
		return nil, engine.NewValidationError("Invalid cloud components", err)
	}
	var remote device.RemoteTarget
	found, err := d.Get(engine.KeyRemote, &remote)
	if err != nil {
		return nil, engine.NewValidationError("Invalid remote target", err)
	}
	if found {
		data.Remote = &remote
	}
	return data, nil
}

// deviceFolder resolves the device path against root.
func (d *descriptorData) deviceFolder(root string) string {
	if filepath.IsAbs(d.DevicePath) {
		return d.DevicePath
	}
	return filepath.Join(root, d.DevicePath)
}

// addCloudComponents registers the descriptor's cloud services after the device.
func addCloudComponents(core *engine.Project, data *descriptorData, deps Deps) error {
	for _, def := range data.Components {
		c, err := cloud.NewService(def, deps.Runner, deps.Settings.AzureCLI, deps.Logger)
		if err != nil {
			return err
		}
		if err := core.AddComponent(c); err != nil {
			return err
		}
	}
	return nil
}

type descriptorEntry struct {
	key   string
	value interface{}
}

// updateDescriptor sets entries in the descriptor under root, keeping every
// other key.
func updateDescriptor(root string, layout config.Layout, entries ...descriptorEntry) error {
	return engine.UpdateDescriptor(root, layout, func(d *engine.Descriptor) error {
		for _, e := range entries {
			if err := d.Set(e.key, e.value); err != nil {
				return err
			}
		}
		return nil
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
