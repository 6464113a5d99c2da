package project

import (
	"context"
	"fmt"

	"github.com/iotworkbench/iotwb/pkg/engine"
)

// Platform is a target platform offered by the environment configurer.
type Platform string

const (
	PlatformArduino       Platform = "Arduino"
	PlatformEmbeddedLinux Platform = "Embedded Linux (requires Docker)"
)

// Platforms lists the selectable platforms in display order.
var Platforms = []Platform{PlatformArduino, PlatformEmbeddedLinux}

const (
	msgPlatformCancelled = "Platform selection cancelled."
	msgNotArduinoProject = "This is not an iot workbench Arduino projects. You cannot configure it as Arduino platform."
	msgConfigured        = "Successfully configure project environment."
)

// EnvironmentConfigurer selects a platform for a folder and writes its
// editor and build environment.
type EnvironmentConfigurer struct {
	deps Deps
}

// NewEnvironmentConfigurer creates a configurer.
func NewEnvironmentConfigurer(deps Deps) *EnvironmentConfigurer {
	return &EnvironmentConfigurer{deps: deps}
}

// Configure asks for the platform, then configures root for it.
func (c *EnvironmentConfigurer) Configure(ctx context.Context, root string) (bool, error) {
	if c.deps.Prompter == nil {
		return false, engine.NewInvariantError("no prompter configured", nil)
	}
	items := make([]engine.PickItem, len(Platforms))
	for i, p := range Platforms {
		items[i] = engine.PickItem{Label: string(p)}
	}
	idx, ok, err := c.deps.Prompter.Pick(ctx, engine.PickRequest{
		Placeholder: "Select a platform",
		Items:       items,
	})
	if err != nil {
		return false, err
	}
	if !ok {
		return false, engine.NewCancelOperationError(msgPlatformCancelled)
	}

	configured, err := c.ConfigureAsPlatform(ctx, Platforms[idx], root, engine.ScaffoldLocal)
	if err != nil || !configured {
		return false, err
	}

	c.notifier().Info(msgConfigured)
	return true, nil
}

// ConfigureAsPlatform configures root for platform. An Arduino root must
// already be a workspace project. An embedded Linux root that is not a
// project yet is converted first.
func (c *EnvironmentConfigurer) ConfigureAsPlatform(ctx context.Context, platform Platform, root string, scaffold engine.ScaffoldType) (bool, error) {
	if err := c.deps.validate(); err != nil {
		return false, err
	}

	var p Project
	switch platform {
	case PlatformArduino:
		if _, err := Open(ctx, root, c.deps); err != nil {
			c.deps.Logger.Debug().Err(err).Msg("Project could not be opened")
			return false, nil
		}
		if engine.GetProjectType(root, c.deps.layout()) != engine.HostTypeWorkspace {
			c.notifier().Info(msgNotArduinoProject)
			return false, nil
		}
		p = NewWorkspaceProject(root, c.deps)

	case PlatformEmbeddedLinux:
		cp := NewContainerProject(root, c.deps)
		if err := cp.ConstructExternalProject(ctx); err != nil {
			return false, err
		}
		p = cp

	default:
		return false, engine.NewValidationError(msgInvalidBoard, fmt.Errorf("unsupported platform %q", platform))
	}

	loaded, err := p.Load(ctx, scaffold)
	if err != nil {
		return false, engine.NewOperationalError(MsgLoadFailed, err)
	}
	if !loaded {
		return false, engine.NewOperationalError(MsgLoadFailed, nil)
	}

	configured, err := p.ConfigureProjectEnvironmentCore(ctx, root, scaffold)
	if err != nil || !configured {
		return false, err
	}

	if err := p.OpenProject(ctx, root); err != nil {
		return false, err
	}
	return true, nil
}

func (c *EnvironmentConfigurer) notifier() engine.Notifier {
	if c.deps.Notifier == nil {
		return engine.NewLogNotifier(c.deps.Logger)
	}
	return c.deps.Notifier
}
