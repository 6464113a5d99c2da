package device

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/runner"
	"github.com/iotworkbench/iotwb/pkg/templates"
	sshtransport "github.com/iotworkbench/iotwb/pkg/transports/ssh"
	"github.com/rs/zerolog"
)

const (
	raspberryPiName       = "Raspberry Pi"
	msgEmbeddedConfigured = "Embedded Linux device configuration done."
	msgMissingRemote      = "No remote target configured. Add a \"remote\" entry to the project descriptor."
	containerBuildWorkdir = "/work"
)

// RemoteTarget is the SSH destination of an embedded Linux device, decoded
// from the descriptor's "remote" key.
type RemoteTarget struct {
	sshtransport.Config

	// TargetDir is the remote folder receiving the build output.
	TargetDir string `json:"targetDir,omitempty"`

	// Run is an optional command executed on the device after uploading.
	Run string `json:"run,omitempty"`
}

// Dialer opens an SSH transport.
type Dialer func(cfg *sshtransport.Config) (sshtransport.Transport, error)

func dialSSH(cfg *sshtransport.Config) (sshtransport.Transport, error) {
	return sshtransport.NewSSHClient(cfg)
}

// RaspberryPiDevice is an embedded Linux board. Code is cross compiled in a
// container built from the project's container definition and copied to the
// board over SFTP.
type RaspberryPiDevice struct {
	root   string
	folder string
	remote *RemoteTarget
	dial   Dialer
	opts   Options
	logger zerolog.Logger
}

var _ engine.Device = (*RaspberryPiDevice)(nil)

// NewRaspberryPiDevice creates a device. remote may be nil when uploads are
// not configured yet. dial may be nil to use the SSH transport.
func NewRaspberryPiDevice(root, folder string, remote *RemoteTarget, dial Dialer, opts Options) *RaspberryPiDevice {
	opts = opts.withDefaults()
	if dial == nil {
		dial = dialSSH
	}
	return &RaspberryPiDevice{
		root:   root,
		folder: folder,
		remote: remote,
		dial:   dial,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "device").Str("board", "raspberrypi").Logger(),
	}
}

// Name implements engine.Component.
func (d *RaspberryPiDevice) Name() string { return raspberryPiName }

// ComponentType implements engine.Component.
func (d *RaspberryPiDevice) ComponentType() engine.ComponentType { return engine.ComponentTypeDevice }

// DeviceType implements engine.Device.
func (d *RaspberryPiDevice) DeviceType() engine.DeviceType { return engine.DeviceTypeRaspberryPi }

// DeviceFolder implements engine.Device.
func (d *RaspberryPiDevice) DeviceFolder() string { return d.folder }

// CheckPrerequisites reports whether the device is ready for phase. Compile
// needs docker. Upload needs a remote target and never runs docker.
func (d *RaspberryPiDevice) CheckPrerequisites(ctx context.Context, phase engine.Phase) (bool, error) {
	switch phase {
	case engine.PhaseUpload:
		if !d.hasRemote() {
			d.logger.Warn().Msg(msgMissingRemote)
			return false, nil
		}
	default:
		if !d.opts.Runner.Available(d.opts.DockerCLI) {
			d.logger.Warn().Str("cli", d.opts.DockerCLI).
				Msg("Docker is required to build embedded Linux projects. Install it or set IOTWB_DOCKER_CLI.")
			return false, nil
		}
	}
	return true, nil
}

func (d *RaspberryPiDevice) hasRemote() bool {
	return d.remote != nil && d.remote.Host != ""
}

// Create scaffolds the application sources into the device folder and the
// container definition into the project root.
func (d *RaspberryPiDevice) Create(ctx context.Context) (bool, error) {
	if !isDir(d.folder) {
		return false, engine.NewInvariantError(msgMissingTemplate, nil)
	}
	bundle, err := d.opts.Templates.Bundle("raspberrypi")
	if err != nil {
		return false, engine.NewInvariantError(msgInvalidBoard, err)
	}
	files := templates.ApplyTokens(bundle.Files, map[string]string{
		"PROJECT_NAME": filepath.Base(d.root),
	})
	if err := templates.GenerateAll(d.folder, files); err != nil {
		return false, engine.NewOperationalError("Generate template files failed", err)
	}
	return d.ConfigDeviceEnvironment(ctx, d.root, engine.ScaffoldLocal)
}

// ImageName returns the container image tag used for builds.
func (d *RaspberryPiDevice) ImageName() string {
	name := strings.ToLower(filepath.Base(d.root))
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			return r
		}
		return '-'
	}, name)
	return "iotwb-" + strings.Trim(name, "-.")
}

// Compile builds the container image and runs the CMake build inside it.
func (d *RaspberryPiDevice) Compile(ctx context.Context) (bool, error) {
	if err := RequireDeviceFolder(d.folder); err != nil {
		return false, err
	}

	image := d.ImageName()
	steps := [][]string{
		{"build", "-t", image, filepath.Join(d.root, d.opts.Layout.ContainerMarkerFolder)},
		{
			"run", "--rm",
			"-v", d.folder + ":" + containerBuildWorkdir,
			"-w", containerBuildWorkdir,
			image,
			"sh", "-c", fmt.Sprintf("cmake -S . -B %[1]s && cmake --build %[1]s", d.opts.Layout.BuildFolder),
		},
	}

	for _, args := range steps {
		res, err := d.opts.Runner.Run(ctx, runner.Request{Command: d.opts.DockerCLI, Args: args, Dir: d.root})
		if err != nil {
			return false, engine.NewOperationalError("Failed to run docker", err).
				WithComponent(d.Name()).WithOperation("compile")
		}
		if !res.Succeeded() {
			d.logger.Error().Str("step", args[0]).Int("exit_code", res.ExitCode).Msg("docker failed")
			return false, nil
		}
	}
	return true, nil
}

// Upload copies the build output to the remote target and runs the
// configured command.
func (d *RaspberryPiDevice) Upload(ctx context.Context) (bool, error) {
	if err := RequireDeviceFolder(d.folder); err != nil {
		return false, err
	}
	buildFolder := filepath.Join(d.folder, d.opts.Layout.BuildFolder)
	if !isDir(buildFolder) {
		return false, engine.NewPrerequisiteError("No build output found. Please run the command of Device Compile first.", nil)
	}

	t, target, err := d.connect(ctx)
	if err != nil {
		return false, err
	}
	defer t.Disconnect()

	result, err := t.UploadDirectory(ctx, buildFolder, target.TargetDir)
	if err != nil {
		return false, engine.NewTransportError("Failed to upload build output", err).
			WithComponent(d.Name()).WithOperation("upload")
	}
	d.logger.Info().
		Str("host", target.Host).
		Str("target_dir", target.TargetDir).
		Int("files", result.Files).
		Msg("Build output uploaded")

	if target.Run == "" {
		return true, nil
	}
	stdout, stderr, err := t.ExecuteCommand(ctx, target.Run)
	if stdout != "" {
		fmt.Fprintln(d.opts.Output, stdout)
	}
	if err != nil {
		d.logger.Error().Err(err).Str("stderr", stderr).Msg("Remote command failed")
		return false, nil
	}
	return true, nil
}

// connect resolves the remote target and opens the transport.
func (d *RaspberryPiDevice) connect(ctx context.Context) (sshtransport.Transport, RemoteTarget, error) {
	if !d.hasRemote() {
		return nil, RemoteTarget{}, engine.NewPrerequisiteError(msgMissingRemote, nil)
	}
	target := *d.remote
	target.ApplyDefaults()
	if target.TargetDir == "" {
		target.TargetDir = path.Join("/home", target.User, "iotwb", filepath.Base(d.root))
	}

	t, err := d.dial(&target.Config)
	if err != nil {
		return nil, target, engine.NewValidationError("Invalid remote target", err)
	}
	if err := t.Connect(ctx); err != nil {
		return nil, target, engine.NewTransportError(fmt.Sprintf("Unable to connect to %s", target.Host), err)
	}
	return t, target, nil
}

// ConfigDeviceEnvironment writes the container definition and tasks into projectPath.
func (d *RaspberryPiDevice) ConfigDeviceEnvironment(ctx context.Context, projectPath string, scaffold engine.ScaffoldType) (bool, error) {
	ok, err := ConfigDeviceEnvironment(ctx, d.opts, projectPath, d.opts.Layout.ContainerEnvTemplate)
	if err != nil || !ok {
		return false, err
	}
	d.logger.Info().Str("scaffold", string(scaffold)).Msg(msgEmbeddedConfigured)
	return true, nil
}

// ConfigDeviceSettings checks the connection to the remote target and prints
// its system information.
func (d *RaspberryPiDevice) ConfigDeviceSettings(ctx context.Context) (bool, error) {
	t, target, err := d.connect(ctx)
	if err != nil {
		return false, err
	}
	defer t.Disconnect()

	stdout, _, err := t.ExecuteCommand(ctx, "uname -a")
	if err != nil {
		return false, engine.NewTransportError("Remote target check failed", err)
	}
	fmt.Fprintf(d.opts.Output, "%s@%s: %s\n", target.User, target.Host, stdout)
	return true, nil
}
