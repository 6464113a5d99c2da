// Package codegen wraps the PnP code generator, which scaffolds ANSI C
// device code from a device capability model, and adds the Visual Studio
// project files around the generated sources.
package codegen

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/iotworkbench/iotwb/pkg/config"
	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/runner"
	"github.com/iotworkbench/iotwb/pkg/templates"
	"github.com/rs/zerolog"
)

// ProvisionType is how the generated device connects to the cloud.
type ProvisionType string

const (
	ProvisionConnectionString ProvisionType = "connectionString"
	ProvisionIoTCSasKey       ProvisionType = "iotcSasKey"
)

const (
	toolName        = "PnPCodeGen"
	language        = "ansic"
	vcxprojFile     = "iotproject.vcxproj"
	templatesFolder = "digitaltwin"

	msgUnsupportedProvision = "Unsupported device provision type."
)

var provisionTemplates = map[ProvisionType]string{
	ProvisionConnectionString: "ansic_vs_connectionstring",
	ProvisionIoTCSasKey:       "ansic_vs_iotcsaskey",
}

// ParseProvisionType converts a flag value to a ProvisionType.
func ParseProvisionType(value string) (ProvisionType, error) {
	t := ProvisionType(value)
	if _, ok := provisionTemplates[t]; !ok {
		return "", engine.NewValidationError(msgUnsupportedProvision, fmt.Errorf("unknown provision type %q", value))
	}
	return t, nil
}

// Request describes one code generation.
type Request struct {
	// TargetPath is the output folder. Its base name becomes the project name.
	TargetPath string

	// ModelFile is the capability model passed as the jsonld URI.
	ModelFile string

	// ConnectionString is embedded in the generated code.
	ConnectionString string

	// Provision selects the project template.
	Provision ProvisionType
}

// Generator runs the code generator and writes the project template.
type Generator struct {
	runner    runner.Runner
	templates *templates.Store
	layout    config.Layout
	toolDir   string
	goos      string
	logger    zerolog.Logger
}

// NewGenerator creates a generator using the tool installed in toolDir.
// An empty goos means the current platform.
func NewGenerator(r runner.Runner, store *templates.Store, layout config.Layout, toolDir, goos string, logger zerolog.Logger) *Generator {
	if goos == "" {
		goos = runtime.GOOS
	}
	return &Generator{
		runner:    r,
		templates: store,
		layout:    layout,
		toolDir:   toolDir,
		goos:      goos,
		logger:    logger.With().Str("component", "codegen").Logger(),
	}
}

// Command returns the tool executable, relative to the tool folder.
func (g *Generator) Command() string {
	if g.goos == "windows" {
		return toolName + ".exe"
	}
	return "./" + toolName
}

// CheckPrerequisites reports whether the tool is installed.
func (g *Generator) CheckPrerequisites() (bool, error) {
	path := filepath.Join(g.toolDir, strings.TrimPrefix(g.Command(), "./"))
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			g.logger.Warn().Str("path", path).Msg("PnP code generator is not installed")
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GenerateCode scaffolds the device code into req.TargetPath and writes the
// Visual Studio project files next to it. It returns false when the tool
// exits with an error.
func (g *Generator) GenerateCode(ctx context.Context, req Request) (bool, error) {
	bundleName, ok := provisionTemplates[req.Provision]
	if !ok {
		return false, engine.NewValidationError(msgUnsupportedProvision, nil)
	}
	if err := os.MkdirAll(req.TargetPath, 0o755); err != nil {
		return false, fmt.Errorf("failed to create %s: %w", req.TargetPath, err)
	}

	g.logger.Info().Str("target", req.TargetPath).Msg("Scaffold code stub")
	res, err := g.runner.Run(ctx, runner.Request{
		Command: g.Command(),
		Args: []string{
			"scaffold",
			"--jsonldUri", req.ModelFile,
			"--language", language,
			"--output", req.TargetPath,
			"--connectionString", req.ConnectionString,
		},
		Dir: g.toolDir,
	})
	if err != nil {
		return false, engine.NewOperationalError("Failed to run the code generator", err)
	}
	if !res.Succeeded() {
		g.logger.Error().Int("exit_code", res.ExitCode).Msg("Code generator failed")
		return false, nil
	}
	g.logger.Info().Msg("Scaffold code stub completed")

	bundle, err := g.templates.Bundle(templatesFolder + "/" + bundleName)
	if err != nil {
		return false, engine.NewInvariantError("Internal error: Couldn't find the template folder.", err)
	}

	projectName := filepath.Base(req.TargetPath)
	headers, sources, err := g.utilitiesEntries(req.TargetPath)
	if err != nil {
		return false, err
	}

	for _, f := range bundle.Files {
		if f.FileName == vcxprojFile {
			f.FileContent = templates.ReplaceTokens(f.FileContent, map[string]string{
				"UTILITIESFILES_H": headers,
				"UTILITIESFILES_C": sources,
			})
		} else {
			f.FileContent = templates.ReplaceTokens(f.FileContent, map[string]string{
				"PROJECT_NAME": projectName,
			})
		}
		if err := templates.Generate(req.TargetPath, f); err != nil {
			return false, engine.NewOperationalError("Generate template files failed", err)
		}
	}
	return true, nil
}

// utilitiesEntries lists the generated utilities as Visual Studio include
// items, headers and other files separately.
func (g *Generator) utilitiesEntries(target string) (string, string, error) {
	entries, err := os.ReadDir(filepath.Join(target, g.layout.UtilitiesFolder))
	if errors.Is(err, fs.ErrNotExist) {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to list utilities: %w", err)
	}

	var headers, sources strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		line := fmt.Sprintf("    <ClInclude Include=\"%s\\%s\" />\r\n", g.layout.UtilitiesFolder, e.Name())
		if strings.HasSuffix(e.Name(), ".h") {
			headers.WriteString(line)
		} else {
			sources.WriteString(line)
		}
	}
	return headers.String(), sources.String(), nil
}
