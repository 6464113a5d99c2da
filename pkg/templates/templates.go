// Package templates loads template bundles and writes scaffolded files.
//
// A bundle is a folder holding a template_files.json manifest and the files
// it lists. Bundles ship embedded in the binary; a folder on disk can be used
// instead for development.
package templates

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/rs/zerolog"
	"github.com/tidwall/jsonc"
)

//go:embed all:resources
var resources embed.FS

// ManifestFile is the bundle manifest name.
const ManifestFile = "template_files.json"

// TemplateFileInfo describes one file of a bundle.
type TemplateFileInfo struct {
	// FileName is the file name, used both in the bundle and at the target.
	FileName string `json:"fileName" validate:"required"`

	// SourcePath is the folder inside the bundle holding the file.
	SourcePath string `json:"sourcePath"`

	// TargetPath is the folder, relative to the scaffold root, the file is written to.
	TargetPath string `json:"targetPath"`

	// FileContent is the file content, loaded from the bundle.
	FileContent string `json:"-"`
}

// Target returns the destination path of the file under root.
func (f TemplateFileInfo) Target(root string) string {
	return filepath.Join(root, filepath.FromSlash(f.TargetPath), f.FileName)
}

// Manifest is the content of template_files.json.
type Manifest struct {
	// TemplateFiles lists the bundle files.
	TemplateFiles []TemplateFileInfo `json:"templateFiles" validate:"required,dive"`
}

// Bundle is a loaded template bundle.
type Bundle struct {
	// Name is the bundle folder name.
	Name string

	// Files are the bundle files with content.
	Files []TemplateFileInfo
}

// Embedded returns the template bundles shipped with iotwb.
func Embedded() fs.FS {
	sub, err := fs.Sub(resources, "resources/templates")
	if err != nil {
		// The embed pattern guarantees the folder exists.
		panic(err)
	}
	return sub
}

// Store loads bundles from a file system and caches them.
type Store struct {
	fsys   fs.FS
	cache  *lru.Cache[string, *Bundle]
	logger zerolog.Logger
}

// NewStore creates a store reading bundles from fsys.
func NewStore(fsys fs.FS, logger zerolog.Logger) (*Store, error) {
	cache, err := lru.New[string, *Bundle](64)
	if err != nil {
		return nil, fmt.Errorf("failed to create bundle cache: %w", err)
	}
	return &Store{
		fsys:   fsys,
		cache:  cache,
		logger: logger.With().Str("component", "templates").Logger(),
	}, nil
}

// Has reports whether a bundle folder exists.
func (s *Store) Has(name string) bool {
	info, err := fs.Stat(s.fsys, name)
	return err == nil && info.IsDir()
}

// ReadFile reads a single file from a bundle folder.
func (s *Store) ReadFile(bundle, name string) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, path.Join(bundle, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s/%s: %w", bundle, name, err)
	}
	return data, nil
}

// Bundle loads a bundle by folder name. The returned bundle is a copy and may
// be modified by the caller.
func (s *Store) Bundle(name string) (*Bundle, error) {
	if b, ok := s.cache.Get(name); ok {
		return b.clone(), nil
	}

	data, err := s.ReadFile(name, ManifestFile)
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest of %s: %w", name, err)
	}
	if err := validator.New().Struct(manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest of %s: %w", name, err)
	}

	b := &Bundle{Name: name, Files: make([]TemplateFileInfo, 0, len(manifest.TemplateFiles))}
	for _, f := range manifest.TemplateFiles {
		content, err := s.ReadFile(path.Join(name, f.SourcePath), f.FileName)
		if err != nil {
			return nil, err
		}
		f.FileContent = string(content)
		b.Files = append(b.Files, f)
	}

	s.cache.Add(name, b)
	s.logger.Debug().Str("bundle", name).Int("files", len(b.Files)).Msg("Template bundle loaded")

	return b.clone(), nil
}

func (b *Bundle) clone() *Bundle {
	files := make([]TemplateFileInfo, len(b.Files))
	copy(files, b.Files)
	return &Bundle{Name: b.Name, Files: files}
}

// ReplaceTokens replaces every {KEY} occurrence for each supplied key. Tokens
// without a supplied value are left verbatim.
func ReplaceTokens(content string, values map[string]string) string {
	if len(values) == 0 {
		return content
	}
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(content)
}

// ApplyTokens returns a copy of files with tokens replaced in every file content.
func ApplyTokens(files []TemplateFileInfo, values map[string]string) []TemplateFileInfo {
	out := make([]TemplateFileInfo, len(files))
	for i, f := range files {
		f.FileContent = ReplaceTokens(f.FileContent, values)
		out[i] = f
	}
	return out
}

// Generate writes file under root, creating folders as needed.
func Generate(root string, file TemplateFileInfo) error {
	target := file.Target(root)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create folder for %s: %w", file.FileName, err)
	}
	if err := os.WriteFile(target, []byte(file.FileContent), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}

// GenerateAll writes every file under root.
func GenerateAll(root string, files []TemplateFileInfo) error {
	for _, f := range files {
		if err := Generate(root, f); err != nil {
			return err
		}
	}
	return nil
}

// AskToOverwrite checks whether any file already exists under root and, if
// so, asks once whether existing configuration may be overwritten. It returns
// false when the user answers no and a cancellation error when the question
// is dismissed.
func AskToOverwrite(ctx context.Context, prompter engine.Prompter, root string, files []TemplateFileInfo) (bool, error) {
	for _, f := range files {
		if _, err := os.Stat(f.Target(root)); errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return false, fmt.Errorf("failed to check %s: %w", f.FileName, err)
		}

		if prompter == nil {
			return false, engine.NewInvariantError("no prompter configured", nil)
		}
		idx, ok, err := prompter.Pick(ctx, engine.PickRequest{
			Placeholder: fmt.Sprintf("Configuration file %s already exists. Overwrite?", f.FileName),
			Items: []engine.PickItem{
				{Label: "Yes", Detail: "Overwrite existing configuration files"},
				{Label: "No", Detail: "Keep existing configuration files and stop"},
			},
		})
		if err != nil {
			return false, err
		}
		if !ok {
			return false, engine.NewCancelOperationError(
				fmt.Sprintf("Ask to overwrite %s selection cancelled.", f.FileName))
		}
		return idx == 0, nil
	}
	return true, nil
}
