package policy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iotworkbench/iotwb/pkg/config"
	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/rs/zerolog"
)

const forbiddenNameRego = `package test.policy

# Blocks components named "forbidden"

import rego.v1

deny contains msg if {
	input.component == "forbidden"
	msg := "Forbidden component name"
}`

const noopRego = "package noop\n\nimport rego.v1\n\ndeny contains msg if { false; msg := \"\" }"

// newProject returns a project root and its policies folder.
func newProject(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, config.DefaultLayout().PoliciesFolder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create policies folder: %v", err)
	}
	return root, dir
}

func loadProject(t *testing.T, root string) *ProjectPolicies {
	t.Helper()
	loaded, err := NewLoader(config.DefaultLayout(), zerolog.Nop()).Load(context.Background(), root)
	if err != nil {
		t.Fatalf("Failed to load project policies: %v", err)
	}
	return loaded
}

func TestLoad_NoPoliciesFolder(t *testing.T) {
	loaded := loadProject(t, t.TempDir())

	if len(loaded.Policies) != 0 || len(loaded.Skipped) != 0 || len(loaded.Disabled) != 0 {
		t.Errorf("Expected an empty result, got %+v", loaded)
	}
}

func TestLoad_Rego(t *testing.T) {
	root, dir := newProject(t)
	writePolicyFile(t, dir, "test-policy.rego", forbiddenNameRego)

	loaded := loadProject(t, root)
	if len(loaded.Policies) != 1 {
		t.Fatalf("Expected 1 policy, got %d", len(loaded.Policies))
	}

	policy := loaded.Policies[0]
	if policy.Name != "test-policy" {
		t.Errorf("Expected name 'test-policy', got '%s'", policy.Name)
	}
	if policy.Rego != forbiddenNameRego {
		t.Error("Rego content doesn't match")
	}
	if !policy.Enabled {
		t.Error("Policy should be enabled by default")
	}
	if policy.Severity != SeverityError {
		t.Errorf("Expected default severity error, got %s", policy.Severity)
	}
	if policy.Description != `Blocks components named "forbidden"` {
		t.Errorf("Unexpected description: %q", policy.Description)
	}
	if policy.Source() != ".iotworkbench/policies/test-policy.rego" {
		t.Errorf("Unexpected source %q", policy.Source())
	}
}

func TestLoad_JSONDefinition(t *testing.T) {
	root, dir := newProject(t)
	writePolicyFile(t, dir, "commented.json", `{
	// Owned by the device team
	"name": "commented",
	"description": "A test policy",
	"rego": "package commented",
	"severity": "warning",
	"tags": ["team"],
}`)

	loaded := loadProject(t, root)
	if len(loaded.Policies) != 1 {
		t.Fatalf("Expected 1 policy, got %d (skipped %+v)", len(loaded.Policies), loaded.Skipped)
	}

	policy := loaded.Policies[0]
	if policy.Name != "commented" {
		t.Errorf("Expected name 'commented', got '%s'", policy.Name)
	}
	if policy.Severity != SeverityWarning {
		t.Errorf("Expected severity warning, got %s", policy.Severity)
	}
	if !policy.Enabled {
		t.Error("JSON policies without an enabled field should be enabled")
	}
	if policy.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestLoad_JSONDisabledDefinition(t *testing.T) {
	root, dir := newProject(t)
	writePolicyFile(t, dir, "off.json", `{"name": "off", "rego": "package off", "enabled": false}`)

	loaded := loadProject(t, root)
	if len(loaded.Policies) != 1 || loaded.Policies[0].Enabled {
		t.Errorf("Expected one disabled policy, got %+v", loaded.Policies)
	}
}

func TestLoad_Bundle(t *testing.T) {
	root, dir := newProject(t)
	writePolicyFile(t, dir, "bundle.json", `{
	"name": "iot-hub",
	"version": "1.0.0",
	"policies": [
		{"name": "hub-naming", "rego": "package hub"},
		{"name": "hub-region", "rego": "package region", "severity": "info"}
	]
}`)

	loaded := loadProject(t, root)
	if len(loaded.Policies) != 2 {
		t.Fatalf("Expected 2 policies in bundle, got %d (skipped %+v)", len(loaded.Policies), loaded.Skipped)
	}
	for _, p := range loaded.Policies {
		if p.Tags[len(p.Tags)-1] != "bundle:iot-hub" {
			t.Errorf("Expected bundle tag on %s, got %v", p.Name, p.Tags)
		}
		if p.Source() != ".iotworkbench/policies/bundle.json" {
			t.Errorf("Unexpected source %q", p.Source())
		}
	}
	if loaded.Policies[1].Severity != SeverityInfo {
		t.Errorf("Expected info severity, got %s", loaded.Policies[1].Severity)
	}
}

func TestLoad_SkipsInvalidFiles(t *testing.T) {
	root, dir := newProject(t)

	files := map[string]string{
		"good.rego":      noopRego,
		"README.md":      "# Policies",
		"broken.json":    "{not json",
		"anonymous.json": `{"rego": "package x"}`,
		"empty.json":     `{"name": "empty"}`,
		"loud.json":      `{"name": "loud", "rego": "package loud", "severity": "fatal"}`,
		"nameless.json":  `{"policies": [{"name": "a", "rego": "package a"}]}`,
	}
	for name, content := range files {
		writePolicyFile(t, dir, name, content)
	}

	loaded := loadProject(t, root)
	if len(loaded.Policies) != 1 || loaded.Policies[0].Name != "good" {
		t.Errorf("Expected only the good policy, got %+v", loaded.Policies)
	}
	if len(loaded.Skipped) != 5 {
		t.Errorf("Expected 5 skipped files, got %+v", loaded.Skipped)
	}
}

func TestLoad_Recursive(t *testing.T) {
	root, dir := newProject(t)
	writePolicyFile(t, dir, "root.rego", "package root")
	writePolicyFile(t, filepath.Join(dir, "hub"), "nested.rego", "package nested")

	loaded := loadProject(t, root)
	if len(loaded.Policies) != 2 {
		t.Errorf("Expected 2 policies (including nested), got %d", len(loaded.Policies))
	}
}

func TestLoad_DuplicateNames(t *testing.T) {
	root, dir := newProject(t)
	writePolicyFile(t, dir, "region.rego", "package region")
	writePolicyFile(t, filepath.Join(dir, "zz"), "region.json", `{"name": "region", "rego": "package other"}`)

	loaded := loadProject(t, root)
	if len(loaded.Policies) != 1 {
		t.Fatalf("Expected the first region policy only, got %d", len(loaded.Policies))
	}
	if len(loaded.Skipped) != 1 || !strings.Contains(loaded.Skipped[0].Err.Error(), "already defined") {
		t.Errorf("Expected duplicate to be skipped, got %+v", loaded.Skipped)
	}
}

func TestLoad_PoliciesPathIsFile(t *testing.T) {
	root := t.TempDir()
	layout := config.DefaultLayout()
	writePolicyFile(t, filepath.Dir(filepath.Join(root, layout.PoliciesFolder)), filepath.Base(layout.PoliciesFolder), "not a folder")

	if _, err := NewLoader(layout, zerolog.Nop()).Load(context.Background(), root); err == nil {
		t.Error("Expected error when the policies folder is a file")
	}
}

func TestLeadingComment(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "single line comment",
			content:  "# Hub names must be unique\npackage test",
			expected: "Hub names must be unique",
		},
		{
			name:     "multi line comment",
			content:  "# Deployments need a resource group\n# in the selected subscription\npackage test",
			expected: "Deployments need a resource group in the selected subscription",
		},
		{
			name:     "comment after package",
			content:  "package test\n\n# Only hubs\n\nimport rego.v1",
			expected: "Only hubs",
		},
		{
			name:     "no comment",
			content:  "package test",
			expected: "",
		},
		{
			name:     "comment after code",
			content:  "# Header\npackage test\n# Trailer",
			expected: "Header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := leadingComment(tt.content); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestSetPolicyDisabled(t *testing.T) {
	layout := config.DefaultLayout()
	root := t.TempDir()

	err := SetPolicyDisabled(root, layout, "cloud-session", true)
	if err == nil || !engine.IsPrerequisite(err) {
		t.Fatalf("Expected prerequisite error outside a project, got %v", err)
	}

	descriptor := "{\n    \"projectHostType\": \"Workspace\",\n    \"boardId\": \"esp32\"\n}"
	if err := os.WriteFile(filepath.Join(root, layout.ProjectFile), []byte(descriptor), 0644); err != nil {
		t.Fatalf("Failed to write descriptor: %v", err)
	}

	if err := SetPolicyDisabled(root, layout, "cloud-session", true); err != nil {
		t.Fatalf("Failed to disable policy: %v", err)
	}
	if err := SetPolicyDisabled(root, layout, "component-naming", true); err != nil {
		t.Fatalf("Failed to disable policy: %v", err)
	}
	// Disabling twice keeps one entry.
	if err := SetPolicyDisabled(root, layout, "cloud-session", true); err != nil {
		t.Fatalf("Failed to disable policy: %v", err)
	}

	names, err := DisabledPolicies(root, layout)
	if err != nil {
		t.Fatalf("Failed to read disabled policies: %v", err)
	}
	if strings.Join(names, ",") != "component-naming,cloud-session" {
		t.Errorf("Unexpected disabled policies %v", names)
	}

	if err := SetPolicyDisabled(root, layout, "component-naming", false); err != nil {
		t.Fatalf("Failed to enable policy: %v", err)
	}
	names, err = DisabledPolicies(root, layout)
	if err != nil {
		t.Fatalf("Failed to read disabled policies: %v", err)
	}
	if strings.Join(names, ",") != "cloud-session" {
		t.Errorf("Unexpected disabled policies %v", names)
	}

	d, err := engine.ReadDescriptor(root, layout)
	if err != nil {
		t.Fatalf("Failed to read descriptor: %v", err)
	}
	if board, _ := d.GetString(engine.KeyBoardID); board != "esp32" {
		t.Errorf("Expected other keys to be kept, got boardId %q", board)
	}
}
