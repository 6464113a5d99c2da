package policy

import (
	"fmt"
	"time"

	"github.com/iotworkbench/iotwb/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that should block operations.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Blocks returns true if a violation of this severity denies the operation.
func (s Severity) Blocks() bool {
	return s == SeverityError || s == SeverityCritical
}

// Validate checks that s is a known severity.
func (s Severity) Validate() error {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return nil
	}
	return fmt.Errorf("unknown severity %q", s)
}

// MetadataSource is the metadata key holding the file a project policy was
// read from, relative to the project root.
const MetadataSource = "source"

const builtinSource = "built-in"

// Source returns where p comes from: its file for project policies, or
// "built-in".
func (p *Policy) Source() string {
	if src, ok := p.Metadata[MetadataSource].(string); ok && src != "" {
		return src
	}
	return builtinSource
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// PolicyViolation represents a single policy violation.
type PolicyViolation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Component is the component that violated the policy.
	Component string `json:"component,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// DetectedAt is when the violation was detected.
	DetectedAt time.Time `json:"detected_at"`
}

// PolicyResult represents the result of policy evaluation.
type PolicyResult struct {
	// Allowed indicates if the operation is allowed.
	Allowed bool `json:"allowed"`

	// Violations lists the blocking policy violations.
	Violations []PolicyViolation `json:"violations,omitempty"`

	// Warnings lists violations that don't block operations and evaluation failures.
	Warnings []PolicyViolation `json:"warnings,omitempty"`

	// EvaluatedAt is when the policy was evaluated.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Messages returns the messages of the blocking violations.
func (r *PolicyResult) Messages() []string {
	out := make([]string, 0, len(r.Violations))
	for i := range r.Violations {
		out = append(out, r.Violations[i].Message)
	}
	return out
}

// PolicyInput is the input document seen by Rego policies as `input`.
type PolicyInput struct {
	// Phase is the phase about to run the component (provision or deploy).
	Phase engine.Phase `json:"phase"`

	// Component is the component name.
	Component string `json:"component"`

	// ComponentType is the component type tag.
	ComponentType engine.ComponentType `json:"component_type"`

	// ProjectRoot is the project root folder.
	ProjectRoot string `json:"project_root"`

	// HostType is the project host type.
	HostType engine.ProjectHostType `json:"host_type"`

	// Session is the cloud session, if any.
	Session *engine.CloudSession `json:"session,omitempty"`

	// Context provides additional evaluation context.
	Context *PolicyContext `json:"context"`
}

// NewPolicyInput builds the policy input for a gate request.
func NewPolicyInput(req engine.GateRequest) *PolicyInput {
	return &PolicyInput{
		Phase:         req.Phase,
		Component:     req.Component,
		ComponentType: req.ComponentType,
		ProjectRoot:   req.ProjectRoot,
		HostType:      req.HostType,
		Session:       req.Session,
		Context: &PolicyContext{
			Timestamp: time.Now(),
			Operation: string(req.Phase),
		},
	}
}

// PolicyContext provides context information for policy evaluation.
type PolicyContext struct {
	// User is the user performing the operation.
	User string `json:"user,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// Operation is the operation being performed.
	Operation string `json:"operation,omitempty"`

	// Metadata contains additional context metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
