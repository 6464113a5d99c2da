package engine

import (
	"context"
)

// Notifier is the shared user-facing output and notification channel.
type Notifier interface {
	// Info reports an informational message.
	Info(message string)

	// Warn reports a warning.
	Warn(message string)

	// Error reports an error message.
	Error(message string)
}

// PickItem is one entry of a selection prompt.
type PickItem struct {
	// Label is the primary text.
	Label string `json:"label"`

	// Description is secondary text shown next to the label.
	Description string `json:"description,omitempty"`

	// Detail is shown below the label.
	Detail string `json:"detail,omitempty"`
}

// PickRequest describes a selection prompt.
type PickRequest struct {
	// Placeholder is the prompt title.
	Placeholder string `json:"placeholder"`

	// Items are the entries to choose from.
	Items []PickItem `json:"items"`
}

// Prompter asks the user questions. A dismissed prompt returns ok=false and
// a nil error.
type Prompter interface {
	// Pick asks the user to choose one item and returns its index.
	Pick(ctx context.Context, req PickRequest) (index int, ok bool, err error)

	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, message string) (bool, error)

	// Input asks for free text. defaultValue is returned on empty input.
	Input(ctx context.Context, prompt, defaultValue string) (value string, ok bool, err error)
}

// CloudSession is the authenticated cloud context shared by every
// provisionable and deployable component of one phase run.
type CloudSession struct {
	// Account is the signed-in user or service principal.
	Account string `json:"account,omitempty"`

	// SubscriptionID is the active subscription.
	SubscriptionID string `json:"subscription_id"`

	// ResourceGroup is the resource group components are created in.
	ResourceGroup string `json:"resource_group"`
}

// Complete returns true if the session has both a subscription and a resource group.
func (s *CloudSession) Complete() bool {
	return s != nil && s.SubscriptionID != "" && s.ResourceGroup != ""
}

// Authenticator signs in to the cloud identity provider. It is constructed
// only on the provision and deploy paths and passed to those phases.
type Authenticator interface {
	// Authenticate returns the cloud session. A nil session with a nil error
	// means the user cancelled.
	Authenticate(ctx context.Context) (*CloudSession, error)
}

// GateRequest is the input to a Gate evaluation.
type GateRequest struct {
	// Phase is the phase about to run the component.
	Phase Phase `json:"phase"`

	// Component is the component name.
	Component string `json:"component"`

	// ComponentType is the component type tag.
	ComponentType ComponentType `json:"component_type"`

	// ProjectRoot is the project root folder.
	ProjectRoot string `json:"project_root"`

	// HostType is the project host type.
	HostType ProjectHostType `json:"host_type"`

	// Session is the cloud session, if any.
	Session *CloudSession `json:"session,omitempty"`
}

// GateDecision is the result of a Gate evaluation.
type GateDecision struct {
	// Allowed is false when the operation must not run.
	Allowed bool `json:"allowed"`

	// Reasons explains a denial.
	Reasons []string `json:"reasons,omitempty"`
}

// Gate decides whether a confirmed provision or deploy item may run.
type Gate interface {
	Evaluate(ctx context.Context, req GateRequest) (*GateDecision, error)
}

// Observer receives phase and component events for tracing and metrics.
type Observer interface {
	// PhaseStarted is called before a phase runs. The returned context is used
	// for the rest of the phase.
	PhaseStarted(ctx context.Context, phase Phase, project string) context.Context

	// PhaseFinished is called with the phase outcome.
	PhaseFinished(ctx context.Context, phase Phase, outcome *OperationOutcome)

	// ComponentOperation is called after each component operation.
	ComponentOperation(ctx context.Context, operation string, component Component, ok bool, err error)
}
