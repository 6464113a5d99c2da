package cloud

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/runner"
	"github.com/iotworkbench/iotwb/pkg/templates"
	"github.com/rs/zerolog"
)

// ServiceDefinition is a cloud component entry of the project descriptor.
type ServiceDefinition struct {
	// Name identifies the component in progress messages.
	Name string `json:"name" validate:"required"`

	// Type is the component type tag.
	Type engine.ComponentType `json:"type" validate:"required"`

	// Provision holds the az arguments creating the resource.
	Provision []string `json:"provision,omitempty"`

	// Deploy holds the az arguments pushing code to the resource.
	Deploy []string `json:"deploy,omitempty"`
}

// Validate checks the definition.
func (d ServiceDefinition) Validate() error {
	if err := validator.New().Struct(d); err != nil {
		return err
	}
	if !d.Type.IsCloud() {
		return fmt.Errorf("invalid cloud component type: %s", d.Type)
	}
	return nil
}

// Service runs az commands for one cloud component. Use NewService to get a
// component exposing only the capabilities its definition configures.
type Service struct {
	def    ServiceDefinition
	runner runner.Runner
	cli    string
	logger zerolog.Logger
}

type provisionable struct{ *Service }

type deployable struct{ *Service }

type provisionDeployable struct{ *Service }

// Provision implements engine.Provisionable.
func (p provisionable) Provision(ctx context.Context, s *engine.CloudSession) (bool, error) {
	return p.run(ctx, "provision", p.def.Provision, s)
}

// Deploy implements engine.Deployable.
func (d deployable) Deploy(ctx context.Context, s *engine.CloudSession) (bool, error) {
	return d.run(ctx, "deploy", d.def.Deploy, s)
}

// Provision implements engine.Provisionable.
func (p provisionDeployable) Provision(ctx context.Context, s *engine.CloudSession) (bool, error) {
	return p.run(ctx, "provision", p.def.Provision, s)
}

// Deploy implements engine.Deployable.
func (p provisionDeployable) Deploy(ctx context.Context, s *engine.CloudSession) (bool, error) {
	return p.run(ctx, "deploy", p.def.Deploy, s)
}

// NewService validates def and returns the matching component.
func NewService(def ServiceDefinition, r runner.Runner, cli string, logger zerolog.Logger) (engine.Component, error) {
	if err := def.Validate(); err != nil {
		return nil, engine.NewValidationError(fmt.Sprintf("Invalid cloud component %q", def.Name), err)
	}
	if cli == "" {
		cli = DefaultCLI
	}
	s := &Service{
		def:    def,
		runner: r,
		cli:    cli,
		logger: logger.With().Str("component", "cloud").Str("service", def.Name).Logger(),
	}

	switch {
	case len(def.Provision) > 0 && len(def.Deploy) > 0:
		return provisionDeployable{s}, nil
	case len(def.Provision) > 0:
		return provisionable{s}, nil
	case len(def.Deploy) > 0:
		return deployable{s}, nil
	default:
		return s, nil
	}
}

// Name implements engine.Component.
func (s *Service) Name() string { return s.def.Name }

// ComponentType implements engine.Component.
func (s *Service) ComponentType() engine.ComponentType { return s.def.Type }

// CheckPrerequisites reports whether the Azure CLI can be found.
func (s *Service) CheckPrerequisites(ctx context.Context, phase engine.Phase) (bool, error) {
	if !s.runner.Available(s.cli) {
		s.logger.Warn().Str("cli", s.cli).Msg("Azure CLI is required for cloud components")
		return false, nil
	}
	return true, nil
}

func (s *Service) run(ctx context.Context, op string, args []string, session *engine.CloudSession) (bool, error) {
	if session == nil {
		return false, engine.NewInvariantError("cloud session is required", nil).WithComponent(s.def.Name)
	}
	tokens := map[string]string{
		"NAME":            s.def.Name,
		"SUBSCRIPTION_ID": session.SubscriptionID,
		"RESOURCE_GROUP":  session.ResourceGroup,
	}
	resolved := make([]string, len(args))
	for i, a := range args {
		resolved[i] = templates.ReplaceTokens(a, tokens)
	}

	res, err := s.runner.Run(ctx, runner.Request{Command: s.cli, Args: resolved})
	if err != nil {
		return false, engine.NewOperationalError(fmt.Sprintf("Failed to run %s", s.cli), err).
			WithComponent(s.def.Name).WithOperation(op)
	}
	if !res.Succeeded() {
		s.logger.Error().Str("operation", op).Int("exit_code", res.ExitCode).Msg("az command failed")
		return false, nil
	}
	return true, nil
}
