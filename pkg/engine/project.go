package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/iotworkbench/iotwb/pkg/config"
	"github.com/rs/zerolog"
)

// User-facing phase messages.
const (
	MsgCompileFailed      = "Unable to compile the device code, please check output window for detail."
	MsgUploadFailed       = "Unable to upload the sketch, please check output window for detail."
	MsgNothingToProvision = "Congratulations! There is no Azure service to provision in this project."
	MsgProvisionCancelled = "Provision cancelled."
	MsgNothingToDeploy    = "Congratulations! The project does not contain any Azure components to be deployed."
	MsgDeployCancelled    = "Component deployment cancelled."
	MsgDeploySucceeded    = "Azure deploy succeeded."

	provisionPlaceholder = "Provision process"
	deployPlaceholder    = "Deploy process"
	continueDetail       = "Click to continue"
	progressSeparator    = "   -   "
)

// ProjectConfig configures a Project.
type ProjectConfig struct {
	// Root is the project root folder.
	Root string

	// HostType is the project host type.
	HostType ProjectHostType

	// Layout holds the project file and folder names.
	Layout config.Layout

	// Notifier receives user-facing messages. Defaults to a log notifier.
	Notifier Notifier

	// Prompter asks per-item confirmations during provision and deploy.
	Prompter Prompter

	// Gate, if set, is consulted before every confirmed provision or deploy item.
	Gate Gate

	// Observer, if set, receives phase and component events.
	Observer Observer

	// Logger is the structured logger.
	Logger zerolog.Logger
}

// Project owns an ordered list of components and drives them through the
// lifecycle phases. Phases run components one at a time in registration order.
type Project struct {
	root       string
	hostType   ProjectHostType
	layout     config.Layout
	components []registration
	notifier   Notifier
	prompter   Prompter
	gate       Gate
	observer   Observer
	logger     zerolog.Logger
	outcome    *OperationOutcome
}

// NewProject creates a project with no components.
func NewProject(cfg ProjectConfig) *Project {
	logger := cfg.Logger.With().Str("component", "project").Str("root", cfg.Root).Logger()
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	hostType := cfg.HostType
	if hostType == "" {
		hostType = HostTypeUnknown
	}
	return &Project{
		root:     cfg.Root,
		hostType: hostType,
		layout:   cfg.Layout,
		notifier: notifier,
		prompter: cfg.Prompter,
		gate:     cfg.Gate,
		observer: cfg.Observer,
		logger:   logger,
	}
}

// Root returns the project root folder.
func (p *Project) Root() string { return p.root }

// HostType returns the project host type.
func (p *Project) HostType() ProjectHostType { return p.hostType }

// Layout returns a copy of the project layout.
func (p *Project) Layout() config.Layout { return p.layout }

// Notifier returns the project's notification channel.
func (p *Project) Notifier() Notifier { return p.notifier }

// Prompter returns the project's prompter.
func (p *Project) Prompter() Prompter { return p.prompter }

// Logger returns the project logger.
func (p *Project) Logger() zerolog.Logger { return p.logger }

// Outcome returns the outcome of the most recent phase, or nil if no phase ran.
func (p *Project) Outcome() *OperationOutcome { return p.outcome }

// AddComponent registers a component and resolves its capabilities.
func (p *Project) AddComponent(c Component) error {
	if c == nil {
		return NewInvariantError("cannot register a nil component", nil)
	}
	if c.Name() == "" {
		return NewInvariantError("component name is required", nil)
	}
	if err := c.ComponentType().Validate(); err != nil {
		return NewValidationError("invalid component", err).WithComponent(c.Name())
	}
	r := register(c)
	if c.ComponentType() == ComponentTypeDevice && r.device == nil {
		return NewInvariantError(
			fmt.Sprintf("component %s is tagged Device but does not implement the device operations", c.Name()), nil).
			WithComponent(c.Name())
	}
	p.components = append(p.components, r)

	p.logger.Debug().
		Str("name", c.Name()).
		Str("type", string(c.ComponentType())).
		Str("capabilities", r.capabilities.String()).
		Msg("Component registered")

	return nil
}

// Components returns the registered components in registration order.
func (p *Project) Components() []Component {
	out := make([]Component, len(p.components))
	for i := range p.components {
		out[i] = p.components[i].component
	}
	return out
}

// Devices returns the registered devices in registration order.
func (p *Project) Devices() []Device {
	var out []Device
	for i := range p.components {
		if p.components[i].device != nil {
			out = append(out, p.components[i].device)
		}
	}
	return out
}

// Compile compiles every compilable component. A component that fails its
// prerequisite check aborts the phase with false. A component whose compile
// returns false is reported and the next component still runs.
func (p *Project) Compile(ctx context.Context) (bool, error) {
	return p.runBuildPhase(ctx, PhaseCompile, CapabilityCompile, MsgCompileFailed,
		func(ctx context.Context, r *registration) (bool, error) {
			return r.compilable.Compile(ctx)
		},
		func(r *registration) prerequisiteCheck {
			return r.compilable.CheckPrerequisites
		})
}

// Upload uploads every uploadable component, with the same abort and
// continuation rules as Compile.
func (p *Project) Upload(ctx context.Context) (bool, error) {
	return p.runBuildPhase(ctx, PhaseUpload, CapabilityUpload, MsgUploadFailed,
		func(ctx context.Context, r *registration) (bool, error) {
			return r.uploadable.Upload(ctx)
		},
		func(r *registration) prerequisiteCheck {
			return r.uploadable.CheckPrerequisites
		})
}

func (p *Project) runBuildPhase(
	ctx context.Context,
	phase Phase,
	capability Capability,
	failureMessage string,
	run func(context.Context, *registration) (bool, error),
	prerequisites func(*registration) prerequisiteCheck,
) (ok bool, err error) {
	ctx, outcome := p.beginPhase(ctx, phase)
	defer func() { p.endPhase(ctx, phase, outcome, ok, err) }()

	for i := range p.components {
		r := &p.components[i]
		if !r.capabilities.Has(capability) {
			continue
		}

		ready, err := p.checkPrerequisites(ctx, phase, outcome, r, prerequisites(r))
		if err != nil || !ready {
			return false, err
		}

		res, err := run(ctx, r)
		p.recordStep(ctx, outcome, string(phase), r.component, res, err)
		if err != nil {
			return false, err
		}
		if !res {
			p.notifier.Error(failureMessage)
		}
	}

	return true, nil
}

// Provision provisions every provisionable component. It returns false when
// there is nothing to provision, a prerequisite is not met, the user declines
// an item, or an item fails. auth is used once, and only when at least one
// component is provisionable. An empty set ends the phase as Succeeded.
func (p *Project) Provision(ctx context.Context, auth Authenticator) (ok bool, err error) {
	ctx, outcome := p.beginPhase(ctx, PhaseProvision)
	var empty bool
	defer func() { p.endPhase(ctx, PhaseProvision, outcome, ok || empty, err) }()

	var items []*registration
	for i := range p.components {
		r := &p.components[i]
		if !r.capabilities.Has(CapabilityProvision) {
			continue
		}
		ready, err := p.checkPrerequisites(ctx, PhaseProvision, outcome, r, r.provisionable.CheckPrerequisites)
		if err != nil || !ready {
			return false, err
		}
		items = append(items, r)
	}

	if len(items) == 0 {
		p.notifier.Info(MsgNothingToProvision)
		empty = true
		return false, nil
	}

	session, err := p.authenticate(ctx, auth)
	if err != nil {
		return false, err
	}
	if !session.Complete() {
		_ = outcome.AppendStep("authenticate", OutcomeCanceled, "subscription or resource group not selected")
		return false, nil
	}

	names := registrationNames(items)
	for i, r := range items {
		confirmed, err := p.confirmItem(ctx, provisionPlaceholder, names, i)
		if err != nil {
			return false, err
		}
		if !confirmed {
			_ = outcome.AppendStep(r.component.Name()+".provision", OutcomeCanceled, "")
			return false, nil
		}

		allowed, err := p.gateAllows(ctx, PhaseProvision, r, session)
		if err != nil {
			return false, err
		}
		if !allowed {
			p.notifier.Warn(MsgProvisionCancelled)
			return false, nil
		}

		res, err := r.provisionable.Provision(ctx, session)
		p.recordStep(ctx, outcome, string(PhaseProvision), r.component, res, err)
		if err != nil {
			return false, err
		}
		if !res {
			p.notifier.Warn(MsgProvisionCancelled)
			return false, nil
		}
	}

	return true, nil
}

// Deploy deploys every deployable component. Like Provision it returns false
// when there is nothing to do or a prerequisite is not met. A declined item
// returns a cancellation error and a failed item returns an operational
// error, since a partially deployed set must not end silently. An empty set
// ends the phase as Succeeded.
func (p *Project) Deploy(ctx context.Context, auth Authenticator) (ok bool, err error) {
	ctx, outcome := p.beginPhase(ctx, PhaseDeploy)
	var empty bool
	defer func() { p.endPhase(ctx, PhaseDeploy, outcome, ok || empty, err) }()

	var items []*registration
	for i := range p.components {
		r := &p.components[i]
		if !r.capabilities.Has(CapabilityDeploy) {
			continue
		}
		ready, err := p.checkPrerequisites(ctx, PhaseDeploy, outcome, r, r.deployable.CheckPrerequisites)
		if err != nil || !ready {
			return false, err
		}
		items = append(items, r)
	}

	if len(items) == 0 {
		p.notifier.Info(MsgNothingToDeploy)
		empty = true
		return false, nil
	}

	session, err := p.authenticate(ctx, auth)
	if err != nil {
		return false, err
	}
	if session == nil {
		return false, NewCancelOperationError(MsgDeployCancelled)
	}

	names := registrationNames(items)
	for i, r := range items {
		confirmed, err := p.confirmItem(ctx, deployPlaceholder, names, i)
		if err != nil {
			return false, err
		}
		if !confirmed {
			return false, NewCancelOperationError(MsgDeployCancelled).
				WithComponent(r.component.Name()).
				WithOperation(string(PhaseDeploy))
		}

		allowed, err := p.gateAllows(ctx, PhaseDeploy, r, session)
		if err != nil {
			return false, err
		}
		if !allowed {
			return false, NewOperationalError(
				fmt.Sprintf("The deployment of %s was denied by policy.", r.component.Name()), nil).
				WithCode(ErrCodePolicyDenied).
				WithComponent(r.component.Name())
		}

		res, err := r.deployable.Deploy(ctx, session)
		p.recordStep(ctx, outcome, string(PhaseDeploy), r.component, res, err)
		if err != nil {
			return false, err
		}
		if !res {
			return false, NewOperationalError(
				fmt.Sprintf("The deployment of %s failed.", r.component.Name()), nil).
				WithComponent(r.component.Name()).
				WithOperation(string(PhaseDeploy))
		}
	}

	p.notifier.Info(MsgDeploySucceeded)
	return true, nil
}

// ConfigureProjectEnvironmentCore scaffolds the environment of every device
// into projectPath and stops at the first device that returns false.
func (p *Project) ConfigureProjectEnvironmentCore(ctx context.Context, projectPath string, scaffold ScaffoldType) (ok bool, err error) {
	ctx, outcome := p.beginPhase(ctx, PhaseConfigure)
	defer func() { p.endPhase(ctx, PhaseConfigure, outcome, ok, err) }()

	for i := range p.components {
		d := p.components[i].device
		if d == nil {
			continue
		}
		res, err := d.ConfigDeviceEnvironment(ctx, projectPath, scaffold)
		p.recordStep(ctx, outcome, "configDeviceEnvironment", d, res, err)
		if err != nil {
			return false, err
		}
		if !res {
			return false, nil
		}
	}
	return true, nil
}

// ConfigDeviceSettings runs settings configuration on every device. A failing
// device is reported and the remaining devices still run.
func (p *Project) ConfigDeviceSettings(ctx context.Context) bool {
	ctx, outcome := p.beginPhase(ctx, PhaseSettings)
	defer func() { p.endPhase(ctx, PhaseSettings, outcome, true, nil) }()

	for i := range p.components {
		d := p.components[i].device
		if d == nil {
			continue
		}
		res, err := d.ConfigDeviceSettings(ctx)
		p.recordStep(ctx, outcome, "configDeviceSettings", d, res, err)
		if err != nil && !IsCancelled(err) {
			p.notifier.Error(UserMessage(err))
		}
	}
	return true
}

type prerequisiteCheck func(context.Context, Phase) (bool, error)

func (p *Project) checkPrerequisites(
	ctx context.Context,
	phase Phase,
	outcome *OperationOutcome,
	r *registration,
	check prerequisiteCheck,
) (bool, error) {
	ready, err := check(ctx, phase)
	if err != nil || !ready {
		p.recordStep(ctx, outcome, "checkPrerequisites", r.component, ready, err)
		p.logger.Info().
			Str("name", r.component.Name()).
			Str("phase", string(phase)).
			Msg("Prerequisites not met, phase aborted")
	}
	return ready, err
}

func (p *Project) authenticate(ctx context.Context, auth Authenticator) (*CloudSession, error) {
	if auth == nil {
		return nil, NewInvariantError("no cloud authenticator configured", nil)
	}
	session, err := auth.Authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	return session, nil
}

func (p *Project) confirmItem(ctx context.Context, placeholder string, names []string, current int) (bool, error) {
	if p.prompter == nil {
		return false, NewInvariantError("no prompter configured", nil)
	}
	_, ok, err := p.prompter.Pick(ctx, PickRequest{
		Placeholder: placeholder,
		Items: []PickItem{{
			Label:  ProgressLabel(names, current),
			Detail: continueDetail,
		}},
	})
	if err != nil {
		return false, fmt.Errorf("failed to confirm %s: %w", names[current], err)
	}
	return ok, nil
}

func (p *Project) gateAllows(ctx context.Context, phase Phase, r *registration, session *CloudSession) (bool, error) {
	if p.gate == nil {
		return true, nil
	}
	decision, err := p.gate.Evaluate(ctx, GateRequest{
		Phase:         phase,
		Component:     r.component.Name(),
		ComponentType: r.component.ComponentType(),
		ProjectRoot:   p.root,
		HostType:      p.hostType,
		Session:       session,
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate policy for %s: %w", r.component.Name(), err)
	}
	if !decision.Allowed {
		for _, reason := range decision.Reasons {
			p.notifier.Warn(fmt.Sprintf("%s: %s", r.component.Name(), reason))
		}
	}
	return decision.Allowed, nil
}

func (p *Project) beginPhase(ctx context.Context, phase Phase) (context.Context, *OperationOutcome) {
	if p.observer != nil {
		ctx = p.observer.PhaseStarted(ctx, phase, p.root)
	}
	p.logger.Debug().Str("phase", string(phase)).Msg("Phase started")
	return ctx, NewOperationOutcome("Project."+string(phase), OutcomeNull)
}

func (p *Project) endPhase(ctx context.Context, phase Phase, outcome *OperationOutcome, ok bool, err error) {
	switch {
	case err != nil && IsCancelled(err):
		outcome.Update(OutcomeCanceled, UserMessage(err))
	case err != nil:
		outcome.Update(OutcomeFailed, UserMessage(err))
	case ok:
		outcome.Update(OutcomeSucceeded)
	case outcome.Result() != OutcomeCanceled:
		outcome.Update(OutcomeFailed)
	}
	p.outcome = outcome

	if p.observer != nil {
		p.observer.PhaseFinished(ctx, phase, outcome)
	}
	p.logger.Debug().
		Str("phase", string(phase)).
		Str("result", string(outcome.Result())).
		Msg("Phase finished")
}

func (p *Project) recordStep(ctx context.Context, outcome *OperationOutcome, operation string, c Component, ok bool, err error) {
	state := OutcomeSucceeded
	details := ""
	switch {
	case err != nil && IsCancelled(err):
		state = OutcomeCanceled
		details = UserMessage(err)
	case err != nil:
		state = OutcomeFailed
		details = UserMessage(err)
	case !ok:
		state = OutcomeFailed
	}
	_ = outcome.AppendStep(c.Name()+"."+operation, state, details)

	if p.observer != nil {
		p.observer.ComponentOperation(ctx, operation, c, ok, err)
	}
}

// ProgressLabel renders the ordered item list with the current item marked,
// e.g. "1. hub   -   >> 2. functions".
func ProgressLabel(names []string, current int) string {
	parts := make([]string, len(names))
	for i, name := range names {
		if i == current {
			parts[i] = fmt.Sprintf(">> %d. %s", i+1, name)
		} else {
			parts[i] = fmt.Sprintf("%d. %s", i+1, name)
		}
	}
	return strings.Join(parts, progressSeparator)
}

func registrationNames(items []*registration) []string {
	names := make([]string, len(items))
	for i, r := range items {
		names[i] = r.component.Name()
	}
	return names
}
