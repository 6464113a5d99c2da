package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/iotworkbench/iotwb/pkg/cloud"
	"github.com/iotworkbench/iotwb/pkg/config"
	"github.com/iotworkbench/iotwb/pkg/device"
	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/policy"
	"github.com/iotworkbench/iotwb/pkg/project"
	"github.com/iotworkbench/iotwb/pkg/runner"
	"github.com/iotworkbench/iotwb/pkg/stores"
	"github.com/iotworkbench/iotwb/pkg/telemetry"
	"github.com/iotworkbench/iotwb/pkg/templates"
	"github.com/iotworkbench/iotwb/pkg/ui"
)

// workbench holds the collaborators built for one command invocation.
type workbench struct {
	root     string
	settings *config.Settings
	logger   zerolog.Logger
	tel      *telemetry.Telemetry
	policies *policy.Engine
	project  *policy.ProjectPolicies
	store    *stores.SQLiteStore
	journal  *stores.Journal
	deps     project.Deps
}

// newWorkbench loads settings and wires every collaborator. The caller must
// call close.
func newWorkbench(cmd *cobra.Command, opts *globalOptions) (*workbench, error) {
	ctx := cmd.Context()

	root, err := filepath.Abs(opts.projectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project path: %w", err)
	}

	settings, err := config.LoadSettings(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	logger := log.Logger

	telCfg := telemetry.FromSettings(settings, opts.version)
	telCfg.Logging.Level = zerolog.GlobalLevel().String()
	tel, err := telemetry.NewTelemetry(telCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	tel.LogEvents(telemetry.EventLevelWarning)

	w := &workbench{
		root:     root,
		settings: settings,
		logger:   logger,
		tel:      tel,
	}

	if err := w.wire(ctx, cmd, opts); err != nil {
		w.close(ctx)
		return nil, err
	}
	return w, nil
}

func (w *workbench) wire(ctx context.Context, cmd *cobra.Command, opts *globalOptions) error {
	schemas := config.NewSchemaRegistry()

	catalog, err := device.DefaultCatalog(schemas)
	if err != nil {
		return fmt.Errorf("failed to load board catalog: %w", err)
	}

	store, err := templates.NewStore(templates.Embedded(), w.logger)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	w.policies, err = policy.NewEngine(w.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}
	w.project, err = w.policies.LoadProjectPolicies(ctx, w.root, w.settings.Layout)
	if err != nil {
		return err
	}

	var prompter engine.Prompter
	if opts.yes || w.settings.AutoApprove {
		prompter = ui.NewAutoPrompter(w.logger)
	} else {
		if !ui.IsInteractive(os.Stdin) {
			w.logger.Debug().Msg("Standard input is not a terminal, reading answers from it")
		}
		prompter = ui.NewTerminalPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
	}

	w.deps = project.Deps{
		Settings:  w.settings,
		Runner:    runner.NewExecRunner(w.logger, cmd.ErrOrStderr(), w.settings.CommandTimeout),
		Templates: store,
		Catalog:   catalog,
		Schemas:   schemas,
		Hooks:     config.NewHookEvaluator(w.settings.HookTimeout, w.logger),
		Notifier:  ui.NewConsoleNotifier(cmd.OutOrStdout(), w.logger),
		Prompter:  prompter,
		Gate:      telemetry.NewGateRecorder(w.policies, w.tel),
		Observer:  telemetry.NewObserver(w.tel),
		Output:    cmd.OutOrStdout(),
		Logger:    w.logger,
	}

	if w.settings.JournalEnabled() {
		if err := w.openJournal(ctx); err != nil {
			w.logger.Warn().Err(err).Str("path", w.settings.Journal).Msg("Operation journal unavailable")
		}
	}
	return nil
}

func (w *workbench) openJournal(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(w.settings.Journal), 0o755); err != nil {
		return fmt.Errorf("failed to create journal folder: %w", err)
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: w.settings.Journal})
	if err != nil {
		return err
	}
	if err := store.Init(ctx); err != nil {
		return err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return err
	}

	w.store = store
	w.journal = stores.NewJournal(store, w.logger)
	return nil
}

// authenticator builds the cloud sign-in used by provision and deploy.
func (w *workbench) authenticator() engine.Authenticator {
	return cloud.NewAzureCLI(w.deps.Runner, w.settings.AzureCLI, w.settings.ResourceGroup, w.deps.Prompter, w.logger)
}

// deviceOptions returns the options device helpers run with.
func (w *workbench) deviceOptions() device.Options {
	return device.Options{
		Layout:     w.settings.Layout,
		Runner:     w.deps.Runner,
		Templates:  w.deps.Templates,
		Hooks:      w.deps.Hooks,
		Prompter:   w.deps.Prompter,
		Output:     w.deps.Output,
		Logger:     w.logger,
		ArduinoCLI: w.settings.ArduinoCLI,
		DockerCLI:  w.settings.DockerCLI,
	}
}

// record runs fn as a journaled operation. fn returns the outcome to store,
// which may be nil when nothing ran.
func (w *workbench) record(ctx context.Context, command string, fn func(ctx context.Context) (*engine.OperationOutcome, error)) error {
	var op *stores.Operation
	if w.journal != nil {
		var err error
		op, err = w.journal.Begin(ctx, command, w.root)
		if err != nil {
			w.logger.Warn().Err(err).Msg("Failed to journal operation")
		} else {
			w.tel.Logger.WithOperationID(op.ID).WithProject(w.root).Debug("Operation journaled")
			w.tel.Events.Subscribe(w.journal.Subscriber(context.WithoutCancel(ctx), op.ID), nil)
		}
	}

	outcome, runErr := fn(ctx)

	if op != nil {
		if outcome == nil && runErr != nil {
			result := engine.OutcomeFailed
			if engine.IsCancelled(runErr) {
				result = engine.OutcomeCanceled
			}
			outcome = engine.NewOperationOutcome(command, result, engine.UserMessage(runErr))
		}
		// The command context may already be cancelled.
		if err := w.journal.Finish(context.WithoutCancel(ctx), op, outcome); err != nil {
			w.logger.Warn().Err(err).Msg("Failed to finish journal operation")
		}
	}
	return runErr
}

// runPhase opens the project and runs one lifecycle phase on it. A phase
// that returns false fails the command only when its outcome is Failed.
func (w *workbench) runPhase(ctx context.Context, phase engine.Phase, fn func(ctx context.Context, p project.Project) (bool, error)) error {
	var (
		ok      bool
		outcome *engine.OperationOutcome
	)
	err := w.record(ctx, string(phase), func(ctx context.Context) (*engine.OperationOutcome, error) {
		p, err := project.Open(ctx, w.root, w.deps)
		if err != nil {
			return nil, err
		}
		ok, err = fn(ctx, p)
		outcome = p.Outcome()
		return outcome, err
	})
	if err != nil {
		return err
	}
	if !ok && (outcome == nil || outcome.Result() == engine.OutcomeFailed) {
		return fmt.Errorf("%s did not complete", phase)
	}
	return nil
}

// close flushes telemetry and closes the journal.
func (w *workbench) close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	if w.tel != nil {
		errs = append(errs, w.tel.Shutdown(ctx))
	}
	if w.store != nil {
		errs = append(errs, w.store.Close())
	}
	if err := errors.Join(errs...); err != nil {
		w.logger.Warn().Err(err).Msg("Shutdown incomplete")
	}
}
