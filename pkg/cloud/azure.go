// Package cloud implements the cloud side of a project: the Azure CLI
// backed authenticator and service components provisioned and deployed
// through az commands.
package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/runner"
	"github.com/rs/zerolog"
)

// DefaultCLI is the Azure CLI executable name.
const DefaultCLI = "az"

type account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	User struct {
		Name string `json:"name"`
	} `json:"user"`
}

// AzureCLI authenticates with the signed-in Azure CLI account.
type AzureCLI struct {
	runner        runner.Runner
	cli           string
	resourceGroup string
	prompter      engine.Prompter
	logger        zerolog.Logger
}

var _ engine.Authenticator = (*AzureCLI)(nil)

// NewAzureCLI creates an authenticator. An empty resourceGroup makes
// Authenticate ask for one.
func NewAzureCLI(r runner.Runner, cli, resourceGroup string, prompter engine.Prompter, logger zerolog.Logger) *AzureCLI {
	if cli == "" {
		cli = DefaultCLI
	}
	return &AzureCLI{
		runner:        r,
		cli:           cli,
		resourceGroup: resourceGroup,
		prompter:      prompter,
		logger:        logger.With().Str("component", "azure").Logger(),
	}
}

// Authenticate reads the current account and resolves the resource group.
// The session has no resource group when the user dismisses the question.
func (a *AzureCLI) Authenticate(ctx context.Context) (*engine.CloudSession, error) {
	if !a.runner.Available(a.cli) {
		return nil, engine.NewPrerequisiteError("Azure CLI is required. Install it or set IOTWB_AZ_CLI.", nil)
	}

	res, err := runner.Check(ctx, a.runner, runner.Request{
		Command: a.cli,
		Args:    []string{"account", "show", "-o", "json"},
		Quiet:   true,
	})
	if err != nil {
		var exitErr *runner.ExitError
		if errors.As(err, &exitErr) {
			return nil, engine.NewPrerequisiteError("Please sign in to Azure with 'az login' first.", err)
		}
		return nil, fmt.Errorf("failed to query azure account: %w", err)
	}

	var acct account
	if err := json.Unmarshal([]byte(res.Stdout), &acct); err != nil {
		return nil, fmt.Errorf("failed to parse azure account: %w", err)
	}

	session := &engine.CloudSession{
		Account:        acct.User.Name,
		SubscriptionID: acct.ID,
		ResourceGroup:  a.resourceGroup,
	}

	if session.ResourceGroup == "" && a.prompter != nil {
		rg, ok, err := a.prompter.Input(ctx, "Resource group", "")
		if err != nil {
			return nil, err
		}
		if ok {
			session.ResourceGroup = rg
		}
	}

	a.logger.Info().
		Str("subscription", acct.Name).
		Str("resource_group", session.ResourceGroup).
		Msg("Azure account selected")

	return session, nil
}
