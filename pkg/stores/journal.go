package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/telemetry"
)

// Journal records CLI operations and their telemetry events in a Store.
type Journal struct {
	store  Store
	logger zerolog.Logger
}

// NewJournal creates a journal on top of an initialized and migrated store.
func NewJournal(store Store, logger zerolog.Logger) *Journal {
	return &Journal{
		store:  store,
		logger: logger.With().Str("component", "journal").Logger(),
	}
}

// Begin records the start of a command against a project.
func (j *Journal) Begin(ctx context.Context, command, projectRoot string) (*Operation, error) {
	op := &Operation{
		ID:          uuid.New().String(),
		Command:     command,
		ProjectRoot: projectRoot,
		Status:      OperationStatusRunning,
		StartedAt:   time.Now().UTC(),
	}

	if err := j.store.CreateOperation(ctx, op); err != nil {
		return nil, err
	}

	j.logger.Debug().Str("operation_id", op.ID).Str("command", command).Msg("Operation started")
	return op, nil
}

// Finish stores the outcome of a command. A nil outcome finishes the
// operation with the Null result.
func (j *Journal) Finish(ctx context.Context, op *Operation, outcome *engine.OperationOutcome) error {
	now := time.Now().UTC()
	op.FinishedAt = &now
	op.Result = string(engine.OutcomeNull)
	op.Telemetry = "{}"

	if outcome != nil {
		props := outcome.Telemetry()
		data, err := json.Marshal(props)
		if err != nil {
			return fmt.Errorf("failed to marshal outcome telemetry: %w", err)
		}

		op.Operator = outcome.Operator()
		op.Result = string(outcome.Result())
		op.Telemetry = string(data)
		if msg, ok := props["errorMessage"]; ok {
			op.ErrorMessage = &msg
		}
	}

	if err := j.store.FinishOperation(ctx, op); err != nil {
		return err
	}

	j.logger.Debug().
		Str("operation_id", op.ID).
		Str("result", op.Result).
		Dur("duration", op.Duration()).
		Msg("Operation finished")
	return nil
}

// Subscriber returns a telemetry subscriber appending every event to the
// operation. Append failures are logged and do not interrupt the command.
func (j *Journal) Subscriber(ctx context.Context, operationID string) telemetry.EventSubscriber {
	return func(e telemetry.Event) {
		event := &OperationEvent{
			OperationID: operationID,
			Type:        e.Type,
			Phase:       e.Phase,
			Component:   e.Component,
			Level:       EventLevel(e.Level),
			Message:     e.Message,
			Timestamp:   e.Timestamp,
		}
		if len(e.Data) > 0 {
			if data, err := json.Marshal(e.Data); err == nil {
				details := string(data)
				event.Details = &details
			}
		}

		if err := j.store.AppendEvent(ctx, event); err != nil {
			j.logger.Warn().Err(err).Str("operation_id", operationID).Msg("Failed to journal event")
		}
	}
}

// History returns the most recent operations, optionally for one project.
func (j *Journal) History(ctx context.Context, projectRoot string, limit int) ([]*Operation, error) {
	var root *string
	if projectRoot != "" {
		root = &projectRoot
	}
	return j.store.ListOperations(ctx, root, limit, 0)
}

// Prune deletes operations older than the retention period.
func (j *Journal) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := j.store.DeleteOperationsBefore(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.logger.Info().Int64("count", n).Msg("Pruned journal operations")
	}
	return n, nil
}
