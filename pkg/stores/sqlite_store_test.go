package stores

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/telemetry"
)

// setupTestStore creates a file-backed SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "journal.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newOperation(id, command, root string, started time.Time) *Operation {
	return &Operation{
		ID:          id,
		Command:     command,
		ProjectRoot: root,
		StartedAt:   started,
	}
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate in-memory store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestHealthCheck_NotInitialized(t *testing.T) {
	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := store.HealthCheck(context.Background()); err == nil {
		t.Error("expected health check to fail before Init")
	}
	if err := store.Migrate(context.Background()); err == nil {
		t.Error("expected migrate to fail before Init")
	}
}

// TestStoreMigrations tests that migrations are idempotent
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second migration should be a no-op: %v", err)
	}

	var count int
	err := store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('operations', 'operation_events')`,
	).Scan(&count)
	if err != nil {
		t.Fatalf("failed to query schema: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 tables, got %d", count)
	}
}

func TestOperationCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	op := newOperation("op-1", "compile", "/work/weather", started)

	if err := store.CreateOperation(ctx, op); err != nil {
		t.Fatalf("failed to create operation: %v", err)
	}

	got, err := store.GetOperation(ctx, "op-1")
	if err != nil {
		t.Fatalf("failed to get operation: %v", err)
	}
	if got.Status != OperationStatusRunning {
		t.Errorf("expected status running, got %s", got.Status)
	}
	if got.Result != "Null" {
		t.Errorf("expected result Null, got %s", got.Result)
	}
	if got.Telemetry != "{}" {
		t.Errorf("expected empty telemetry, got %s", got.Telemetry)
	}
	if got.FinishedAt != nil {
		t.Error("expected finished_at to be nil")
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("expected started_at %v, got %v", started, got.StartedAt)
	}

	finished := started.Add(90 * time.Second)
	msg := "Compile failed"
	op.FinishedAt = &finished
	op.Operator = "Project.compile"
	op.Result = "Failed"
	op.ErrorMessage = &msg
	op.Telemetry = `{"result":"Failed"}`

	if err := store.FinishOperation(ctx, op); err != nil {
		t.Fatalf("failed to finish operation: %v", err)
	}

	got, err = store.GetOperation(ctx, "op-1")
	if err != nil {
		t.Fatalf("failed to get operation: %v", err)
	}
	if got.Status != OperationStatusFinished {
		t.Errorf("expected status finished, got %s", got.Status)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != msg {
		t.Errorf("expected error message %q, got %v", msg, got.ErrorMessage)
	}
	if got.Duration() != 90*time.Second {
		t.Errorf("expected duration 90s, got %v", got.Duration())
	}
}

func TestGetOperation_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetOperation(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	err = store.FinishOperation(context.Background(), &Operation{ID: "missing"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on finish, got %v", err)
	}
}

func TestListOperations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ops := []*Operation{
		newOperation("a", "compile", "/work/a", base),
		newOperation("b", "upload", "/work/a", base.Add(time.Minute)),
		newOperation("c", "deploy", "/work/b", base.Add(2*time.Minute)),
	}
	for _, op := range ops {
		if err := store.CreateOperation(ctx, op); err != nil {
			t.Fatalf("failed to create operation %s: %v", op.ID, err)
		}
	}

	all, err := store.ListOperations(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list operations: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 operations, got %d", len(all))
	}
	if all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("expected newest first, got %s..%s", all[0].ID, all[2].ID)
	}

	root := "/work/a"
	filtered, err := store.ListOperations(ctx, &root, 10, 0)
	if err != nil {
		t.Fatalf("failed to list operations: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("expected 2 operations for %s, got %d", root, len(filtered))
	}

	page, err := store.ListOperations(ctx, nil, 1, 1)
	if err != nil {
		t.Fatalf("failed to list operations: %v", err)
	}
	if len(page) != 1 || page[0].ID != "b" {
		t.Errorf("expected page with b, got %+v", page)
	}
}

func TestEventOperations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	op := newOperation("op-1", "deploy", "/work/a", time.Now().UTC())
	if err := store.CreateOperation(ctx, op); err != nil {
		t.Fatalf("failed to create operation: %v", err)
	}

	details := `{"reasons":["No resource group selected for db"]}`
	events := []*OperationEvent{
		{OperationID: "op-1", Type: "phase.started", Phase: "deploy", Level: EventLevelInfo, Message: "Phase deploy started", Timestamp: time.Now().UTC()},
		{OperationID: "op-1", Type: "policy.denied", Phase: "deploy", Component: "db", Level: EventLevelWarning, Message: "Policy denied deploy of db", Details: &details, Timestamp: time.Now().UTC()},
		{OperationID: "op-1", Type: "phase.finished", Phase: "deploy", Level: EventLevelError, Message: "Phase deploy finished: Failed", Timestamp: time.Now().UTC()},
	}
	for _, e := range events {
		if err := store.AppendEvent(ctx, e); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
		if e.ID == 0 {
			t.Error("expected event ID to be assigned")
		}
	}

	got, err := store.GetEvents(ctx, "op-1", nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Type != "phase.started" || got[2].Type != "phase.finished" {
		t.Errorf("events out of order: %s, %s", got[0].Type, got[2].Type)
	}
	if got[1].Details == nil || *got[1].Details != details {
		t.Errorf("expected details %s, got %v", details, got[1].Details)
	}

	level := EventLevelWarning
	warnings, err := store.GetEvents(ctx, "op-1", &level, 10, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(warnings) != 1 || warnings[0].Component != "db" {
		t.Errorf("expected one warning for db, got %+v", warnings)
	}
}

func TestAppendEvent_UnknownOperation(t *testing.T) {
	store := setupTestStore(t)

	err := store.AppendEvent(context.Background(), &OperationEvent{
		OperationID: "missing",
		Type:        "phase.started",
		Level:       EventLevelInfo,
		Timestamp:   time.Now().UTC(),
	})
	if err == nil {
		t.Error("expected foreign key violation")
	}
}

func TestCascadeDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	old := newOperation("old", "compile", "/work/a", now.Add(-48*time.Hour))
	recent := newOperation("recent", "compile", "/work/a", now)
	for _, op := range []*Operation{old, recent} {
		if err := store.CreateOperation(ctx, op); err != nil {
			t.Fatalf("failed to create operation: %v", err)
		}
		if err := store.AppendEvent(ctx, &OperationEvent{
			OperationID: op.ID,
			Type:        "phase.started",
			Level:       EventLevelInfo,
			Timestamp:   op.StartedAt,
		}); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
	}

	n, err := store.DeleteOperationsBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("failed to delete operations: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deleted operation, got %d", n)
	}

	events, err := store.GetEvents(ctx, "old", nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected events to be deleted with their operation, got %d", len(events))
	}

	if _, err := store.GetOperation(ctx, "recent"); err != nil {
		t.Errorf("recent operation should survive: %v", err)
	}
}

func TestJournal(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var logs bytes.Buffer
	journal := NewJournal(store, zerolog.New(&logs))

	op, err := journal.Begin(ctx, "upload", "/work/weather")
	if err != nil {
		t.Fatalf("failed to begin operation: %v", err)
	}
	if op.ID == "" {
		t.Fatal("expected operation ID")
	}

	publisher, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}
	publisher.Subscribe(journal.Subscriber(ctx, op.ID), nil)
	if err := publisher.PublishPhaseStarted("upload", "/work/weather"); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}
	if err := publisher.PublishPolicyDenied("upload", "hub", []string{"not approved"}); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	outcome := engine.NewOperationOutcome("Project.upload", engine.OutcomeFailed, "Upload failed")
	if err := journal.Finish(ctx, op, outcome); err != nil {
		t.Fatalf("failed to finish operation: %v", err)
	}

	got, err := store.GetOperation(ctx, op.ID)
	if err != nil {
		t.Fatalf("failed to get operation: %v", err)
	}
	if got.Result != "Failed" || got.Operator != "Project.upload" {
		t.Errorf("unexpected result %s by %s", got.Result, got.Operator)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "Upload failed" {
		t.Errorf("expected error message, got %v", got.ErrorMessage)
	}

	var props map[string]string
	if err := json.Unmarshal([]byte(got.Telemetry), &props); err != nil {
		t.Fatalf("telemetry is not JSON: %v", err)
	}
	if props["operator"] != "Project.upload" {
		t.Errorf("expected operator in telemetry, got %v", props)
	}

	events, err := store.GetEvents(ctx, op.ID, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 journaled events, got %d", len(events))
	}
	if events[1].Details == nil {
		t.Error("expected policy denial details")
	}

	history, err := journal.History(ctx, "/work/weather", 5)
	if err != nil {
		t.Fatalf("failed to read history: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("expected 1 history entry, got %d", len(history))
	}
}

func TestJournal_FinishWithoutOutcome(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	journal := NewJournal(store, zerolog.Nop())

	op, err := journal.Begin(ctx, "settings", "/work/a")
	if err != nil {
		t.Fatalf("failed to begin operation: %v", err)
	}
	if err := journal.Finish(ctx, op, nil); err != nil {
		t.Fatalf("failed to finish operation: %v", err)
	}

	got, err := store.GetOperation(ctx, op.ID)
	if err != nil {
		t.Fatalf("failed to get operation: %v", err)
	}
	if got.Result != "Null" || got.ErrorMessage != nil {
		t.Errorf("expected Null result without error, got %s %v", got.Result, got.ErrorMessage)
	}

	n, err := journal.Prune(ctx, time.Hour)
	if err != nil {
		t.Fatalf("failed to prune: %v", err)
	}
	if n != 0 {
		t.Errorf("expected nothing pruned, got %d", n)
	}
}
