package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event emitted during a CLI run.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// Phase is the lifecycle phase, if applicable.
	Phase string `json:"phase,omitempty"`

	// Component is the component name, if applicable.
	Component string `json:"component,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants.
const (
	EventTypePhaseStarted       = "phase.started"
	EventTypePhaseFinished      = "phase.finished"
	EventTypeComponentOperation = "component.operation"
	EventTypePolicyDenied       = "policy.denied"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher fans events out to subscribers.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.EnableAsync {
		ep.buffer = make(chan Event, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishPhaseStarted publishes a phase started event.
func (ep *EventPublisher) PublishPhaseStarted(phase, projectRoot string) error {
	return ep.Publish(Event{
		Type:    EventTypePhaseStarted,
		Source:  "project",
		Phase:   phase,
		Message: fmt.Sprintf("Phase %s started for %s", phase, projectRoot),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"project_root": projectRoot,
		},
	})
}

// PublishPhaseFinished publishes a phase finished event carrying the
// outcome telemetry projection.
func (ep *EventPublisher) PublishPhaseFinished(phase, result string, duration time.Duration, outcome map[string]string) error {
	level := EventLevelInfo
	if result == "Failed" {
		level = EventLevelError
	}
	data := map[string]interface{}{
		"result":   result,
		"duration": duration.Seconds(),
	}
	for k, v := range outcome {
		data[k] = v
	}
	return ep.Publish(Event{
		Type:    EventTypePhaseFinished,
		Source:  "project",
		Phase:   phase,
		Message: fmt.Sprintf("Phase %s finished: %s", phase, result),
		Level:   level,
		Data:    data,
	})
}

// PublishComponentOperation publishes a component operation event.
func (ep *EventPublisher) PublishComponentOperation(operation, component, result string, err error) error {
	level := EventLevelInfo
	data := map[string]interface{}{
		"operation": operation,
		"result":    result,
	}
	if err != nil {
		level = EventLevelError
		data["error"] = err.Error()
	} else if result != "Succeeded" {
		level = EventLevelWarning
	}
	return ep.Publish(Event{
		Type:      EventTypeComponentOperation,
		Source:    "component",
		Component: component,
		Message:   fmt.Sprintf("%s %s: %s", component, operation, result),
		Level:     level,
		Data:      data,
	})
}

// PublishPolicyDenied publishes a policy denial event.
func (ep *EventPublisher) PublishPolicyDenied(phase, component string, reasons []string) error {
	return ep.Publish(Event{
		Type:      EventTypePolicyDenied,
		Source:    "policy_engine",
		Phase:     phase,
		Component: component,
		Message:   fmt.Sprintf("Policy denied %s of %s", phase, component),
		Level:     EventLevelWarning,
		Data: map[string]interface{}{
			"reasons": reasons,
		},
	})
}

// Subscribe adds a new event subscriber. A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processEvents delivers buffered events until shutdown, then drains the buffer.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	for {
		select {
		case event := <-ep.buffer:
			ep.deliverEvent(event)
		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

// deliverEvent delivers an event to all subscribers in subscription order.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops the publisher after delivering buffered events.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}
