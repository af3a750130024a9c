// Package events provides a lightweight, log-backed event notification
// mechanism for the arbitrage core: decision emission, regime changes,
// plan outcomes, reconcile completion and PnL recording all flow through
// one Manager so an operator tailing structured logs sees a single
// consistent stream.
package events

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies the kind of event emitted.
type EventType string

const (
	DecisionEmitted      EventType = "DECISION_EMITTED"
	OpportunityDetected  EventType = "OPPORTUNITY_DETECTED"
	PlanStarted          EventType = "PLAN_STARTED"
	PlanCompleted        EventType = "PLAN_COMPLETED"
	PlanFailed           EventType = "PLAN_FAILED"
	OrderPlaced          EventType = "ORDER_PLACED"
	OrderFilled          EventType = "ORDER_FILLED"
	OrderRejected        EventType = "ORDER_REJECTED"
	ReconcileCompleted   EventType = "RECONCILE_COMPLETED"
	PnLRecorded          EventType = "PNL_RECORDED"
	RegimeChanged        EventType = "REGIME_CHANGED"
	ErrorOccurred        EventType = "ERROR_OCCURRED"
)

// Event represents a single emitted occurrence.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Manager emits events into structured logs. There is no subscriber bus -
// every module that wants to react to a given condition (e.g. the decision
// service reading fresh regime output) does so by reading the same
// relational/KV state the event describes, not by registering a handler
// here; Manager exists purely to give operators one consistent emission
// point for dashboards/log aggregation.
type Manager struct {
	log zerolog.Logger
}

// NewManager creates a new event manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		log: log.With().Str("service", "events").Logger(),
	}
}

// Emit records one event.
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	eventJSON, _ := json.Marshal(event)
	m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("event emitted")
}

// EmitError records an error event.
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	data := map[string]interface{}{
		"error": err.Error(),
	}
	if context != nil {
		data["context"] = context
	}
	m.Emit(ErrorOccurred, module, data)
}
