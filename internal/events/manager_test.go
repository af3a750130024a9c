package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func newTestManager(buf *bytes.Buffer) *Manager {
	log := zerolog.New(buf)
	return NewManager(log)
}

func TestEmitWritesEventTypeAndModule(t *testing.T) {
	var buf bytes.Buffer
	m := newTestManager(&buf)

	m.Emit(PlanCompleted, "oms", map[string]interface{}{"plan_id": "p1"})

	var logged map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logged); err != nil {
		t.Fatalf("emitted log line was not valid JSON: %v", err)
	}
	if logged["event_type"] != string(PlanCompleted) {
		t.Errorf("event_type = %v, want %v", logged["event_type"], PlanCompleted)
	}
	if logged["module"] != "oms" {
		t.Errorf("module = %v, want oms", logged["module"])
	}
}

func TestEmitErrorWrapsErrorAndContext(t *testing.T) {
	var buf bytes.Buffer
	m := newTestManager(&buf)

	m.EmitError("decision", errors.New("no executable decision"), map[string]interface{}{"user_id": "u1"})

	var logged map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logged); err != nil {
		t.Fatalf("emitted log line was not valid JSON: %v", err)
	}
	if logged["event_type"] != string(ErrorOccurred) {
		t.Errorf("event_type = %v, want %v", logged["event_type"], ErrorOccurred)
	}

	raw, ok := logged["event"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected nested event object, got %T", logged["event"])
	}
	data, ok := raw["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected event.data object, got %T", raw["data"])
	}
	if data["error"] != "no executable decision" {
		t.Errorf("data.error = %v, want %q", data["error"], "no executable decision")
	}
}
