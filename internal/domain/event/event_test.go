package event

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{name: "requisition created", eventType: TypeRequisitionCreated, want: true},
		{name: "requisition approved", eventType: TypeRequisitionApproved, want: true},
		{name: "budget exception rejected", eventType: TypeBudgetExceptionRejected, want: true},
		{name: "purchase order created", eventType: TypePurchaseOrderCreated, want: true},
		{name: "unknown type", eventType: Type("unknown.type"), want: false},
		{name: "empty string", eventType: Type(""), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(TypeRequisitionApproved, 123, 7, map[string]interface{}{
		"pr_no": "PR-2026-IT-001",
	})

	if event.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if event.Type != TypeRequisitionApproved {
		t.Errorf("Event Type = %v, want %v", event.Type, TypeRequisitionApproved)
	}
	if event.PRID != 123 || event.ActorID != 7 {
		t.Errorf("Event keys = (%d, %d), want (123, 7)", event.PRID, event.ActorID)
	}
	if event.Payload["pr_no"] != "PR-2026-IT-001" {
		t.Errorf("Event Payload[pr_no] = %v", event.Payload["pr_no"])
	}
	if event.CorrelationID == "" {
		t.Error("Event CorrelationID should not be empty")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("Event Timestamp should be recent")
	}
}

func TestNewEvent_NilPayload(t *testing.T) {
	event := NewEvent(TypeRequisitionCreated, 1, 1, nil)
	if event.Payload == nil {
		t.Fatal("Payload should be initialised")
	}
	event.Payload["k"] = "v"
}

func TestEvent_WithCorrelation(t *testing.T) {
	original := NewEvent(TypeRequisitionSubmitted, 1, 2, nil)
	linked := original.WithCorrelation("chain-1")

	if linked.CorrelationID != "chain-1" {
		t.Errorf("CorrelationID = %v, want chain-1", linked.CorrelationID)
	}
	if original.CorrelationID == "chain-1" {
		t.Error("original event should not be modified")
	}
	if linked.ID != original.ID {
		t.Error("linked event should keep the ID")
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeRequisitionCreated, 1, 1, map[string]interface{}{
		"key1": "value1",
	})

	modified := original.WithPayload("key2", "value2")

	if _, exists := original.Payload["key2"]; exists {
		t.Error("Original event should not be modified")
	}
	if modified.Payload["key1"] != "value1" || modified.Payload["key2"] != "value2" {
		t.Errorf("Modified payload = %v", modified.Payload)
	}
	if modified.ID != original.ID || modified.PRID != original.PRID {
		t.Error("Modified event should keep identity fields")
	}
}

func TestEvent_GetPayloadString(t *testing.T) {
	event := NewEvent(TypeRequisitionCreated, 1, 1, map[string]interface{}{
		"status": "APPROVED",
		"amount": decimal.RequireFromString("10.50"),
		"number": 123,
	})

	tests := []struct {
		key  string
		want string
	}{
		{"status", "APPROVED"},
		{"amount", "10.5"},
		{"number", ""},
		{"nonexistent", ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := event.GetPayloadString(tt.key); got != tt.want {
				t.Errorf("GetPayloadString(%v) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestEvent_GetPayloadInt(t *testing.T) {
	event := NewEvent(TypeRequisitionCreated, 1, 1, map[string]interface{}{
		"int64":   int64(100),
		"int":     50,
		"float64": 75.5,
		"string":  "not a number",
	})

	tests := []struct {
		key  string
		want int64
	}{
		{"int64", 100},
		{"int", 50},
		{"float64", 75},
		{"string", 0},
		{"nonexistent", 0},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := event.GetPayloadInt(tt.key); got != tt.want {
				t.Errorf("GetPayloadInt(%v) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}
