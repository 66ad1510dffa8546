package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crmflow/crm-automation/internal/domain"
)

func dealEvent() domain.WorkflowEvent {
	return domain.WorkflowEvent{
		Type:       domain.EventDealUpdate,
		EntityID:   "deal-1",
		EntityType: domain.EntityDeal,
		ActorID:    "user-9",
		Changes: map[string]domain.FieldChange{
			"stage": {Before: "qualification", After: "proposal"},
		},
		Payload: map[string]any{
			"stage":    "qualification",
			"amount":   15000,
			"currency": "EUR",
			"tags":     []any{"vip", "renewal"},
			"owners":   map[string]any{"user-1": true},
			"priority": domain.TicketPriorityHigh,
			"score":    json.Number("7.5"),
		},
	}
}

func TestEvaluate(t *testing.T) {
	event := dealEvent()

	tests := []struct {
		name       string
		conditions []domain.Condition
		want       bool
	}{
		{"empty list passes", nil, true},
		{"equals on changed field uses after value", []domain.Condition{
			{Field: "stage", Operator: domain.OperatorEquals, Value: "proposal"},
		}, true},
		{"equals on payload", []domain.Condition{
			{Field: "currency", Operator: domain.OperatorEquals, Value: "EUR"},
		}, true},
		{"numeric equality across kinds", []domain.Condition{
			{Field: "amount", Operator: domain.OperatorEquals, Value: 15000.0},
		}, true},
		{"number never equals string", []domain.Condition{
			{Field: "amount", Operator: domain.OperatorEquals, Value: "15000"},
		}, false},
		{"named string type equals plain string", []domain.Condition{
			{Field: "priority", Operator: domain.OperatorEquals, Value: "high"},
		}, true},
		{"not equals", []domain.Condition{
			{Field: "currency", Operator: domain.OperatorNotEquals, Value: "USD"},
		}, true},
		{"greater than", []domain.Condition{
			{Field: "amount", Operator: domain.OperatorGreaterThan, Value: 10000},
		}, true},
		{"greater than fails on equal", []domain.Condition{
			{Field: "amount", Operator: domain.OperatorGreaterThan, Value: 15000},
		}, false},
		{"less than with json number", []domain.Condition{
			{Field: "score", Operator: domain.OperatorLessThan, Value: 8},
		}, true},
		{"ordering on non-numeric is false", []domain.Condition{
			{Field: "currency", Operator: domain.OperatorGreaterThan, Value: 1},
		}, false},
		{"contains substring", []domain.Condition{
			{Field: "currency", Operator: domain.OperatorContains, Value: "U"},
		}, true},
		{"contains list element", []domain.Condition{
			{Field: "tags", Operator: domain.OperatorContains, Value: "vip"},
		}, true},
		{"contains missing list element", []domain.Condition{
			{Field: "tags", Operator: domain.OperatorContains, Value: "churn"},
		}, false},
		{"contains map key", []domain.Condition{
			{Field: "owners", Operator: domain.OperatorContains, Value: "user-1"},
		}, true},
		{"contains with mismatched key kind", []domain.Condition{
			{Field: "owners", Operator: domain.OperatorContains, Value: 1},
		}, false},
		{"built-in entity id", []domain.Condition{
			{Field: "entityId", Operator: domain.OperatorEquals, Value: "deal-1"},
		}, true},
		{"missing field equals is false", []domain.Condition{
			{Field: "nope", Operator: domain.OperatorEquals, Value: "x"},
		}, false},
		{"missing field not equals is true", []domain.Condition{
			{Field: "nope", Operator: domain.OperatorNotEquals, Value: "x"},
		}, true},
		{"unknown operator is false", []domain.Condition{
			{Field: "stage", Operator: "matches", Value: "proposal"},
		}, false},
		{"empty field is false", []domain.Condition{
			{Field: "", Operator: domain.OperatorEquals, Value: nil},
		}, false},
		{"all conditions must hold", []domain.Condition{
			{Field: "stage", Operator: domain.OperatorEquals, Value: "proposal"},
			{Field: "currency", Operator: domain.OperatorEquals, Value: "USD"},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.conditions, event))
		})
	}
}

func TestEvaluateNeverPanics(t *testing.T) {
	event := domain.WorkflowEvent{Payload: map[string]any{
		"weird": func() {},
		"ch":    make(chan int),
	}}
	conditions := []domain.Condition{
		{Field: "weird", Operator: domain.OperatorContains, Value: []int{1}},
		{Field: "ch", Operator: domain.OperatorEquals, Value: map[string]any{}},
	}

	assert.NotPanics(t, func() {
		Evaluate(conditions, event)
	})
}

func TestLookupPrefersChangesOverPayload(t *testing.T) {
	val, ok := Lookup(dealEvent(), "stage")

	assert.True(t, ok)
	assert.Equal(t, "proposal", val)
}
