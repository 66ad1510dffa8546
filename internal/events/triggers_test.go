package events

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmflow/crm-automation/internal/domain"
	apperrors "github.com/crmflow/crm-automation/pkg/util/errorutil"
)

const sampleTriggers = `
triggers:
  - name: proposal-alert
    event: deal_stage_changed
    conditions:
      - field: stage
        operator: equals
        value: proposal
      - field: amount
        operator: greater_than
        value: 10000
    actions:
      - type: send_notification
        params:
          userId: "{{ownerId}}"
          message: "Deal {{entityId}} reached proposal"
  - event: contact_update
    actions:
      - type: update_related_deals
`

func TestParseTriggers(t *testing.T) {
	triggers, err := ParseTriggers([]byte(sampleTriggers))
	require.NoError(t, err)
	require.Len(t, triggers, 2)

	first := triggers[0]
	assert.Equal(t, "proposal-alert", first.Name)
	assert.Equal(t, domain.EventDealStageChanged, first.Event)
	require.Len(t, first.Conditions, 2)
	assert.Equal(t, domain.OperatorGreaterThan, first.Conditions[1].Operator)
	assert.Equal(t, "{{ownerId}}", first.Actions[0].Params["userId"])

	event := domain.WorkflowEvent{
		Type:    domain.EventDealStageChanged,
		Payload: map[string]any{"stage": "proposal", "amount": 25000},
	}
	assert.True(t, Evaluate(first.Conditions, event))
}

func TestParseTriggersRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown operator": `
triggers:
  - event: deal_update
    conditions: [{field: stage, operator: matches, value: x}]
    actions: [{type: create_task}]`,
		"unknown action": `
triggers:
  - event: deal_update
    actions: [{type: launch_rocket}]`,
		"missing event": `
triggers:
  - actions: [{type: create_task}]`,
		"no actions": `
triggers:
  - event: deal_update`,
		"malformed yaml": "triggers: [",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTriggers([]byte(doc))
			assert.ErrorIs(t, err, domain.ErrInvalidTrigger)
		})
	}
}

func TestValidateTrigger(t *testing.T) {
	notify := []domain.ActionSpec{{Type: domain.ActionSendNotification}}
	tests := []struct {
		name    string
		trigger domain.Trigger
		wantErr bool
	}{
		{
			name:    "valid without conditions",
			trigger: domain.Trigger{Event: domain.EventDealUpdate, Actions: notify},
		},
		{
			name:    "missing actions",
			trigger: domain.Trigger{Event: domain.EventDealUpdate},
			wantErr: true,
		},
		{
			name:    "missing event",
			trigger: domain.Trigger{Actions: notify},
			wantErr: true,
		},
		{
			name: "condition without field",
			trigger: domain.Trigger{
				Event:      domain.EventDealUpdate,
				Conditions: []domain.Condition{{Operator: domain.OperatorEquals, Value: "x"}},
				Actions:    notify,
			},
			wantErr: true,
		},
		{
			name: "unknown action type",
			trigger: domain.Trigger{
				Event:   domain.EventDealUpdate,
				Actions: []domain.ActionSpec{{Type: "launch_rocket"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTrigger(tt.trigger)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, domain.ErrInvalidTrigger)
			assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
		})
	}
}

func TestLoadTriggersFileAndRegister(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triggers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTriggers), 0o600))

	triggers, err := LoadTriggersFile(path)
	require.NoError(t, err)

	d := newTestDispatcher(nil, nil)
	RegisterAll(d, triggers)

	assert.Len(t, d.Triggers(domain.EventDealStageChanged), 1)
	assert.Len(t, d.Triggers(domain.EventContactUpdate), 1)
}

func TestDefaultTriggersAreValid(t *testing.T) {
	defaults := DefaultTriggers()
	require.NotEmpty(t, defaults)

	seen := map[domain.EventType]bool{}
	for _, trigger := range defaults {
		assert.NoError(t, ValidateTrigger(trigger), trigger.Name)
		seen[trigger.Event] = true
	}
	assert.True(t, seen[domain.EventContactUpdate])
	assert.True(t, seen[domain.EventDealUpdate])
	assert.True(t, seen[domain.EventSLABreached])
}
