package events

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/crmflow/crm-automation/internal/domain"
)

type triggerFile struct {
	Triggers []domain.Trigger `yaml:"triggers"`
}

// LoadTriggersFile reads trigger definitions from a YAML file.
func LoadTriggersFile(path string) ([]domain.Trigger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read triggers file: %w", err)
	}
	return ParseTriggers(data)
}

// ParseTriggers decodes and validates a YAML trigger document of the form
//
//	triggers:
//	  - event: deal_stage_changed
//	    conditions: [{field: stage, operator: equals, value: proposal}]
//	    actions: [{type: send_notification, params: {userId: "{{ownerId}}"}}]
func ParseTriggers(data []byte) ([]domain.Trigger, error) {
	var file triggerFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTrigger, err)
	}
	for i, trigger := range file.Triggers {
		if err := ValidateTrigger(trigger); err != nil {
			return nil, fmt.Errorf("trigger %d: %w", i, err)
		}
	}
	return file.Triggers, nil
}

// ValidateTrigger rejects triggers the dispatcher could never run meaningfully.
func ValidateTrigger(trigger domain.Trigger) error {
	if trigger.Event == "" {
		return fmt.Errorf("%w: event is required", domain.ErrInvalidTrigger)
	}
	if len(trigger.Actions) == 0 {
		return fmt.Errorf("%w: at least one action is required", domain.ErrInvalidTrigger)
	}
	for _, cond := range trigger.Conditions {
		if cond.Field == "" {
			return fmt.Errorf("%w: condition field is required", domain.ErrInvalidTrigger)
		}
		if !cond.Operator.Valid() {
			return fmt.Errorf("%w: unknown operator %q", domain.ErrInvalidTrigger, cond.Operator)
		}
	}
	for _, action := range trigger.Actions {
		if !action.Type.Valid() {
			return fmt.Errorf("%w: unknown action type %q", domain.ErrInvalidTrigger, action.Type)
		}
	}
	return nil
}

// RegisterAll registers each trigger under its own event type.
func RegisterAll(d Dispatcher, triggers []domain.Trigger) {
	for _, trigger := range triggers {
		d.Register(trigger.Event, trigger)
	}
}
