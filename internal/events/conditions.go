package events

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/crmflow/crm-automation/internal/domain"
)

// Evaluate reports whether event satisfies every condition. An empty list always
// passes. Evaluation stops at the first failing condition and never panics:
// a malformed condition simply evaluates to false.
func Evaluate(conditions []domain.Condition, event domain.WorkflowEvent) bool {
	for _, cond := range conditions {
		if !evaluateCondition(cond, event) {
			return false
		}
	}
	return true
}

// Lookup resolves field against the event: changed fields first (their after
// value), then the flat payload, then the event's own attributes.
func Lookup(event domain.WorkflowEvent, field string) (any, bool) {
	if change, ok := event.Changes[field]; ok {
		return change.After, true
	}
	if val, ok := event.Payload[field]; ok {
		return val, true
	}
	switch field {
	case "entityId", "entity_id":
		return event.EntityID, true
	case "entityType", "entity_type":
		return string(event.EntityType), true
	case "type", "eventType", "event_type":
		return string(event.Type), true
	case "actorId", "actor_id":
		return event.ActorID, true
	}
	return nil, false
}

func evaluateCondition(cond domain.Condition, event domain.WorkflowEvent) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	if strings.TrimSpace(cond.Field) == "" {
		return false
	}
	actual, _ := Lookup(event, cond.Field)

	switch cond.Operator {
	case domain.OperatorEquals:
		return valuesEqual(actual, cond.Value)
	case domain.OperatorNotEquals:
		return !valuesEqual(actual, cond.Value)
	case domain.OperatorGreaterThan:
		a, okA := toFloat(actual)
		b, okB := toFloat(cond.Value)
		return okA && okB && a > b
	case domain.OperatorLessThan:
		a, okA := toFloat(actual)
		b, okB := toFloat(cond.Value)
		return okA && okB && a < b
	case domain.OperatorContains:
		return contains(actual, cond.Value)
	default:
		return false
	}
}

// valuesEqual is strict: numbers compare by value regardless of Go numeric kind,
// but a number never equals a string.
func valuesEqual(a, b any) bool {
	a, b = normalize(a), normalize(b)
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func contains(container, item any) bool {
	container, item = normalize(container), normalize(item)
	if container == nil {
		return false
	}
	if s, ok := container.(string); ok {
		sub, ok := item.(string)
		return ok && strings.Contains(s, sub)
	}

	v := reflect.ValueOf(container)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if valuesEqual(v.Index(i).Interface(), item) {
				return true
			}
		}
		return false
	case reflect.Map:
		key := reflect.ValueOf(item)
		if !key.IsValid() || !key.Type().ConvertibleTo(v.Type().Key()) {
			return false
		}
		if key.Kind() != v.Type().Key().Kind() {
			return false
		}
		return v.MapIndex(key.Convert(v.Type().Key())).IsValid()
	default:
		return false
	}
}

// normalize strips named string types (e.g. domain.TicketPriority) down to string.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	if _, ok := v.(json.Number); ok {
		return v
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
