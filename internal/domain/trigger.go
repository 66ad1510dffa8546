package domain

// Operator is the comparison applied by a condition.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorContains    Operator = "contains"
)

// Valid reports whether o is a supported operator.
func (o Operator) Valid() bool {
	switch o {
	case OperatorEquals, OperatorNotEquals, OperatorGreaterThan, OperatorLessThan, OperatorContains:
		return true
	}
	return false
}

// Condition is one field/operator/value check. A trigger's conditions are ANDed.
type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value" yaml:"value"`
}

// ActionType enumerates the side effects a trigger can request.
type ActionType string

const (
	ActionSendEmail          ActionType = "send_email"
	ActionCreateTask         ActionType = "create_task"
	ActionSendNotification   ActionType = "send_notification"
	ActionScheduleMeeting    ActionType = "schedule_meeting"
	ActionAssignUser         ActionType = "assign_user"
	ActionUpdateRelatedDeals ActionType = "update_related_deals"
)

// Valid reports whether a is a supported action type.
func (a ActionType) Valid() bool {
	switch a {
	case ActionSendEmail, ActionCreateTask, ActionSendNotification,
		ActionScheduleMeeting, ActionAssignUser, ActionUpdateRelatedDeals:
		return true
	}
	return false
}

// ActionSpec is a single typed side-effect request.
type ActionSpec struct {
	Type   ActionType     `json:"type" yaml:"type"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Trigger fires its actions when an event of type Event satisfies every condition.
type Trigger struct {
	Name       string       `json:"name,omitempty" yaml:"name,omitempty"`
	Event      EventType    `json:"event" yaml:"event"`
	Conditions []Condition  `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Actions    []ActionSpec `json:"actions" yaml:"actions"`
}
