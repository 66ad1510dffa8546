package events

import "github.com/crmflow/crm-automation/internal/domain"

// DefaultTriggers returns the automation registered at start-up unless disabled.
func DefaultTriggers() []domain.Trigger {
	return []domain.Trigger{
		{
			Name:  "contact-sync-deals",
			Event: domain.EventContactUpdate,
			Actions: []domain.ActionSpec{
				{Type: domain.ActionUpdateRelatedDeals, Params: map[string]any{
					"contactId": "{{entityId}}",
				}},
				{Type: domain.ActionCreateTask, Params: map[string]any{
					"title":      "Follow up with contact {{entityId}}",
					"entityId":   "{{entityId}}",
					"entityType": string(domain.EntityContact),
					"assignee":   "{{ownerId}}",
					"dueInHours": 24,
				}},
			},
		},
		{
			Name:  "deal-stage-follow-up",
			Event: domain.EventDealUpdate,
			Actions: []domain.ActionSpec{
				{Type: domain.ActionCreateTask, Params: map[string]any{
					"title":      "Next step for deal {{entityId}} in stage {{stage}}",
					"entityId":   "{{entityId}}",
					"entityType": string(domain.EntityDeal),
					"assignee":   "{{ownerId}}",
					"dueInHours": 48,
				}},
				{Type: domain.ActionSendNotification, Params: map[string]any{
					"userId":  "{{ownerId}}",
					"type":    "deal_stage_change",
					"title":   "Deal stage changed",
					"message": "Deal {{entityId}} moved to {{stage}}",
				}},
			},
		},
		{
			Name:  "ticket-assignment-notice",
			Event: domain.EventTicketAssigned,
			Conditions: []domain.Condition{
				{Field: "assigned_to", Operator: domain.OperatorNotEquals, Value: ""},
			},
			Actions: []domain.ActionSpec{
				{Type: domain.ActionAssignUser, Params: map[string]any{
					"userId":   "{{assigned_to}}",
					"entityId": "{{entityId}}",
				}},
			},
		},
		{
			Name:  "sla-breach-alert",
			Event: domain.EventSLABreached,
			Actions: []domain.ActionSpec{
				{Type: domain.ActionSendNotification, Params: map[string]any{
					"userId":  "{{assigned_to}}",
					"type":    "sla_breach",
					"title":   "SLA breached",
					"message": "Ticket {{ticket_id}} ({{priority}}) is past its due date",
				}},
			},
		},
	}
}
