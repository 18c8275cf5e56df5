package registry

import "github.com/fideliza/fideliza/pkg/models"

// RegisterDefaults registers the built-in retention-flow node types.
func (r *Registry) RegisterDefaults() {
	r.Register(&NodeType{
		Type:        models.NodeTypeInactivityTrigger,
		Kind:        models.NodeKindTrigger,
		Name:        "Client inactivity",
		Description: "Fires when a client has been inactive for N days",
		ConfigSchema: map[string]any{
			"type":     "object",
			"required": []any{"days"},
			"properties": map[string]any{
				"days": map[string]any{
					"type":        "integer",
					"description": "Days of inactivity before firing",
					"minimum":     1,
					"maximum":     365,
				},
			},
		},
		DisplayHandles: []string{models.HandleDelay},
	})

	r.Register(&NodeType{
		Type:        models.NodeTypeConditionSubscription,
		Kind:        models.NodeKindCondition,
		Name:        "Has active subscription",
		Description: "True when the client's subscription is active",
		ConfigSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		DisplayHandles: []string{models.HandleConditional, models.HandleError},
	})

	r.Register(&NodeType{
		Type:        models.NodeTypeConditionTag,
		Kind:        models.NodeKindCondition,
		Name:        "Has tag",
		Description: "True when the client carries the configured tag",
		ConfigSchema: map[string]any{
			"type":     "object",
			"required": []any{"tag"},
			"properties": map[string]any{
				"tag": map[string]any{
					"type":      "string",
					"minLength": 1,
				},
			},
		},
		DisplayHandles: []string{models.HandleConditional, models.HandleError},
	})

	r.Register(&NodeType{
		Type:        models.NodeTypeActionEmail,
		Kind:        models.NodeKindAction,
		Name:        "Send email",
		Description: "Sends a templated email through the email gateway",
		ConfigSchema: map[string]any{
			"type":     "object",
			"required": []any{"template"},
			"properties": map[string]any{
				"template": map[string]any{"type": "string", "minLength": 1},
				"subject":  map[string]any{"type": "string"},
			},
		},
		DisplayHandles: []string{models.HandleError, models.HandleDelay},
	})

	r.Register(&NodeType{
		Type:        models.NodeTypeActionSMS,
		Kind:        models.NodeKindAction,
		Name:        "Send SMS",
		Description: "Sends an SMS through the SMS gateway",
		ConfigSchema: map[string]any{
			"type":     "object",
			"required": []any{"message"},
			"properties": map[string]any{
				"message": map[string]any{"type": "string", "minLength": 1, "maxLength": 480},
			},
		},
		DisplayHandles: []string{models.HandleError, models.HandleDelay},
	})

	r.Register(&NodeType{
		Type:        models.NodeTypeActionPush,
		Kind:        models.NodeKindAction,
		Name:        "Send push notification",
		Description: "Sends a push notification through the push gateway",
		ConfigSchema: map[string]any{
			"type":     "object",
			"required": []any{"title"},
			"properties": map[string]any{
				"title": map[string]any{"type": "string", "minLength": 1},
				"body":  map[string]any{"type": "string"},
			},
		},
		DisplayHandles: []string{models.HandleError, models.HandleDelay},
	})

	r.Register(&NodeType{
		Type:        models.NodeTypeActionDiscount,
		Kind:        models.NodeKindAction,
		Name:        "Apply discount",
		Description: "Applies a discount code to the client's next invoice",
		ConfigSchema: map[string]any{
			"type":     "object",
			"required": []any{"percent"},
			"properties": map[string]any{
				"percent": map[string]any{"type": "number", "minimum": 1, "maximum": 100},
				"code":    map[string]any{"type": "string"},
			},
		},
		DisplayHandles: []string{models.HandleError, models.HandleDelay},
	})

	r.Register(&NodeType{
		Type:        models.NodeTypeActionCall,
		Kind:        models.NodeKindAction,
		Name:        "Schedule call",
		Description: "Schedules a retention call with the client's coach",
		ConfigSchema: map[string]any{
			"type":     "object",
			"properties": map[string]any{
				"within_days": map[string]any{"type": "integer", "minimum": 1, "maximum": 30},
			},
		},
		DisplayHandles: []string{models.HandleError, models.HandleDelay},
	})
}
