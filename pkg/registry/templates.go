package registry

import "github.com/fideliza/fideliza/pkg/models"

// Template is a predefined workflow skeleton the editor offers as a starting
// point. Instantiating one still goes through the normal create path; the
// template itself is never executed.
type Template struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Nodes       []*models.Node `json:"nodes"`
	Edges       []*models.Edge `json:"edges"`
}

// Templates returns the built-in skeletons. Node and edge IDs are stable
// placeholders; the editor rewrites them on instantiation.
func Templates() []Template {
	conditional := models.HandleConditional

	return []Template{
		{
			ID:          "inactivity-reactivation",
			Name:        "Reactivación por inactividad",
			Description: "After 14 days without a visit, email active subscribers a comeback offer.",
			Nodes: []*models.Node{
				{
					ID:       "t1",
					Kind:     models.NodeKindTrigger,
					Type:     models.NodeTypeInactivityTrigger,
					Config:   map[string]any{"days": 14},
					Position: models.Position{X: 0, Y: 0},
				},
				{
					ID:       "c1",
					Kind:     models.NodeKindCondition,
					Type:     models.NodeTypeConditionSubscription,
					Position: models.Position{X: 240, Y: 0},
				},
				{
					ID:       "a1",
					Kind:     models.NodeKindAction,
					Type:     models.NodeTypeActionEmail,
					Config:   map[string]any{"template": "comeback_offer"},
					Position: models.Position{X: 480, Y: -80},
				},
			},
			Edges: []*models.Edge{
				{
					ID:             "e1",
					SourceID:       "t1",
					TargetID:       "c1",
					Classification: models.EdgeDirect,
				},
				{
					ID:             "e2",
					SourceID:       "c1",
					TargetID:       "a1",
					SourceHandle:   &conditional,
					Classification: models.EdgeConditional,
				},
			},
		},
		{
			ID:          "renewal-reminder",
			Name:        "Recordatorio de renovación",
			Description: "Nudge members tagged for renewal by SMS, then follow up with a discount.",
			Nodes: []*models.Node{
				{
					ID:       "t1",
					Kind:     models.NodeKindTrigger,
					Type:     models.NodeTypeInactivityTrigger,
					Config:   map[string]any{"days": 7},
					Position: models.Position{X: 0, Y: 0},
				},
				{
					ID:       "c1",
					Kind:     models.NodeKindCondition,
					Type:     models.NodeTypeConditionTag,
					Config:   map[string]any{"tag": "renewal_due"},
					Position: models.Position{X: 240, Y: 0},
				},
				{
					ID:       "a1",
					Kind:     models.NodeKindAction,
					Type:     models.NodeTypeActionSMS,
					Config:   map[string]any{"message": "Tu plan vence pronto. ¡Renuévalo hoy!", "delay_days": 2},
					Position: models.Position{X: 480, Y: -80},
				},
				{
					ID:       "a2",
					Kind:     models.NodeKindAction,
					Type:     models.NodeTypeActionDiscount,
					Config:   map[string]any{"percent": 15},
					Position: models.Position{X: 720, Y: -80},
				},
			},
			Edges: []*models.Edge{
				{
					ID:             "e1",
					SourceID:       "t1",
					TargetID:       "c1",
					Classification: models.EdgeDirect,
				},
				{
					ID:             "e2",
					SourceID:       "c1",
					TargetID:       "a1",
					SourceHandle:   &conditional,
					Classification: models.EdgeConditional,
				},
				{
					ID:             "e3",
					SourceID:       "a1",
					TargetID:       "a2",
					SourceHandle:   strPtr(models.HandleDelay),
					Classification: models.EdgeDelay,
				},
			},
		},
	}
}

func strPtr(s string) *string {
	return &s
}
