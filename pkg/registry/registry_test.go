package registry

import (
	"log/slog"
	"testing"

	"github.com/fideliza/fideliza/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()

	r := NewRegistry(slog.Default())
	r.RegisterDefaults()

	return r
}

func TestValidateConfig(t *testing.T) {
	r := newRegistry(t)

	tests := []struct {
		name    string
		node    *models.Node
		wantErr string
	}{
		{
			name: "valid trigger config",
			node: &models.Node{
				Type: models.NodeTypeInactivityTrigger,
				Kind: models.NodeKindTrigger,
				Config: map[string]any{
					"days": 14,
				},
			},
		},
		{
			name: "days below minimum",
			node: &models.Node{
				Type:   models.NodeTypeInactivityTrigger,
				Kind:   models.NodeKindTrigger,
				Config: map[string]any{"days": 0},
			},
			wantErr: "invalid",
		},
		{
			name: "days above maximum",
			node: &models.Node{
				Type:   models.NodeTypeInactivityTrigger,
				Kind:   models.NodeKindTrigger,
				Config: map[string]any{"days": 500},
			},
			wantErr: "invalid",
		},
		{
			name: "missing required field",
			node: &models.Node{
				Type:   models.NodeTypeActionEmail,
				Kind:   models.NodeKindAction,
				Config: map[string]any{},
			},
			wantErr: "invalid",
		},
		{
			name: "unregistered type",
			node: &models.Node{
				Type: "action:telegram",
				Kind: models.NodeKindAction,
			},
			wantErr: "not registered",
		},
		{
			name: "kind mismatch",
			node: &models.Node{
				Type:   models.NodeTypeActionEmail,
				Kind:   models.NodeKindTrigger,
				Config: map[string]any{"template": "x"},
			},
			wantErr: "registered as",
		},
		{
			name: "nil config treated as empty object",
			node: &models.Node{
				Type: models.NodeTypeConditionSubscription,
				Kind: models.NodeKindCondition,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.ValidateConfig(tt.node)

			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestListIsSortedByType(t *testing.T) {
	r := newRegistry(t)

	types := r.List()
	require.NotEmpty(t, types)

	for i := 1; i < len(types); i++ {
		assert.Less(t, types[i-1].Type, types[i].Type)
	}
}

func TestRegisterOverridesExisting(t *testing.T) {
	r := newRegistry(t)

	r.Register(&NodeType{
		Type: models.NodeTypeActionEmail,
		Kind: models.NodeKindAction,
		Name: "Custom email",
	})

	nt, ok := r.Get(models.NodeTypeActionEmail)
	require.True(t, ok)
	assert.Equal(t, "Custom email", nt.Name)

	// No schema on the override: any config passes.
	err := r.ValidateConfig(&models.Node{
		Type: models.NodeTypeActionEmail,
		Kind: models.NodeKindAction,
	})
	assert.NoError(t, err)
}

func TestHandles(t *testing.T) {
	r := newRegistry(t)

	assert.Equal(t,
		[]string{models.HandleConditional, models.HandleError},
		r.Handles(models.NodeTypeConditionSubscription))

	assert.Nil(t, r.Handles("action:telegram"))
}

func TestHealthCheck(t *testing.T) {
	empty := NewRegistry(slog.Default())

	_, ok := empty.HealthCheck()
	assert.False(t, ok)

	_, ok = newRegistry(t).HealthCheck()
	assert.True(t, ok)
}

func TestTemplatesAreWellFormed(t *testing.T) {
	r := newRegistry(t)

	templates := Templates()
	require.NotEmpty(t, templates)

	for _, template := range templates {
		assert.NotEmpty(t, template.ID)
		assert.NotEmpty(t, template.Name)
		require.NotEmpty(t, template.Nodes)

		// Every node in a template references a registered type with a
		// config the schema accepts.
		for _, node := range template.Nodes {
			assert.NoError(t, r.ValidateConfig(node), "template %s node %s", template.ID, node.ID)
		}

		nodeIDs := make(map[string]bool, len(template.Nodes))
		for _, node := range template.Nodes {
			nodeIDs[node.ID] = true
		}

		for _, edge := range template.Edges {
			assert.True(t, nodeIDs[edge.SourceID], "template %s edge %s source", template.ID, edge.ID)
			assert.True(t, nodeIDs[edge.TargetID], "template %s edge %s target", template.ID, edge.ID)
		}
	}
}
