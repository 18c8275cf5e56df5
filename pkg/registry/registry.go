// Package registry holds the static catalog of node types: their kind,
// configuration schema, and the handles the editor may connect from.
// Adding an automation capability means registering one more entry here.
package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/fideliza/fideliza/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// NodeType describes one registered node capability.
type NodeType struct {
	Type           string         `json:"type"`
	Kind           models.NodeKind `json:"kind"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	ConfigSchema   map[string]any `json:"config_schema"`
	DisplayHandles []string       `json:"display_handles"`
}

// Registry maps node type keys to their definitions. Shared by the
// validator (schema checks), the builder (handle lookup) and the engine.
type Registry struct {
	logger *slog.Logger
	types  map[string]*NodeType
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger,
		types:  make(map[string]*NodeType),
	}
}

// Register adds a node type. Later registrations of the same key win, which
// keeps tests free to override built-ins.
func (r *Registry) Register(nt *NodeType) {
	r.types[nt.Type] = nt
}

// Get returns the definition for a type key.
func (r *Registry) Get(nodeType string) (*NodeType, bool) {
	nt, ok := r.types[nodeType]
	return nt, ok
}

// List returns every registered type sorted by key, for the editor palette.
func (r *Registry) List() []*NodeType {
	out := make([]*NodeType, 0, len(r.types))
	for _, nt := range r.types {
		out = append(out, nt)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })

	return out
}

// ValidateConfig checks a node's config against its type schema. A type
// unknown for the node's kind and a schema violation are both returned as
// errors; the caller decides severity.
func (r *Registry) ValidateConfig(node *models.Node) error {
	nt, ok := r.types[node.Type]
	if !ok {
		return fmt.Errorf("node type '%s' not registered", node.Type)
	}

	if nt.Kind != node.Kind {
		return fmt.Errorf("node type '%s' is registered as %s, not %s", node.Type, nt.Kind, node.Kind)
	}

	if nt.ConfigSchema == nil {
		return nil
	}

	config := node.Config
	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(nt.ConfigSchema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed for node type '%s': %w", node.Type, err)
	}

	if !result.Valid() {
		msg := ""
		for _, desc := range result.Errors() {
			if msg != "" {
				msg += "; "
			}

			msg += desc.String()
		}

		return fmt.Errorf("config for node type '%s' is invalid: %s", node.Type, msg)
	}

	return nil
}

// Handles returns the source handles a node type exposes. Unknown types
// expose only the default handle.
func (r *Registry) Handles(nodeType string) []string {
	nt, ok := r.types[nodeType]
	if !ok || len(nt.DisplayHandles) == 0 {
		return nil
	}

	return nt.DisplayHandles
}

// HealthCheck reports whether the catalog is usable.
func (r *Registry) HealthCheck() (string, bool) {
	if len(r.types) == 0 {
		return "Registry has no node types registered", false
	}

	return fmt.Sprintf("Registry healthy with %d node types", len(r.types)), true
}
