package models

// EdgeClassification describes how the engine treats an edge when walking
// the graph. It is derived from the source handle, never set by callers.
type EdgeClassification string

const (
	EdgeDirect      EdgeClassification = "direct"      // Default next step
	EdgeConditional EdgeClassification = "conditional" // Taken when a condition evaluates true
	EdgeError       EdgeClassification = "error"       // Taken when the preceding action dispatch fails
	EdgeDelay       EdgeClassification = "delay"       // Parks the run until resume_at
)

// Source handles the editor emits. "a"/"b" are the true/false exits a
// condition node exposes; "delay" is the reserved wait exit.
const (
	HandleConditional = "a"
	HandleError       = "b"
	HandleDelay       = "delay"
)

// MaxOutDegree caps outgoing edges per node. Mirrors the editor's live
// connection limit; the validator re-enforces it server-side.
const MaxOutDegree = 3

// Edge connects two nodes. SourceHandle/TargetHandle are the editor's
// connection points and are round-tripped verbatim.
type Edge struct {
	ID             string             `json:"id"            validate:"required"`
	SourceID       string             `json:"source_id"     validate:"required"`
	TargetID       string             `json:"target_id"     validate:"required"`
	SourceHandle   *string            `json:"source_handle,omitempty"`
	TargetHandle   *string            `json:"target_handle,omitempty"`
	Classification EdgeClassification `json:"classification"`
}

// ClassifyHandle derives the classification for a source handle. Pure
// function of the handle: the same handle always yields the same
// classification regardless of graph history.
func ClassifyHandle(sourceHandle *string) EdgeClassification {
	if sourceHandle == nil {
		return EdgeDirect
	}

	switch *sourceHandle {
	case HandleConditional:
		return EdgeConditional
	case HandleError:
		return EdgeError
	case HandleDelay:
		return EdgeDelay
	default:
		return EdgeDirect
	}
}
