package models

// IssueSeverity separates blocking errors from staged-editing warnings.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one validation finding, addressable enough for the editor to
// highlight the offending node or edge.
type Issue struct {
	Severity IssueSeverity `json:"severity"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	NodeID   string        `json:"node_id,omitempty"`
	EdgeID   string        `json:"edge_id,omitempty"`
}

// ValidationResult is the outcome of validating a workflow graph.
// OK is true iff there are no error-severity issues; warnings never block.
type ValidationResult struct {
	OK       bool    `json:"ok"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Add records an issue under the matching severity bucket.
func (r *ValidationResult) Add(issue Issue) {
	if issue.Severity == SeverityWarning {
		r.Warnings = append(r.Warnings, issue)
		return
	}

	r.Errors = append(r.Errors, issue)
	r.OK = false
}
