package domain

// ReasonRule defines one diagnostic rule used to derive human-readable
// anomaly reasons from a record's feature values. Rules are evaluated
// independently of the ensemble vote.
type ReasonRule struct {
	ID          string `json:"id"`
	Description string `json:"description"`

	// Expression is a CEL expression over feature values; a truthy
	// result attaches Reason to the record.
	Expression string `json:"expression"`

	// Reason is the short human-readable string emitted when the
	// expression triggers.
	Reason string `json:"reason"`

	// Whether the rule is active
	Enabled bool `json:"enabled"`
}

// GenericAnomalyReason is emitted when no diagnostic rule triggers so
// the reasons list is never empty.
const GenericAnomalyReason = "flagged by statistical anomaly models"
