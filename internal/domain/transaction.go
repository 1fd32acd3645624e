package domain

import (
	"sort"
	"time"
)

// Transaction represents one financial event to be scored.
// Records are immutable once ingested and identified by an opaque ID.
type Transaction struct {
	// Core identifiers
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	// Financial details. Amount is signed; debit/credit breakdowns are
	// optional and absent when the source ledger does not provide them.
	Amount       float64  `json:"amount"`
	DebitAmount  *float64 `json:"debitAmount,omitempty"`
	CreditAmount *float64 `json:"creditAmount,omitempty"`

	// Ledger dimensions
	AccountCode string `json:"accountCode"`
	Entity      string `json:"entity"`

	// Transaction type (e.g., "transfer", "payment", "journal")
	Type string `json:"type"`

	// Temporal. A zero Timestamp means the source had no usable time.
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`

	// Optional metadata
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// HasTimestamp reports whether the record carries a usable timestamp.
func (t *Transaction) HasTimestamp() bool {
	return !t.Timestamp.IsZero()
}

// TransactionRequest is the ingestion payload for a transaction.
type TransactionRequest struct {
	TenantID     string                 `json:"tenantId" validate:"required"`
	Type         string                 `json:"type" validate:"required"`
	AccountCode  string                 `json:"accountCode" validate:"required"`
	Entity       string                 `json:"entity"`
	Amount       float64                `json:"amount" validate:"required"`
	DebitAmount  *float64               `json:"debitAmount,omitempty"`
	CreditAmount *float64               `json:"creditAmount,omitempty"`
	Timestamp    *time.Time             `json:"timestamp,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ToTransaction converts a request to a Transaction domain object.
func (r *TransactionRequest) ToTransaction() *Transaction {
	now := time.Now().UTC()
	ts := now
	if r.Timestamp != nil {
		ts = r.Timestamp.UTC()
	}
	return &Transaction{
		TenantID:     r.TenantID,
		Type:         r.Type,
		AccountCode:  r.AccountCode,
		Entity:       r.Entity,
		Amount:       r.Amount,
		DebitAmount:  r.DebitAmount,
		CreditAmount: r.CreditAmount,
		Timestamp:    ts,
		CreatedAt:    now,
		Metadata:     r.Metadata,
	}
}

// SortByTimestamp orders a batch by timestamp ascending, in place.
// Window-based features treat input order as time order, so callers
// sort before building features. Stable for records sharing a timestamp.
func SortByTimestamp(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Timestamp.Before(txs[j].Timestamp)
	})
}
