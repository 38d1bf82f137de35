package recon

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InternalRecord is a transaction as recorded by the organization's own ledger.
// Records are immutable once created; the RecordStore owns them for the
// lifetime of a run.
type InternalRecord struct {
	// TransactionID uniquely identifies the transaction in the ledger.
	TransactionID string `json:"transaction_id"`

	// OrderRef is the business order reference the transaction belongs to.
	OrderRef string `json:"order_ref"`

	// Amount is the signed transaction amount.
	Amount decimal.Decimal `json:"amount"`

	// Currency is the ISO 4217 currency code.
	Currency string `json:"currency"`

	// PaymentMethod tags how the transaction was paid (card, transfer, ...).
	PaymentMethod string `json:"payment_method"`

	// Status is the ledger-side transaction status.
	Status string `json:"status"`

	// Timestamp is when the transaction was recorded.
	Timestamp time.Time `json:"timestamp"`

	// CounterpartyID identifies the other party of the transaction.
	CounterpartyID string `json:"counterparty_id"`

	// Metadata carries free-form key/value data attached at ingestion.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate reports whether the record is acceptable for ingestion.
func (r InternalRecord) Validate() error {
	if r.TransactionID == "" {
		return fmt.Errorf("internal record: missing transaction id")
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("internal record %s: non-positive amount %s", r.TransactionID, r.Amount)
	}
	return nil
}

// ExternalRecord is the corresponding transaction as reported by a
// bank/processor settlement feed.
type ExternalRecord struct {
	// ReferenceID uniquely identifies the settlement entry in the feed.
	ReferenceID string `json:"reference_id"`

	// Amount is the settled amount.
	Amount decimal.Decimal `json:"amount"`

	// Currency is the ISO 4217 currency code.
	Currency string `json:"currency"`

	// SettledAt is the settlement timestamp reported by the feed.
	SettledAt time.Time `json:"settled_at"`

	// Description is the free-text narrative from the feed. It often embeds
	// the internal transaction or order reference.
	Description string `json:"description"`
}

// Validate reports whether the record is acceptable for ingestion.
func (r ExternalRecord) Validate() error {
	if r.ReferenceID == "" {
		return fmt.Errorf("external record: missing reference id")
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("external record %s: non-positive amount %s", r.ReferenceID, r.Amount)
	}
	return nil
}
