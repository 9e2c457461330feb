// Package tracking maintains a per-invoice processing status with an
// append-only audit log of corrections and status changes.
package tracking

import "time"

// Entry is one audit log event. Fields not relevant to the action are
// omitted from the JSON encoding.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	User      string    `json:"user"`
	Field     string    `json:"field,omitempty"`
	OldValue  any       `json:"old_value,omitempty"`
	NewValue  any       `json:"new_value,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
}

// Record tracks one invoice through ingestion and review.
type Record struct {
	InvoiceID string  `json:"invoice_id"`
	Status    string  `json:"status"`
	Log       []Entry `json:"log"`
}

// now is swapped in tests for deterministic timestamps.
var now = func() time.Time { return time.Now().UTC() }

// Init starts a record in the "ingested" state with an empty log.
func Init(invoiceID string) *Record {
	return &Record{
		InvoiceID: invoiceID,
		Status:    "ingested",
		Log:       []Entry{},
	}
}

// LogCorrection appends a manual field correction. An empty user is
// recorded as "system".
func (r *Record) LogCorrection(field string, oldValue, newValue any, user string) {
	if user == "" {
		user = "system"
	}
	r.Log = append(r.Log, Entry{
		Timestamp: now(),
		Action:    "correction",
		User:      user,
		Field:     field,
		OldValue:  oldValue,
		NewValue:  newValue,
	})
}

// Transition appends a status change and moves the record to the new
// status. An empty user is recorded as "system".
func (r *Record) Transition(newStatus, user string) {
	if user == "" {
		user = "system"
	}
	r.Log = append(r.Log, Entry{
		Timestamp: now(),
		Action:    "status_change",
		User:      user,
		From:      r.Status,
		To:        newStatus,
	})
	r.Status = newStatus
}
