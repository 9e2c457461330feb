package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freezeNow(t *testing.T) time.Time {
	t.Helper()
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	orig := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = orig })
	return fixed
}

func TestInit(t *testing.T) {
	r := Init("INV-001")
	assert.Equal(t, "INV-001", r.InvoiceID)
	assert.Equal(t, "ingested", r.Status)
	assert.Empty(t, r.Log)
}

func TestLogCorrection(t *testing.T) {
	fixed := freezeNow(t)
	r := Init("INV-001")

	r.LogCorrection("total_amount", 1204.5, 1304.5, "reviewer")

	require.Len(t, r.Log, 1)
	e := r.Log[0]
	assert.Equal(t, fixed, e.Timestamp)
	assert.Equal(t, "correction", e.Action)
	assert.Equal(t, "reviewer", e.User)
	assert.Equal(t, "total_amount", e.Field)
	assert.Equal(t, 1204.5, e.OldValue)
	assert.Equal(t, 1304.5, e.NewValue)
	// Corrections do not change the status.
	assert.Equal(t, "ingested", r.Status)
}

func TestLogCorrectionDefaultUser(t *testing.T) {
	r := Init("INV-001")
	r.LogCorrection("vendor_name", "Acme", "Acme Corp", "")
	require.Len(t, r.Log, 1)
	assert.Equal(t, "system", r.Log[0].User)
}

func TestTransition(t *testing.T) {
	fixed := freezeNow(t)
	r := Init("INV-001")

	r.Transition("validated", "")
	r.Transition("approved", "reviewer")

	assert.Equal(t, "approved", r.Status)
	require.Len(t, r.Log, 2)

	first := r.Log[0]
	assert.Equal(t, fixed, first.Timestamp)
	assert.Equal(t, "status_change", first.Action)
	assert.Equal(t, "system", first.User)
	assert.Equal(t, "ingested", first.From)
	assert.Equal(t, "validated", first.To)

	second := r.Log[1]
	assert.Equal(t, "reviewer", second.User)
	assert.Equal(t, "validated", second.From)
	assert.Equal(t, "approved", second.To)
}
