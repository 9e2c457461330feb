package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-audit/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "INV-2024-001")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "INV-2024-001", got.InvoiceID)
	assert.Nil(t, got.Result)
	assert.Empty(t, got.Error)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_UpdateRunStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "INV-2024-002")
	require.NoError(t, err)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, got.Status)
}

func TestSQLite_UpdateRunStatus_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRunStatus(context.Background(), "missing-run", model.RunStatusRunning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_SaveResult(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "INV-2024-003")
	require.NoError(t, err)

	result := &model.Result{
		Status:          model.StatusNeedsReview,
		ConfidenceScore: 0.62,
		Discrepancies: []model.Discrepancy{
			{
				Field:      "total_amount",
				IssueType:  model.SeverityCritical,
				Expected:   1204.5,
				Detected:   1304.5,
				Confidence: 0.98,
				Suggestion: "Amount mismatch",
			},
		},
	}
	require.NoError(t, st.SaveResult(ctx, run.ID, result))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, model.StatusNeedsReview, got.Result.Status)
	assert.InDelta(t, 0.62, got.Result.ConfidenceScore, 1e-9)
	require.Len(t, got.Result.Discrepancies, 1)
	assert.Equal(t, model.SeverityCritical, got.Result.Discrepancies[0].IssueType)
}

func TestSQLite_MarkFailed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "INV-2024-004")
	require.NoError(t, err)

	require.NoError(t, st.MarkFailed(ctx, run.ID, eris.New("ocr engine unavailable")))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Contains(t, got.Error, "ocr engine unavailable")
}

func TestSQLite_ListRuns_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, "INV-A")
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "INV-B")
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, a.ID, model.RunStatusCompleted))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	completed, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, a.ID, completed[0].ID)

	byInvoice, err := st.ListRuns(ctx, RunFilter{InvoiceID: "INV-B"})
	require.NoError(t, err)
	require.Len(t, byInvoice, 1)
	assert.Equal(t, "INV-B", byInvoice[0].InvoiceID)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_SaveAndGetDocument(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	doc := model.NewDocument()
	conf := 0.95
	doc.Set(model.FieldVendorName, "Acme Data Services LLC", &conf, &model.BBox{X1: 10, Y1: 20, X2: 200, Y2: 40})
	doc.Set(model.FieldTotalAmount, 1204.5, &conf, nil)
	doc.Set(model.FieldLineItems, []model.RawLineItem{{Text: "Widget\nQty: 2\nPrice: $5.00\nTotal: $10.00"}}, nil, nil)

	require.NoError(t, st.SaveDocument(ctx, "INV-DOC-1", doc))

	got, err := st.GetDocument(ctx, "INV-DOC-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme Data Services LLC", got.Value(model.FieldVendorName))
	assert.Equal(t, 1204.5, got.Value(model.FieldTotalAmount))
	require.Len(t, got.LineItems(), 1)
	assert.Contains(t, got.LineItems()[0].Text, "Qty: 2")
	require.NotNil(t, got.Box(model.FieldVendorName))
	assert.Equal(t, 200, got.Box(model.FieldVendorName).X2)
}

func TestSQLite_SaveDocument_Replaces(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := model.NewDocument()
	first.Set(model.FieldPONumber, "PO-0001", nil, nil)
	require.NoError(t, st.SaveDocument(ctx, "INV-DOC-2", first))

	second := model.NewDocument()
	second.Set(model.FieldPONumber, "PO-0002", nil, nil)
	require.NoError(t, st.SaveDocument(ctx, "INV-DOC-2", second))

	got, err := st.GetDocument(ctx, "INV-DOC-2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "PO-0002", got.Value(model.FieldPONumber))
}

func TestSQLite_GetDocument_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetDocument(context.Background(), "never-extracted")
	require.NoError(t, err)
	assert.Nil(t, got)
}
