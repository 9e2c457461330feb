package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-audit/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "INV-2024-001", "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "INV-2024-001")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("running", pgxmock.AnyArg(), "missing-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing-run", model.RunStatusRunning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET result`).
		WithArgs(pgxmock.AnyArg(), "completed", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.SaveResult(context.Background(), "run-1", &model.Result{
		Status:          model.StatusApproved,
		ConfidenceScore: 0.91,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkFailed(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("failed", "ocr engine unavailable", pgxmock.AnyArg(), "run-2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.MarkFailed(context.Background(), "run-2", eris.New("ocr engine unavailable"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, invoice_id, status, result, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	resultJSON := []byte(`{"status":"approved","confidence_score":0.88}`)
	rows := pgxmock.NewRows([]string{"id", "invoice_id", "status", "result", "error", "created_at", "updated_at"}).
		AddRow("run-3", "INV-2024-003", "completed", resultJSON, (*string)(nil), now, now)

	mock.ExpectQuery(`SELECT id, invoice_id, status, result, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-3").
		WillReturnRows(rows)

	run, err := s.GetRun(context.Background(), "run-3")
	require.NoError(t, err)
	assert.Equal(t, "INV-2024-003", run.InvoiceID)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, model.StatusApproved, run.Result.Status)
	assert.InDelta(t, 0.88, run.Result.ConfidenceScore, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_StatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "invoice_id", "status", "result", "error", "created_at", "updated_at"}).
		AddRow("run-a", "INV-A", "failed", []byte(nil), strPtr("ocr timeout"), now, now)

	mock.ExpectQuery(`SELECT id, invoice_id, status, result, error, created_at, updated_at FROM runs WHERE true AND status = \$1`).
		WithArgs("failed", 100).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "ocr timeout", runs[0].Error)
	assert.Nil(t, runs[0].Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveDocument_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs("INV-DOC-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	doc := model.NewDocument()
	doc.Set(model.FieldPONumber, "PO-45678", nil, nil)

	err := s.SaveDocument(context.Background(), "INV-DOC-1", doc)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDocument_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT doc FROM documents`).
		WithArgs("unknown-invoice").
		WillReturnError(pgx.ErrNoRows)

	doc, err := s.GetDocument(context.Background(), "unknown-invoice")
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"runs"},
		[]string{"id", "invoice_id", "status", "result", "created_at", "updated_at"}).
		WillReturnResult(2)

	results := map[string]*model.Result{
		"INV-001": {Status: model.StatusApproved, ConfidenceScore: 0.91},
		"INV-002": {Status: model.StatusRejected, ConfidenceScore: 0.20},
	}
	n, err := s.ImportRuns(context.Background(), results)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveDocuments(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_documents"},
		[]string{"invoice_id", "doc", "extracted_at"}).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "documents"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	doc := model.NewDocument()
	doc.Set(model.FieldPONumber, "PO-45678", nil, nil)

	err := s.SaveDocuments(context.Background(), map[string]*model.Document{"INV-001": doc})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func strPtr(s string) *string { return &s }
