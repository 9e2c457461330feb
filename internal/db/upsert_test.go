package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "documents",
		Columns:      []string{"invoice_id", "doc"},
		ConflictKeys: []string{"invoice_id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "documents",
		ConflictKeys: []string{"invoice_id"},
	}, [][]any{{"INV-001", "{}"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "documents",
		Columns: []string{"invoice_id", "doc"},
	}, [][]any{{"INV-001", "{}"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_documents"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_documents"}, []string{"invoice_id", "doc"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "documents" .+ ON CONFLICT \("invoice_id"\) DO UPDATE SET "doc" = EXCLUDED\."doc"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	rows := [][]any{{"INV-001", "{}"}, {"INV-002", "{}"}}
	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "documents",
		Columns:      []string{"invoice_id", "doc"},
		ConflictKeys: []string{"invoice_id"},
	}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"invoice_id", "doc", "extracted_at"})
	assert.Equal(t, `"invoice_id", "doc", "extracted_at"`, result)
}
