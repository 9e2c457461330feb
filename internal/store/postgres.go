package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-audit/internal/db"
	"github.com/sells-group/invoice-audit/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, invoice_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"save_result":       `UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"mark_failed":       `UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
	"get_run":           `SELECT id, invoice_id, status, result, error, created_at, updated_at FROM runs WHERE id = $1`,
	"save_document":     `INSERT INTO documents (invoice_id, doc, extracted_at) VALUES ($1, $2, $3) ON CONFLICT (invoice_id) DO UPDATE SET doc = EXCLUDED.doc, extracted_at = EXCLUDED.extracted_at`,
	"get_document":      `SELECT doc FROM documents WHERE invoice_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., bulk reference data loads).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	invoice_id TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS documents (
	invoice_id   TEXT PRIMARY KEY,
	doc          JSONB NOT NULL,
	extracted_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_invoice_id ON runs(invoice_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, invoiceID string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, invoice_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, invoiceID, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		InvoiceID: invoiceID,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, runID string, result *model.Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(model.RunStatusCompleted), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save result %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, runID string, cause error) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), cause.Error(), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark run failed %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var resultJSON []byte
	var errMsg *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, invoice_id, status, result, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.InvoiceID, &r.Status, &resultJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if resultJSON != nil {
		r.Result = &model.Result{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, invoice_id, status, result, error, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.InvoiceID != "" {
		query += fmt.Sprintf(` AND invoice_id = $%d`, argIdx)
		args = append(args, filter.InvoiceID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var resultJSON []byte
		var errMsg *string

		if err := rows.Scan(&r.ID, &r.InvoiceID, &r.Status, &resultJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if resultJSON != nil {
			r.Result = &model.Result{}
			if err := json.Unmarshal(resultJSON, r.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		if errMsg != nil {
			r.Error = *errMsg
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveDocument(ctx context.Context, invoiceID string, doc *model.Document) error {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal document")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (invoice_id, doc, extracted_at) VALUES ($1, $2, $3)
		 ON CONFLICT (invoice_id) DO UPDATE SET doc = EXCLUDED.doc, extracted_at = EXCLUDED.extracted_at`,
		invoiceID, docJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save document %s", invoiceID)
}

// SaveDocuments upserts a batch of extracted documents in one round
// trip. The pipeline prefers this over per-invoice SaveDocument when
// the store supports it.
func (s *PostgresStore) SaveDocuments(ctx context.Context, docs map[string]*model.Document) error {
	rows := make([][]any, 0, len(docs))
	now := time.Now().UTC()
	for invoiceID, doc := range docs {
		docJSON, err := json.Marshal(doc)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal document %s", invoiceID)
		}
		rows = append(rows, []any{invoiceID, docJSON, now})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "documents",
		Columns:      []string{"invoice_id", "doc", "extracted_at"},
		ConflictKeys: []string{"invoice_id"},
	}, rows)
	return eris.Wrap(err, "postgres: save documents")
}

// ImportRuns backfills completed runs from a prior results export. Runs
// are inserted via COPY with fresh IDs; existing runs are untouched.
func (s *PostgresStore) ImportRuns(ctx context.Context, results map[string]*model.Result) (int64, error) {
	rows := make([][]any, 0, len(results))
	now := time.Now().UTC()
	for invoiceID, result := range results {
		resultJSON, err := json.Marshal(result)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal result %s", invoiceID)
		}
		rows = append(rows, []any{uuid.New().String(), invoiceID, string(model.RunStatusCompleted), resultJSON, now, now})
	}

	n, err := db.CopyFrom(ctx, s.pool, "runs",
		[]string{"id", "invoice_id", "status", "result", "created_at", "updated_at"}, rows)
	return n, eris.Wrap(err, "postgres: import runs")
}

func (s *PostgresStore) GetDocument(ctx context.Context, invoiceID string) (*model.Document, error) {
	var docJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM documents WHERE invoice_id = $1`,
		invoiceID,
	).Scan(&docJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get document %s", invoiceID)
	}

	var doc model.Document
	if err := json.Unmarshal(docJSON, &doc); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal document")
	}
	return &doc, nil
}
