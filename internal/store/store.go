package store

import (
	"context"

	"github.com/sells-group/invoice-audit/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status    model.RunStatus `json:"status,omitempty"`
	InvoiceID string          `json:"invoice_id,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for validation runs and
// extracted documents.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, invoiceID string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	SaveResult(ctx context.Context, runID string, result *model.Result) error
	MarkFailed(ctx context.Context, runID string, cause error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Extracted documents, keyed by invoice ID. Saving again replaces
	// the previous extraction.
	SaveDocument(ctx context.Context, invoiceID string, doc *model.Document) error
	GetDocument(ctx context.Context, invoiceID string) (*model.Document, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// BulkDocumentWriter is implemented by stores that can upsert a whole
// batch of documents in one round trip. The pipeline prefers it over
// per-invoice SaveDocument when available.
type BulkDocumentWriter interface {
	SaveDocuments(ctx context.Context, docs map[string]*model.Document) error
}
