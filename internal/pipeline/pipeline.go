// Package pipeline orchestrates extraction and validation across a
// batch of invoices. Extraction fans out with one OCR engine per
// invoice; engines hold native Tesseract sessions and are never shared
// between goroutines.
package pipeline

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/invoice-audit/internal/config"
	"github.com/sells-group/invoice-audit/internal/extract"
	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/normalize"
	"github.com/sells-group/invoice-audit/internal/ocr"
	"github.com/sells-group/invoice-audit/internal/predictor"
	"github.com/sells-group/invoice-audit/internal/refdata"
	"github.com/sells-group/invoice-audit/internal/store"
	"github.com/sells-group/invoice-audit/internal/validate"
)

// EngineFactory builds a fresh OCR engine for one invoice. Nil
// disables the re-OCR fallback passes.
type EngineFactory func() (ocr.Engine, error)

// Processor runs the extract and validate stages over invoice batches.
type Processor struct {
	cfg       *config.Config
	store     store.Store
	norm      *normalize.Normalizer
	model     *predictor.Model
	newEngine EngineFactory
	limiter   *rate.Limiter
}

// New creates a Processor. store and model may be nil; a nil store
// disables run persistence and a nil model selects the OCR-confidence
// fallback for p_wrong.
func New(cfg *config.Config, st store.Store, norm *normalize.Normalizer, m *predictor.Model, factory EngineFactory) *Processor {
	var limiter *rate.Limiter
	if cfg.OCR.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.OCR.RateLimit), 1)
	}
	return &Processor{
		cfg:       cfg,
		store:     st,
		norm:      norm,
		model:     m,
		newEngine: factory,
		limiter:   limiter,
	}
}

func (p *Processor) concurrency() int {
	n := p.cfg.Pipeline.MaxConcurrentInvoices
	if n <= 0 {
		n = 4
	}
	return n
}

// ExtractAll turns raw OCR output into structured documents for every
// invoice in the batch. Results are keyed by invoice ID and persisted
// to the store when one is attached.
func (p *Processor) ExtractAll(ctx context.Context, raw map[string]model.RawInvoice) (map[string]*model.Document, error) {
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency())

	var mu sync.Mutex
	docs := make(map[string]*model.Document, len(ids))

	for _, id := range ids {
		g.Go(func() error {
			doc, err := p.extractOne(gCtx, id, raw[id])
			if err != nil {
				return err
			}
			mu.Lock()
			docs[id] = doc
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if bw, ok := p.store.(store.BulkDocumentWriter); ok {
		if err := bw.SaveDocuments(ctx, docs); err != nil {
			zap.L().Warn("pipeline: bulk save documents", zap.Error(err))
		}
	}
	return docs, nil
}

func (p *Processor) extractOne(ctx context.Context, invoiceID string, inv model.RawInvoice) (*model.Document, error) {
	log := zap.L().With(zap.String("invoice_id", invoiceID))

	var engine ocr.Engine
	if p.newEngine != nil {
		var err error
		engine, err = p.newEngine()
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: create ocr engine for %s", invoiceID)
		}
	}

	pageImage := p.loadPageImage(invoiceID)

	ex := extract.New(p.norm, engine, extract.Options{
		Threshold: uint8(p.cfg.OCR.Threshold),
		Limiter:   p.limiter,
	})
	doc, err := ex.Extract(ctx, inv, pageImage)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: extract %s", invoiceID)
	}

	// Stores with a bulk writer get the whole batch at once instead.
	if _, bulk := p.store.(store.BulkDocumentWriter); p.store != nil && !bulk {
		if err := p.store.SaveDocument(ctx, invoiceID, doc); err != nil {
			log.Warn("pipeline: save document", zap.Error(err))
		}
	}
	return doc, nil
}

// loadPageImage reads the rendered first page for an invoice. A
// missing render is not an error; label-based extraction still runs.
func (p *Processor) loadPageImage(invoiceID string) image.Image {
	dir := p.cfg.Pipeline.RenderedDir
	if dir == "" {
		return nil
	}
	path := filepath.Join(dir, invoiceID+".png")
	img, err := imaging.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			zap.L().Warn("pipeline: open rendered page",
				zap.String("invoice_id", invoiceID),
				zap.Error(err),
			)
		}
		return nil
	}
	return img
}

// ValidateAll validates every ground-truth invoice that has an
// extracted document, persisting a run per invoice when a store is
// attached. Invoices without a document are skipped with a warning.
func (p *Processor) ValidateAll(ctx context.Context, bundle *refdata.Bundle) (map[string]*model.Result, error) {
	engine := validate.New(p.cfg.Validation, p.cfg.Scoring, p.norm, p.model)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency())

	var mu sync.Mutex
	results := make(map[string]*model.Result, len(bundle.GroundTruth))

	for _, truth := range bundle.GroundTruth {
		doc, ok := bundle.Documents[truth.InvoiceID]
		if !ok {
			zap.L().Warn("pipeline: no extracted document for invoice",
				zap.String("invoice_id", truth.InvoiceID))
			continue
		}
		g.Go(func() error {
			result, err := p.validateOne(gCtx, engine, truth, doc, bundle.Database)
			if err != nil {
				return err
			}
			mu.Lock()
			results[truth.InvoiceID] = result
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Processor) validateOne(ctx context.Context, engine *validate.Engine, truth model.GroundTruth, doc *model.Document, db *model.ReferenceDB) (*model.Result, error) {
	if p.store == nil {
		return engine.Validate(doc, truth, db), nil
	}

	run, err := p.store.CreateRun(ctx, truth.InvoiceID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: create run for %s", truth.InvoiceID)
	}
	if err := p.store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		zap.L().Warn("pipeline: update run status", zap.Error(err))
	}

	result := engine.Validate(doc, truth, db)

	if err := p.store.SaveResult(ctx, run.ID, result); err != nil {
		if markErr := p.store.MarkFailed(ctx, run.ID, err); markErr != nil {
			zap.L().Warn("pipeline: mark run failed", zap.Error(markErr))
		}
		return nil, eris.Wrapf(err, "pipeline: save result for %s", truth.InvoiceID)
	}
	return result, nil
}

// Run loads reference data from dir and validates the whole batch.
func (p *Processor) Run(ctx context.Context, dir string) (map[string]*model.Result, error) {
	bundle, err := refdata.LoadAll(dir)
	if err != nil {
		return nil, err
	}
	return p.ValidateAll(ctx, bundle)
}

// Summary aggregates batch outcomes for reporting.
type Summary struct {
	Total       int     `json:"total"`
	Approved    int     `json:"approved"`
	NeedsReview int     `json:"needs_review"`
	Rejected    int     `json:"rejected"`
	AvgScore    float64 `json:"avg_score"`
}

// Summarize counts terminal statuses and averages confidence scores.
func Summarize(results map[string]*model.Result) Summary {
	s := Summary{Total: len(results)}
	if s.Total == 0 {
		return s
	}
	var sum float64
	for _, r := range results {
		sum += r.ConfidenceScore
		switch r.Status {
		case model.StatusApproved:
			s.Approved++
		case model.StatusNeedsReview:
			s.NeedsReview++
		case model.StatusRejected:
			s.Rejected++
		}
	}
	s.AvgScore = sum / float64(s.Total)
	return s
}
