package main

import (
	"context"
	"errors"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-audit/internal/normalize"
	"github.com/sells-group/invoice-audit/internal/ocr"
	"github.com/sells-group/invoice-audit/internal/pipeline"
	"github.com/sells-group/invoice-audit/internal/predictor"
	"github.com/sells-group/invoice-audit/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "invoice-audit.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// loadModel reads the logistic predictor weights if configured. A
// missing file is not fatal; validation falls back to OCR confidence.
func loadModel() *predictor.Model {
	path := cfg.Pipeline.ModelPath
	if path == "" {
		return nil
	}
	m, err := predictor.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			zap.L().Warn("load predictor model", zap.String("path", path), zap.Error(err))
		}
		return nil
	}
	return m
}

// initProcessor wires a batch processor. withOCR attaches a Tesseract
// engine factory for the re-OCR fallback passes.
func initProcessor(st store.Store, withOCR bool) *pipeline.Processor {
	var factory pipeline.EngineFactory
	if withOCR {
		factory = func() (ocr.Engine, error) {
			return ocr.NewTesseract(cfg.OCR.Languages, cfg.OCR.TessdataDir), nil
		}
	}
	return pipeline.New(cfg, st, normalize.Default(), loadModel(), factory)
}
