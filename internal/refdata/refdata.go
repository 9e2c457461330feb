// Package refdata loads the reference data files: ground truth,
// extraction results, the reference database, and raw OCR output.
// Every loader schema-checks its input before decoding.
package refdata

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-audit/internal/ingest"
	"github.com/sells-group/invoice-audit/internal/model"
)

// Bundle is the full reference data set for a validation run.
type Bundle struct {
	GroundTruth []model.GroundTruth
	Documents   map[string]*model.Document
	Database    *model.ReferenceDB
}

// LoadAll reads ground_truth.json, ocr_results.json, and
// database.json from dir. When a JSON file is absent, the ERP export
// equivalents ground_truth.csv and database.xlsx are accepted instead.
func LoadAll(dir string) (*Bundle, error) {
	truth, err := loadGroundTruthAny(dir)
	if err != nil {
		return nil, err
	}
	docs, err := LoadDocuments(filepath.Join(dir, "ocr_results.json"))
	if err != nil {
		return nil, err
	}
	db, err := loadDatabaseAny(dir)
	if err != nil {
		return nil, err
	}
	return &Bundle{GroundTruth: truth, Documents: docs, Database: db}, nil
}

func loadGroundTruthAny(dir string) ([]model.GroundTruth, error) {
	jsonPath := filepath.Join(dir, "ground_truth.json")
	csvPath := filepath.Join(dir, "ground_truth.csv")
	if _, err := os.Stat(jsonPath); os.IsNotExist(err) {
		if _, csvErr := os.Stat(csvPath); csvErr == nil {
			f, err := os.Open(csvPath)
			if err != nil {
				return nil, eris.Wrap(err, "refdata: open ground truth csv")
			}
			defer f.Close() //nolint:errcheck
			return ingest.ReadGroundTruthCSV(context.Background(), f)
		}
	}
	return LoadGroundTruth(jsonPath)
}

func loadDatabaseAny(dir string) (*model.ReferenceDB, error) {
	jsonPath := filepath.Join(dir, "database.json")
	xlsxPath := filepath.Join(dir, "database.xlsx")
	if _, err := os.Stat(jsonPath); os.IsNotExist(err) {
		if _, xlsxErr := os.Stat(xlsxPath); xlsxErr == nil {
			return ingest.ReadReferenceXLSX(xlsxPath)
		}
	}
	return LoadDatabase(jsonPath)
}

// GroundTruthMap indexes ground-truth records by invoice ID. Records
// without an ID are dropped.
func GroundTruthMap(truth []model.GroundTruth) map[string]model.GroundTruth {
	out := make(map[string]model.GroundTruth, len(truth))
	for _, gt := range truth {
		if gt.InvoiceID != "" {
			out[gt.InvoiceID] = gt
		}
	}
	return out
}

// LoadGroundTruth reads the trusted expected data per invoice.
func LoadGroundTruth(path string) ([]model.GroundTruth, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "refdata: read ground truth")
	}
	doc, err := decodeJSON(data)
	if err != nil {
		return nil, eris.Wrap(err, "refdata: parse ground truth")
	}
	if err := validateSchema(groundTruthCompiled, doc, "ground truth"); err != nil {
		return nil, err
	}

	var file struct {
		Invoices []model.GroundTruth `json:"invoices"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "refdata: decode ground truth")
	}
	return file.Invoices, nil
}

// LoadDatabase reads the reference database of purchase orders,
// vendor master records, and customer info.
func LoadDatabase(path string) (*model.ReferenceDB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "refdata: read database")
	}
	doc, err := decodeJSON(data)
	if err != nil {
		return nil, eris.Wrap(err, "refdata: parse database")
	}
	if err := validateSchema(databaseCompiled, doc, "database"); err != nil {
		return nil, err
	}

	var db model.ReferenceDB
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, eris.Wrap(err, "refdata: decode database")
	}
	return &db, nil
}

// documentJSON is the on-disk result shape. Confidence values decode
// through pointers so JSON nulls read as missing rather than zero.
type documentJSON struct {
	RawText    string                         `json:"raw_text"`
	Structured map[model.FieldKey]any         `json:"structured_data"`
	Conf       map[model.FieldKey]*float64    `json:"confidence_scores"`
	BBoxes     map[model.FieldKey]*model.BBox `json:"bounding_boxes"`
}

// LoadDocuments reads structured extraction results keyed by invoice
// ID.
func LoadDocuments(path string) (map[string]*model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "refdata: read extraction results")
	}
	doc, err := decodeJSON(data)
	if err != nil {
		return nil, eris.Wrap(err, "refdata: parse extraction results")
	}
	if err := validateSchema(resultsCompiled, doc, "extraction results"); err != nil {
		return nil, err
	}

	var raw map[string]documentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "refdata: decode extraction results")
	}

	out := make(map[string]*model.Document, len(raw))
	for id, dj := range raw {
		out[id] = dj.toDocument()
	}
	return out, nil
}

func (dj documentJSON) toDocument() *model.Document {
	doc := model.NewDocument()
	doc.RawText = dj.RawText
	for key, value := range dj.Structured {
		if value == nil {
			continue
		}
		if key == model.FieldLineItems {
			doc.Values[key] = toRawLineItems(value)
			continue
		}
		doc.Values[key] = value
	}
	for key, conf := range dj.Conf {
		if conf != nil {
			doc.Confidence[key] = *conf
		}
	}
	for key, box := range dj.BBoxes {
		if box != nil {
			doc.BBoxes[key] = box
		}
	}
	return doc
}

func toRawLineItems(value any) []model.RawLineItem {
	entries, ok := value.([]any)
	if !ok {
		return nil
	}
	items := make([]model.RawLineItem, 0, len(entries))
	for _, entry := range entries {
		if m, ok := entry.(map[string]any); ok {
			if text, ok := m["text"].(string); ok {
				items = append(items, model.RawLineItem{Text: text})
			}
		}
	}
	return items
}

// LoadRaw reads raw OCR collaborator output keyed by invoice ID.
// Confidences above 1 are read as percentages and normalized to
// [0,1].
func LoadRaw(path string) (map[string]model.RawInvoice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "refdata: read raw OCR output")
	}
	var raw map[string]model.RawInvoice
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "refdata: decode raw OCR output")
	}
	for id, inv := range raw {
		for p := range inv.Pages {
			normalizeConfs(inv.Pages[p].Lines)
			normalizeTokenConfs(inv.Pages[p].Tokens)
		}
		raw[id] = inv
	}
	return raw, nil
}

func normalizeConfs(lines []model.Line) {
	for i := range lines {
		if c := lines[i].Confidence; c != nil && *c > 1 {
			scaled := *c / 100
			lines[i].Confidence = &scaled
		}
	}
}

func normalizeTokenConfs(tokens []model.Token) {
	for i := range tokens {
		if c := tokens[i].Confidence; c != nil && *c > 1 {
			scaled := *c / 100
			tokens[i].Confidence = &scaled
		}
	}
}
