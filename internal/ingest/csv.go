package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-audit/internal/model"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune            // default ','
	HasHeader  bool            // if true, first row is skipped but sent to HeaderCh
	HeaderCh   chan<- []string // optional: receives the header row
	Comment    rune            // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// StreamCSV reads CSV and sends rows to a channel. Caller must consume
// the returned row channel. Errors are sent on the error channel. Both
// channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // allow variable fields

		first := true
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "ingest: csv context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "ingest: csv read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			if first && opts.HasHeader {
				first = false
				if opts.HeaderCh != nil {
					select {
					case opts.HeaderCh <- record:
					case <-ctx.Done():
						errCh <- eris.Wrap(ctx.Err(), "ingest: csv context cancelled sending header")
						return
					}
				}
				continue
			}
			first = false

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ingest: csv context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// amountColumns lists the expected-data columns parsed as numbers.
var amountColumns = map[model.FieldKey]bool{
	model.FieldSubtotal:    true,
	model.FieldTaxAmount:   true,
	model.FieldTotalAmount: true,
}

// ReadGroundTruthCSV parses a ground-truth export with one invoice per
// row. The header names the columns: invoice_id plus any subset of the
// scalar field keys. Amount columns become numbers; everything else
// stays a string for the comparison rules to normalize. Empty cells
// are treated as missing.
func ReadGroundTruthCSV(ctx context.Context, r io.Reader) ([]model.GroundTruth, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(ctx, r, CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var header []string
	var truth []model.GroundTruth
	for row := range rowCh {
		if header == nil {
			select {
			case header = <-headerCh:
			default:
				return nil, eris.New("ingest: ground truth csv has no header")
			}
		}

		gt := model.GroundTruth{ExpectedData: make(map[model.FieldKey]any)}
		for i, cell := range row {
			if i >= len(header) || cell == "" {
				continue
			}
			col := strings.ToLower(header[i])
			if col == "invoice_id" {
				gt.InvoiceID = cell
				continue
			}
			key := model.FieldKey(col)
			if _, known := model.FieldTypes[key]; !known {
				continue
			}
			if amountColumns[key] {
				if v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64); err == nil {
					gt.ExpectedData[key] = v
					continue
				}
			}
			gt.ExpectedData[key] = cell
		}
		if gt.InvoiceID == "" {
			return nil, eris.Errorf("ingest: ground truth row %d missing invoice_id", len(truth)+1)
		}
		truth = append(truth, gt)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return truth, nil
}
