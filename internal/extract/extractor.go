// Package extract turns raw OCR pages into a structured invoice
// document. Extraction is label-anchored: each field cascades through
// strategies (inline label value, right neighbor, block capture,
// positional fallback) and the first success wins. When label-based
// passes leave fields missing and a page image is available, the
// extractor re-OCRs targeted regions to fill them.
package extract

import (
	"context"
	"image"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/normalize"
	"github.com/sells-group/invoice-audit/internal/ocr"
)

// fieldResult is one extracted field value with its OCR provenance.
type fieldResult struct {
	value any
	conf  *float64
	bbox  *model.BBox
}

// Extractor locates invoice fields on OCR output. Not safe for
// concurrent use when an engine is attached.
type Extractor struct {
	labels    Labels
	norm      *normalize.Normalizer
	engine    ocr.Engine
	threshold uint8
	limiter   *rate.Limiter
}

// Options tunes an Extractor. Zero values select the defaults.
type Options struct {
	// Labels overrides the caption vocabulary.
	Labels *Labels
	// Threshold is the binarization cutoff for fallback passes.
	Threshold uint8
	// Limiter throttles fallback OCR passes. Nil means unthrottled.
	Limiter *rate.Limiter
}

// New returns an Extractor. A nil engine disables the re-OCR fallback
// passes; label-based extraction still runs.
func New(norm *normalize.Normalizer, engine ocr.Engine, opts Options) *Extractor {
	labels := DefaultLabels()
	if opts.Labels != nil {
		labels = *opts.Labels
	}
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = 150
	}
	return &Extractor{
		labels:    labels,
		norm:      norm,
		engine:    engine,
		threshold: threshold,
		limiter:   opts.Limiter,
	}
}

func setField(doc *model.Document, key model.FieldKey, res *fieldResult) {
	if res == nil {
		return
	}
	doc.Set(key, res.value, res.conf, res.bbox)
}

// Extract runs the full field extraction pipeline over one invoice.
// pageImage is the rendered first page; nil skips the re-OCR passes.
func (e *Extractor) Extract(ctx context.Context, inv model.RawInvoice, pageImage image.Image) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var lines []model.Line
	var tokens []model.Token
	pageWidth := 0
	for _, page := range inv.Pages {
		lines = append(lines, page.Lines...)
		tokens = append(tokens, page.Tokens...)
		if pageWidth == 0 {
			pageWidth = page.Width
		}
	}

	vendor := e.extractParty(lines, e.labels.VendorStart, e.labels.VendorInline, 0)
	customer := e.extractParty(lines, e.labels.CustomerStart, e.labels.CustomerInline, e.labels.CustomerFallbackStart)

	po := e.extractPO(lines)
	invoiceDate := e.extractDate(lines, e.labels.Date, []string{"due"})
	dueDate := e.extractDate(lines, e.labels.Due, []string{"invoice"})

	subtotal := e.extractAmount(lines, e.labels.Subtotal, nil)
	tax := e.extractAmount(lines, e.labels.Tax, e.labels.TaxExclude)
	total := e.extractTotalAmount(lines)

	nameValid := false
	if customer.name != nil {
		name, _ := customer.name.value.(string)
		nameValid = isValidName(name)
	}

	var fallbackLines []model.Line
	canReOCR := pageImage != nil && e.engine != nil
	needsFallback := subtotal == nil || tax == nil || total == nil ||
		customer.address == nil || !nameValid
	if needsFallback && canReOCR {
		fl, err := e.fullPageLines(ctx, pageImage)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			zap.L().Warn("extract: full-page fallback pass failed", zap.Error(err))
		} else {
			fallbackLines = fl
		}
	}

	if subtotal == nil && fallbackLines != nil {
		subtotal = e.extractAmount(fallbackLines, e.labels.Subtotal, nil)
	}
	if tax == nil && fallbackLines != nil {
		tax = e.extractAmount(fallbackLines, e.labels.Tax, e.labels.TaxExclude)
	}
	if total == nil && fallbackLines != nil {
		total = e.extractTotalAmount(fallbackLines)
	}

	if (subtotal == nil || tax == nil) && total != nil && total.bbox != nil && canReOCR {
		sub2, tax2, err := e.totalsBlockFields(ctx, pageImage, *total.bbox)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			zap.L().Warn("extract: totals-block pass failed", zap.Error(err))
		}
		if subtotal == nil && sub2 != nil {
			subtotal = sub2
		}
		if tax == nil && tax2 != nil {
			tax = tax2
		}
	}

	if tax == nil && subtotal != nil && subtotal.bbox != nil && total != nil && total.bbox != nil && canReOCR {
		tax2, err := e.taxFromCrop(ctx, pageImage, *subtotal.bbox, *total.bbox)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			zap.L().Warn("extract: tax crop pass failed", zap.Error(err))
		}
		if tax2 != nil {
			tax = tax2
		}
	}

	if customer.address == nil || !nameValid {
		e.recoverCustomer(&customer, lines, fallbackLines, tokens, pageWidth)
	}

	doc := model.NewDocument()
	doc.RawText = inv.RawText
	setField(doc, model.FieldVendorName, vendor.name)
	setField(doc, model.FieldVendorAddress, vendor.address)
	setField(doc, model.FieldCustomerName, customer.name)
	setField(doc, model.FieldCustomerAddress, customer.address)
	setField(doc, model.FieldPONumber, po)
	setField(doc, model.FieldInvoiceDate, invoiceDate)
	setField(doc, model.FieldDueDate, dueDate)
	setField(doc, model.FieldSubtotal, subtotal)
	setField(doc, model.FieldTaxAmount, tax)
	setField(doc, model.FieldTotalAmount, total)

	items, itemConf, itemBox := e.extractLineItems(lines)
	if len(items) > 0 {
		doc.Set(model.FieldLineItems, items, itemConf, itemBox)
	}
	return doc, nil
}

// recoverCustomer reruns customer extraction anchored on a bill-to
// label column, trying the primary lines first and the fallback pass
// second. The "address / invoice for" header templates route address
// recovery through the raw token column instead.
func (e *Extractor) recoverCustomer(customer *partyResult, lines, fallbackLines []model.Line, tokens []model.Token, pageWidth int) {
	customerLabels := []string{"bill to", "billed to", "sold to", "to"}
	altLabels := []string{"address", "invoice for"}

	sourceLines := lines
	labelLine := e.findLabelLine(lines, customerLabels)
	if labelLine == nil {
		labelLine = e.findAddressInvoiceForLine(lines)
		if labelLine != nil {
			customerLabels = altLabels
		}
	}
	if labelLine == nil && fallbackLines != nil {
		sourceLines = fallbackLines
		labelLine = e.findLabelLine(fallbackLines, customerLabels)
		if labelLine == nil {
			labelLine = e.findAddressInvoiceForLine(fallbackLines)
			if labelLine != nil {
				customerLabels = altLabels
			}
		}
	}
	if labelLine == nil {
		return
	}

	recovered := e.extractPartyFromLabelColumn(sourceLines, labelLine, customerLabels)

	norm := e.normLine(labelLine.Text)
	if containsAnyLabel(norm, []string{"address"}) && containsAnyLabel(norm, []string{"invoice for"}) {
		if addr := e.extractLeftColumnAddress(tokens, labelLine, pageWidth); addr != nil {
			recovered.address = addr
		}
	}
	if recovered.name != nil {
		customer.name = recovered.name
	}
	if recovered.address != nil {
		customer.address = recovered.address
	}
}
