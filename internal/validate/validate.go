// Package validate compares extracted invoice fields against ground
// truth and the reference database, producing discrepancies, a
// confidence score, and a terminal status.
package validate

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/invoice-audit/internal/config"
	"github.com/sells-group/invoice-audit/internal/lineitems"
	"github.com/sells-group/invoice-audit/internal/match"
	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/normalize"
	"github.com/sells-group/invoice-audit/internal/predictor"
	"github.com/sells-group/invoice-audit/internal/scoring"
)

// Engine runs validation passes. Safe for concurrent use; all state is
// per-call.
type Engine struct {
	cfg     config.ValidationConfig
	scoring config.ScoringConfig
	norm    *normalize.Normalizer
	model   *predictor.Model
}

// New returns a validation engine. A nil model degrades wrongness
// estimates to the OCR confidence complement.
func New(cfg config.ValidationConfig, scoringCfg config.ScoringConfig, norm *normalize.Normalizer, m *predictor.Model) *Engine {
	return &Engine{cfg: cfg, scoring: scoringCfg, norm: norm, model: m}
}

// run accumulates the state of one validation pass.
type run struct {
	*Engine
	doc           *model.Document
	truth         model.GroundTruth
	db            *model.ReferenceDB
	discrepancies []model.Discrepancy
	details       model.ValidationDetails
}

// Validate checks one extracted document against its ground truth and
// the reference database. Field check order is fixed: PO number, then
// names, addresses, dates, amounts, the PO tax-rate cross-check, and
// line items.
func (e *Engine) Validate(doc *model.Document, truth model.GroundTruth, db *model.ReferenceDB) *model.Result {
	r := &run{
		Engine: e,
		doc:    doc,
		truth:  truth,
		db:     db,
		details: model.ValidationDetails{
			FuzzyScores:   make(map[model.FieldKey]model.FuzzyDetail),
			AmountDiffs:   make(map[model.FieldKey]model.AmountDetail),
			DateDiffs:     make(map[model.FieldKey]int),
			ReferenceUsed: make(map[model.FieldKey]string),
		},
	}

	r.checkID(model.FieldPONumber)
	po := r.resolvePO()

	expVendorName := truth.Expected(model.FieldVendorName)
	expVendorAddr := truth.Expected(model.FieldVendorAddress)
	expCustomerName := truth.Expected(model.FieldCustomerName)
	expCustomerAddr := truth.Expected(model.FieldCustomerAddress)

	if po != nil && po.Vendor != "" {
		expVendorName = po.Vendor
		r.details.ReferenceUsed[model.FieldVendorName] = "purchase_orders.vendor"
	}
	if db != nil {
		if ref, ok := db.VendorMaster[stringify(expVendorName)]; ok && ref.Address != "" {
			expVendorAddr = ref.Address
			r.details.ReferenceUsed[model.FieldVendorAddress] = "vendor_master.address"
		}
		if ref, ok := db.CustomerInfo[stringify(expCustomerName)]; ok && ref.BillingAddress != "" {
			expCustomerAddr = ref.BillingAddress
			r.details.ReferenceUsed[model.FieldCustomerAddress] = "customer_info.billing_address"
		}
	}

	r.checkFuzzy(model.FieldVendorName, expVendorName, fuzzyOpts{
		normalizer: e.norm.CompanySuffix,
		passTh:     e.cfg.FuzzyPass,
		warnTh:     e.cfg.FuzzyWarn,
		truncate:   true,
	})
	r.checkFuzzy(model.FieldCustomerName, expCustomerName, fuzzyOpts{
		normalizer: e.norm.CompanySuffix,
		passTh:     e.cfg.FuzzyPass,
		warnTh:     e.cfg.FuzzyWarn,
		truncate:   true,
	})
	r.checkFuzzy(model.FieldVendorAddress, expVendorAddr, fuzzyOpts{
		normalizer:      e.norm.Address,
		passTh:          e.cfg.AddressFuzzyPass,
		warnTh:          e.cfg.AddressFuzzyWarn,
		missingSeverity: model.SeverityWarning,
	})
	r.checkFuzzy(model.FieldCustomerAddress, expCustomerAddr, fuzzyOpts{
		normalizer:      e.norm.Address,
		passTh:          e.cfg.AddressFuzzyPass,
		warnTh:          e.cfg.AddressFuzzyWarn,
		missingSeverity: model.SeverityWarning,
	})

	r.checkDate(model.FieldInvoiceDate)
	r.checkDate(model.FieldDueDate)

	r.checkAmount(model.FieldSubtotal)
	r.checkAmount(model.FieldTaxAmount)
	r.checkAmount(model.FieldTotalAmount)

	r.checkTaxRate(po)

	parsed := lineitems.ParseAll(doc.LineItems())
	r.discrepancies = append(r.discrepancies,
		lineitems.Validate(parsed, po, doc.Box(model.FieldLineItems))...)
	r.details.ParsedLineItems = parsed

	pWrong := r.predictPWrong()
	r.details.PWrongByField = pWrong

	breakdown := scoring.Compute(e.scoring, doc.Confidence, r.discrepancies, pWrong)
	r.details.FieldScores = breakdown.FieldScores
	r.details.BaseScore = breakdown.BaseScore
	r.details.Penalty = breakdown.Penalty

	result := &model.Result{
		ConfidenceScore:   breakdown.Overall,
		Discrepancies:     r.discrepancies,
		ValidationDetails: r.details,
	}
	result.Status = e.decideStatus(result)
	return result
}

// resolvePO looks up the purchase order by the detected number, then
// the expected one, then by confusable-normalized key comparison.
func (r *run) resolvePO() *model.PurchaseOrder {
	if r.db == nil {
		return nil
	}
	number := stringify(r.doc.Value(model.FieldPONumber))
	if number == "" {
		number = stringify(r.truth.Expected(model.FieldPONumber))
	}
	if rec, ok := r.db.PurchaseOrders[number]; ok {
		return &rec
	}
	detected := stringify(r.doc.Value(model.FieldPONumber))
	if detected == "" {
		return nil
	}
	normPO := r.norm.Confusable(detected)
	keys := make([]string, 0, len(r.db.PurchaseOrders))
	for key := range r.db.PurchaseOrders {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if r.norm.Confusable(key) == normPO {
			rec := r.db.PurchaseOrders[key]
			return &rec
		}
	}
	return nil
}

func (r *run) checkID(field model.FieldKey) {
	expected := r.truth.Expected(field)
	detected := r.doc.Value(field)
	if expected == nil && detected == nil {
		return
	}
	conf := confOr(r.doc.Conf(field), 0.8)

	expNorm := r.norm.Confusable(stringify(expected))
	detNorm := r.norm.Confusable(stringify(detected))
	if expNorm == detNorm {
		if strings.TrimSpace(stringify(expected)) != strings.TrimSpace(stringify(detected)) {
			r.add(field, model.SeverityWarning, expected, detected, conf,
				"Check OCR confusable characters (O/0, I/1)")
		}
		return
	}
	r.add(field, model.SeverityCritical, expected, detected, conf, "PO mismatch")
}

type fuzzyOpts struct {
	normalizer      func(string) string
	passTh          float64
	warnTh          float64
	truncate        bool
	missingSeverity model.Severity
}

func (r *run) checkFuzzy(field model.FieldKey, expected any, opts fuzzyOpts) {
	detected := r.doc.Value(field)
	expNorm := ""
	if expected != nil {
		expNorm = opts.normalizer(stringify(expected))
	}
	detNorm := ""
	if detected != nil {
		detNorm = opts.normalizer(stringify(detected))
	}

	missingSeverity := opts.missingSeverity
	if missingSeverity == "" {
		missingSeverity = model.SeverityCritical
	}
	if expNorm != "" && detNorm == "" {
		r.add(field, missingSeverity, expected, detected,
			confOr(r.doc.Conf(field), 0.6), "Missing value")
		return
	}

	score, method := match.Score(stringify(expected), stringify(detected), opts.normalizer)
	r.details.FuzzyScores[field] = model.FuzzyDetail{Score: score, Method: string(method)}
	if score >= opts.passTh {
		return
	}
	conf := confOr(r.doc.Conf(field), 0.7)
	if score >= opts.warnTh {
		r.add(field, model.SeverityWarning, expected, detected, conf,
			"Possible abbreviation or truncation")
		return
	}
	if opts.truncate && r.isTruncatedMatch(expNorm, detNorm) {
		r.add(field, model.SeverityWarning, expected, detected, conf, "Likely truncated")
		return
	}
	r.add(field, model.SeverityCritical, expected, detected, conf, "Low similarity")
}

// isTruncatedMatch accepts a detected name that is a leading fragment
// of the expected one (or vice versa) covering at least the truncate
// ratio of the longer string.
func (r *run) isTruncatedMatch(expNorm, detNorm string) bool {
	if expNorm == "" || detNorm == "" {
		return false
	}
	if len(detNorm) < r.cfg.NameTruncateMinLen {
		return false
	}
	if strings.HasPrefix(expNorm, detNorm) {
		return float64(len(detNorm))/float64(len(expNorm)) >= r.cfg.NameTruncateRatio
	}
	if strings.HasPrefix(detNorm, expNorm) {
		return float64(len(expNorm))/float64(len(detNorm)) >= r.cfg.NameTruncateRatio
	}
	return false
}

func (r *run) checkDate(field model.FieldKey) {
	expected := r.truth.Expected(field)
	detected := r.doc.Value(field)
	conf := confOr(r.doc.Conf(field), 0.6)

	exp, okE := normalize.ParseDate(expected)
	det, okD := normalize.ParseDate(detected)
	if !okE || !okD {
		r.add(field, model.SeverityWarning, expected, detected, conf,
			"Date missing or unparseable")
		return
	}
	diff := normalize.DaysBetween(exp, det)
	r.details.DateDiffs[field] = diff
	if diff <= r.cfg.DatePassDays {
		return
	}
	if diff <= r.cfg.DateWarnDays {
		r.add(field, model.SeverityWarning, expected, detected, conf, "Date off by a few days")
		return
	}
	r.add(field, model.SeverityCritical, expected, detected, conf, "Date mismatch")
}

func (r *run) checkAmount(field model.FieldKey) {
	expected := r.truth.Expected(field)
	detected := r.doc.Value(field)

	exp, okE := normalize.ParseAmount(expected)
	det, okD := normalize.ParseAmount(detected)
	if !okE || !okD {
		r.add(field, model.SeverityWarning, expected, detected,
			confOr(r.doc.Conf(field), 0.6), "Amount missing or unparseable")
		return
	}
	diff := math.Abs(exp - det)
	rel := diff
	if exp != 0 {
		rel = diff / exp
	}
	r.details.AmountDiffs[field] = model.AmountDetail{Abs: diff, Rel: rel}
	if diff <= r.cfg.AmountAbsPass || rel <= r.cfg.AmountRelPass {
		return
	}
	conf := confOr(r.doc.Conf(field), 0.7)
	if diff <= r.cfg.AmountAbsWarn || rel <= r.cfg.AmountRelWarn {
		r.add(field, model.SeverityWarning, expected, detected, conf, "Amount slightly off")
		return
	}
	r.add(field, model.SeverityCritical, expected, detected, conf, "Amount mismatch")
}

// checkTaxRate cross-checks the detected tax amount against the PO's
// tax rate applied to the subtotal. Skipped when the tax amount
// already carries a direct discrepancy, so a single bad value is not
// flagged twice.
func (r *run) checkTaxRate(po *model.PurchaseOrder) {
	if po == nil || po.TaxRate == nil {
		return
	}
	subtotal := r.doc.Value(model.FieldSubtotal)
	if subtotal == nil {
		subtotal = r.truth.Expected(model.FieldSubtotal)
	}
	sub, okS := normalize.ParseAmount(subtotal)
	tax, okT := normalize.ParseAmount(r.doc.Value(model.FieldTaxAmount))
	if !okS || !okT {
		return
	}

	expectedTax := sub * *po.TaxRate
	r.details.TaxRateCheck = &model.TaxRateDetail{
		TaxRate:     *po.TaxRate,
		ExpectedTax: round(expectedTax, 4),
	}

	if r.hasDiscrepancy(model.FieldTaxAmount) {
		return
	}

	diff := math.Abs(expectedTax - tax)
	rel := diff
	if expectedTax != 0 {
		rel = diff / expectedTax
	}
	if diff <= r.cfg.AmountAbsPass || rel <= r.cfg.AmountRelPass {
		return
	}
	conf := confOr(r.doc.Conf(model.FieldTaxAmount), 0.7)
	if diff <= r.cfg.AmountAbsWarn || rel <= r.cfg.AmountRelWarn {
		r.add(model.FieldTaxAmount, model.SeverityWarning, round(expectedTax, 2), tax, conf,
			"Tax amount deviates from PO tax_rate")
		return
	}
	r.add(model.FieldTaxAmount, model.SeverityCritical, round(expectedTax, 2), tax, conf,
		"Tax amount mismatch vs PO tax_rate")
}

func (r *run) predictPWrong() map[model.FieldKey]float64 {
	out := make(map[model.FieldKey]float64, len(model.ScalarFields))
	for _, field := range model.ScalarFields {
		out[field] = predictor.PWrong(r.model, r.norm, field,
			r.truth.Expected(field), r.doc.Value(field), r.doc.Conf(field))
	}
	return out
}

func (e *Engine) decideStatus(result *model.Result) model.Status {
	if result.HasSeverity(model.SeverityCritical) {
		return model.Status(e.cfg.StatusOnCritical)
	}
	if result.HasSeverity(model.SeverityWarning) || result.ConfidenceScore < e.cfg.ReviewThreshold {
		return model.StatusNeedsReview
	}
	return model.StatusApproved
}

func (r *run) add(field model.FieldKey, sev model.Severity, expected, detected any, conf float64, suggestion string) {
	r.discrepancies = append(r.discrepancies, model.Discrepancy{
		Field:       string(field),
		IssueType:   sev,
		Expected:    expected,
		Detected:    detected,
		Confidence:  conf,
		Suggestion:  suggestion,
		BoundingBox: r.doc.Box(field),
	})
}

func (r *run) hasDiscrepancy(field model.FieldKey) bool {
	for _, d := range r.discrepancies {
		if d.Field == string(field) {
			return true
		}
	}
	return false
}

func confOr(conf *float64, fallback float64) float64 {
	if conf == nil || *conf == 0 {
		return fallback
	}
	return *conf
}

func round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

// stringify renders a field value for normalization and comparison.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(v)
	}
}
