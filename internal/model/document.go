package model

import "encoding/json"

// RawLineItem is one extracted invoice line item before parsing. Text
// carries the reconstructed "desc\nQty: n\nPrice: $x\nTotal: $y" form.
type RawLineItem struct {
	Text string `json:"text"`
}

// LineItem is a parsed line item. Pointer fields are nil when the text
// did not yield that component.
type LineItem struct {
	Description string   `json:"description"`
	Quantity    *int     `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	Total       *float64 `json:"total"`
}

// Document is the structured output of field extraction for one
// invoice. Values holds type-appropriate values per field key: string
// for text/date/id fields, float64 for amounts, []RawLineItem for
// line_items. A missing key means the field could not be located.
// Documents are built once per invoice and never mutated afterwards.
type Document struct {
	RawText    string               `json:"raw_text"`
	Values     map[FieldKey]any     `json:"structured_data"`
	Confidence map[FieldKey]float64 `json:"confidence_scores"`
	BBoxes     map[FieldKey]*BBox   `json:"bounding_boxes"`
}

// NewDocument returns an empty Document with allocated maps.
func NewDocument() *Document {
	return &Document{
		Values:     make(map[FieldKey]any),
		Confidence: make(map[FieldKey]float64),
		BBoxes:     make(map[FieldKey]*BBox),
	}
}

// Value returns the extracted value for a field, or nil when missing.
func (d *Document) Value(key FieldKey) any {
	if d == nil || d.Values == nil {
		return nil
	}
	return d.Values[key]
}

// Conf returns the per-field OCR confidence, or nil when unknown.
func (d *Document) Conf(key FieldKey) *float64 {
	if d == nil || d.Confidence == nil {
		return nil
	}
	if c, ok := d.Confidence[key]; ok {
		return &c
	}
	return nil
}

// Box returns the bounding box for a field, or nil when unknown.
func (d *Document) Box(key FieldKey) *BBox {
	if d == nil || d.BBoxes == nil {
		return nil
	}
	return d.BBoxes[key]
}

// LineItems returns the extracted raw line items, if any.
func (d *Document) LineItems() []RawLineItem {
	v, _ := d.Value(FieldLineItems).([]RawLineItem)
	return v
}

// Set records a field value with its confidence and bounding box.
// Confidence and box are optional; nil leaves the map untouched.
func (d *Document) Set(key FieldKey, value any, conf *float64, box *BBox) {
	if value == nil {
		return
	}
	d.Values[key] = value
	if conf != nil {
		d.Confidence[key] = *conf
	}
	if box != nil {
		d.BBoxes[key] = box
	}
}

// Has reports whether the field was extracted.
func (d *Document) Has(key FieldKey) bool {
	_, ok := d.Values[key]
	return ok
}

// UnmarshalJSON decodes a document and restores the concrete line item
// slice, which would otherwise round-trip as []any.
func (d *Document) UnmarshalJSON(data []byte) error {
	type alias Document
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*d = Document(a)
	raw, ok := d.Values[FieldLineItems]
	if !ok {
		return nil
	}
	entries, ok := raw.([]any)
	if !ok {
		return nil
	}
	items := make([]RawLineItem, 0, len(entries))
	for _, e := range entries {
		if m, ok := e.(map[string]any); ok {
			if text, ok := m["text"].(string); ok {
				items = append(items, RawLineItem{Text: text})
			}
		}
	}
	d.Values[FieldLineItems] = items
	return nil
}
