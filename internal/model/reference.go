package model

// PurchaseOrder is one approved purchase order from the reference
// database. A resolved PO record is immutable reference truth for the
// remainder of a validation pass.
type PurchaseOrder struct {
	Vendor         string         `json:"vendor"`
	ApprovedAmount float64        `json:"approved_amount"`
	ValidItems     []string       `json:"valid_items"`
	MaxQuantity    map[string]int `json:"max_quantity"`
	TaxRate        *float64       `json:"tax_rate"`
}

// HasValidItem reports whether desc appears in the approved item set.
func (po *PurchaseOrder) HasValidItem(desc string) bool {
	for _, item := range po.ValidItems {
		if item == desc {
			return true
		}
	}
	return false
}

// VendorRecord is a vendor-master entry keyed by legal name.
type VendorRecord struct {
	Address string `json:"address"`
}

// CustomerRecord is a customer-info entry keyed by legal name.
type CustomerRecord struct {
	BillingAddress string `json:"billing_address"`
}

// ReferenceDB is the read-only reference database used during
// validation. Precedence: a PO vendor name overrides the ground-truth
// vendor name, vendor_master overrides the vendor address, and
// customer_info overrides the customer billing address when present.
type ReferenceDB struct {
	PurchaseOrders map[string]PurchaseOrder  `json:"purchase_orders"`
	VendorMaster   map[string]VendorRecord   `json:"vendor_master"`
	CustomerInfo   map[string]CustomerRecord `json:"customer_info"`
}

// GroundTruth is the trusted expected data for one invoice.
type GroundTruth struct {
	InvoiceID    string           `json:"invoice_id"`
	ExpectedData map[FieldKey]any `json:"expected_data"`
}

// Expected returns the ground-truth value for a field, or nil.
func (g GroundTruth) Expected(key FieldKey) any {
	if g.ExpectedData == nil {
		return nil
	}
	return g.ExpectedData[key]
}
