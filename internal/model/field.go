package model

// FieldKey identifies one of the fixed extracted invoice fields.
type FieldKey string

const (
	FieldVendorName      FieldKey = "vendor_name"
	FieldVendorAddress   FieldKey = "vendor_address"
	FieldCustomerName    FieldKey = "customer_name"
	FieldCustomerAddress FieldKey = "customer_address"
	FieldPONumber        FieldKey = "po_number"
	FieldInvoiceDate     FieldKey = "invoice_date"
	FieldDueDate         FieldKey = "due_date"
	FieldSubtotal        FieldKey = "subtotal"
	FieldTaxAmount       FieldKey = "tax_amount"
	FieldTotalAmount     FieldKey = "total_amount"
	FieldLineItems       FieldKey = "line_items"
)

// FieldType classifies a field for comparison-rule dispatch. The set is
// closed: every extracted field maps to exactly one type.
type FieldType string

const (
	TypeName     FieldType = "name"
	TypeAddress  FieldType = "address"
	TypeID       FieldType = "id"
	TypeDate     FieldType = "date"
	TypeAmount   FieldType = "amount"
	TypeItemList FieldType = "item-list"
)

// FieldTypes maps each field key to its comparison type.
var FieldTypes = map[FieldKey]FieldType{
	FieldVendorName:      TypeName,
	FieldCustomerName:    TypeName,
	FieldVendorAddress:   TypeAddress,
	FieldCustomerAddress: TypeAddress,
	FieldPONumber:        TypeID,
	FieldInvoiceDate:     TypeDate,
	FieldDueDate:         TypeDate,
	FieldSubtotal:        TypeAmount,
	FieldTaxAmount:       TypeAmount,
	FieldTotalAmount:     TypeAmount,
	FieldLineItems:       TypeItemList,
}

// ScalarFields lists the non-item fields in check order. Validation and
// probability-wrong prediction iterate this slice so discrepancy order
// is deterministic.
var ScalarFields = []FieldKey{
	FieldVendorName,
	FieldCustomerName,
	FieldVendorAddress,
	FieldCustomerAddress,
	FieldPONumber,
	FieldInvoiceDate,
	FieldDueDate,
	FieldSubtotal,
	FieldTaxAmount,
	FieldTotalAmount,
}

// AllFields lists every field key including line_items.
var AllFields = append(append([]FieldKey{}, ScalarFields...), FieldLineItems)
