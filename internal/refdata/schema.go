package refdata

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Minimal structural schemas. Validation is fatal: a reference file
// missing its top-level keys poisons every downstream comparison, so
// loading refuses it outright.
const groundTruthSchema = `{
  "type": "object",
  "required": ["invoices"],
  "properties": {
    "invoices": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["invoice_id"],
        "properties": {
          "invoice_id": {"type": "string"},
          "expected_data": {"type": "object"}
        }
      }
    }
  }
}`

const databaseSchema = `{
  "type": "object",
  "required": ["purchase_orders", "vendor_master", "customer_info"],
  "properties": {
    "purchase_orders": {"type": "object"},
    "vendor_master": {"type": "object"},
    "customer_info": {"type": "object"}
  }
}`

const resultsSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "required": ["structured_data"],
    "properties": {
      "raw_text": {"type": "string"},
      "structured_data": {"type": "object"},
      "confidence_scores": {"type": "object"},
      "bounding_boxes": {"type": "object"}
    }
  }
}`

var (
	groundTruthCompiled = jsonschema.MustCompileString("ground_truth.schema.json", groundTruthSchema)
	databaseCompiled    = jsonschema.MustCompileString("database.schema.json", databaseSchema)
	resultsCompiled     = jsonschema.MustCompileString("ocr_results.schema.json", resultsSchema)
)

func validateSchema(schema *jsonschema.Schema, doc any, name string) error {
	if err := schema.Validate(doc); err != nil {
		return eris.Wrapf(err, "refdata: %s failed schema validation", name)
	}
	return nil
}

// decodeJSON parses raw bytes into the generic shape jsonschema
// validates against.
func decodeJSON(data []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
