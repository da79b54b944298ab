package llm

// Schema names double as the structured-output names sent to the model.
const (
	SchemaProcurementRecord = "procurement_record"
	SchemaFieldRecovery     = "field_recovery"
	SchemaCommodityScoring  = "commodity_scoring"
	SchemaCommodityRerank   = "commodity_rerank"
)

// Every object is closed and lists all of its properties as required, with
// optional values expressed as nullable types. That is the shape strict
// structured outputs accept, and the same map is used to validate locally.

// BuildRecordJSONSchema returns the extraction schema, including the
// procurement-document flag.
func BuildRecordJSONSchema() map[string]any {
	props := recordProps()
	props["isProcurementRequest"] = map[string]any{"type": "boolean"}
	return closedObject(props)
}

// BuildRecoveryJSONSchema is the record schema without the detection flag.
func BuildRecoveryJSONSchema() map[string]any {
	return closedObject(recordProps())
}

func recordProps() map[string]any {
	line := closedObject(map[string]any{
		"description":     map[string]any{"type": "string"},
		"unit":            nullable("string"),
		"quantity":        map[string]any{"type": "number"},
		"unitPriceCents":  nullable("integer"),
		"totalPriceCents": nullable("integer"),
	})
	return map[string]any{
		"title":              nullable("string"),
		"vendorName":         nullable("string"),
		"vatNumber":          nullable("string"),
		"totalPriceCents":    nullable("integer"),
		"shippingCents":      nullable("integer"),
		"taxCents":           nullable("integer"),
		"totalDiscountCents": nullable("integer"),
		"orderLines":         map[string]any{"type": "array", "items": line},
	}
}

// BuildScoringJSONSchema returns the per-candidate scoring schema. Scores
// are not bounded here; the pipeline clamps them.
func BuildScoringJSONSchema() map[string]any {
	item := closedObject(map[string]any{
		"id":    map[string]any{"type": "integer"},
		"score": map[string]any{"type": "number"},
	})
	return closedObject(map[string]any{
		"scores":    map[string]any{"type": "array", "items": item},
		"rationale": map[string]any{"type": "string"},
	})
}

// BuildRerankJSONSchema returns the single-choice rerank schema.
func BuildRerankJSONSchema() map[string]any {
	return closedObject(map[string]any{
		"chosen_id":   map[string]any{"type": "integer"},
		"probability": map[string]any{"type": "number"},
	})
}

func closedObject(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for _, k := range sortedKeys(props) {
		required = append(required, k)
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func nullable(t string) map[string]any {
	return map[string]any{"type": []any{t, "null"}}
}
