package llm

// ConflictAnalysisSchema is the shape the conflict analysis prompt asks for.
func ConflictAnalysisSchema() map[string]any {
	severity := map[string]any{"type": "string", "enum": []any{"CRITICAL", "MEDIUM", "LOW"}}
	count := map[string]any{"type": "integer", "minimum": 0}

	return map[string]any{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"type":     "object",
		"required": []any{"conflicts", "alignments", "executive_summary"},
		"properties": map[string]any{
			"conflicts": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"topic", "severity", "issue"},
					"properties": map[string]any{
						"topic":           map[string]any{"type": "string"},
						"severity":        severity,
						"spd_text":        map[string]any{"type": "string"},
						"handbook_text":   map[string]any{"type": "string"},
						"issue":           map[string]any{"type": "string"},
						"risk_analysis":   map[string]any{"type": "string"},
						"recommendations": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
				},
			},
			"alignments": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"topic"},
					"properties": map[string]any{
						"topic":       map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
					},
				},
			},
			"executive_summary": map[string]any{
				"type":     "object",
				"required": []any{"total_conflicts", "overall_risk"},
				"properties": map[string]any{
					"total_conflicts": count,
					"critical":        count,
					"medium":          count,
					"low":             count,
					"overall_risk":    map[string]any{"type": "string", "enum": []any{"HIGH", "MEDIUM", "LOW"}},
					"key_findings":    map[string]any{"type": "string"},
				},
			},
		},
	}
}

// RosterRecordsSchema is the shape the roster structuring prompt asks for.
func RosterRecordsSchema() map[string]any {
	str := map[string]any{"type": []any{"string", "null"}}

	return map[string]any{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"type":     "object",
		"required": []any{"records"},
		"properties": map[string]any{
			"records": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"first_name":    str,
						"last_name":     str,
						"full_name":     str,
						"email":         str,
						"employee_id":   str,
						"date_of_birth": str,
						"hire_date":     str,
						"department":    str,
						"job_title":     str,
						"coverage_tier": str,
						"gender":        str,
						"salary":        map[string]any{"type": []any{"number", "string", "null"}},
					},
				},
			},
		},
	}
}
