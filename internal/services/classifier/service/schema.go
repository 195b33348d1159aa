package service

// Schema returns the strict JSON schema the provider must emit for one
// classification. Keep the enums in lockstep with the domain vocabulary
func Schema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required": []string{
			"detected_language", "topics", "intent", "rewrite_strength", "safety_flags",
		},
		"properties": map[string]any{
			"detected_language": map[string]any{
				"type":        "string",
				"description": "BCP-47 language tag of the entry text",
			},
			"topics": map[string]any{
				"type":     "array",
				"minItems": 1,
				"maxItems": 3,
				"items": map[string]any{
					"type": "string",
					"enum": []string{
						"chores", "money", "parenting", "communication",
						"time", "habits", "respect", "other",
					},
				},
			},
			"intent": map[string]any{
				"type": "string",
				"enum": []string{"vent", "concern", "boundary", "request", "logistics"},
			},
			"rewrite_strength": map[string]any{
				"type": "string",
				"enum": []string{"light_touch", "full_reframe"},
			},
			"safety_flags": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "string",
					"enum": []string{"none", "self_harm", "violence", "abuse", "substance"},
				},
			},
		},
	}
}
