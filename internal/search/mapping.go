package search

// IndexMapping is the ticket index definition. A positive dimension adds the
// knn_vector field.
func IndexMapping(vectorField string, dimension int) map[string]any {
	keywordText := map[string]any{"type": "text", "fields": map[string]any{"keyword": map[string]any{"type": "keyword"}}}
	props := map[string]any{
		"ticketId":        map[string]any{"type": "keyword"},
		"displayId":       map[string]any{"type": "keyword"},
		"subject":         map[string]any{"type": "text"},
		"subcategory":     keywordText,
		"requester_name":  keywordText,
		"technician_name": keywordText,
		"priority":        map[string]any{"type": "keyword"},
		"status":          keywordText,
		"createdTime":     map[string]any{"type": "date"},
		"updatedTime":     map[string]any{"type": "date"},
		"resolutionSteps": map[string]any{"type": "text"},
	}
	if dimension > 0 {
		props[vectorField] = map[string]any{
			"type":       "knn_vector",
			"dimension":  dimension,
			"space_type": "l2",
			"method": map[string]any{
				"name":       "hnsw",
				"engine":     "faiss",
				"parameters": map[string]any{},
			},
		}
	}
	return map[string]any{
		"settings": map[string]any{"index": map[string]any{"knn": true}},
		"mappings": map[string]any{
			"dynamic_templates": []any{
				map[string]any{"strings": map[string]any{
					"match_mapping_type": "string",
					"mapping": map[string]any{
						"type":   "text",
						"fields": map[string]any{"keyword": map[string]any{"type": "keyword", "ignore_above": 2147483647}},
					},
				}},
			},
			"properties": props,
		},
	}
}
