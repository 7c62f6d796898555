package plans

// DeepMerge merges patch into doc and returns the result. Objects merge
// recursively; every other value, arrays included, replaces the target
// wholesale. Both inputs must come from encoding/json (maps keyed by string).
func DeepMerge(doc, patch any) any {
	docMap, docOK := doc.(map[string]any)
	patchMap, patchOK := patch.(map[string]any)
	if !docOK || !patchOK {
		return patch
	}

	for key, patchValue := range patchMap {
		docMap[key] = DeepMerge(docMap[key], patchValue)
	}
	return docMap
}
