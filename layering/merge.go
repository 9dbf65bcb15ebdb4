package layering

// MergeMaps composes override mappings ordered from strongest to weakest.
// Nested map[string]any values are merged key by key so a stronger layer only
// replaces the keys it sets; any other value from the strongest layer that
// defines it wins outright. The inputs are never modified.
func MergeMaps(layers ...map[string]any) map[string]any {
	merged := map[string]any{}
	for i := len(layers) - 1; i >= 0; i-- {
		merged = mergeInto(merged, layers[i])
	}
	return merged
}

func mergeInto(weak, strong map[string]any) map[string]any {
	out := make(map[string]any, len(weak)+len(strong))
	for key, value := range weak {
		out[key] = value
	}
	for key, value := range strong {
		strongMap, strongIsMap := value.(map[string]any)
		weakMap, weakIsMap := out[key].(map[string]any)
		if strongIsMap && weakIsMap {
			out[key] = mergeInto(weakMap, strongMap)
			continue
		}
		out[key] = CloneAny(value)
	}
	return out
}

// Lookup walks a nested mapping along path segments.
func Lookup(data map[string]any, path []string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	current := any(data)
	for _, segment := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
