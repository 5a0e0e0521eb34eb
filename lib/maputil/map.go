package maputil

import (
	"maps"
)

// DeepMerge returns a copy of [base] overlaid with [override]. Nested maps are merged key by key,
// every other value (lists included) in [override] replaces the one in [base].
func DeepMerge(base, override map[string]any) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]any, len(override))
	}

	for key, overrideValue := range override {
		overrideMap, overrideIsMap := overrideValue.(map[string]any)
		baseMap, baseIsMap := out[key].(map[string]any)
		if overrideIsMap && baseIsMap {
			out[key] = DeepMerge(baseMap, overrideMap)
			continue
		}

		out[key] = overrideValue
	}

	return out
}

// Lookup walks a dotted path (`a.b.c`) through nested maps.
func Lookup(obj map[string]any, path ...string) (any, bool) {
	var current any = obj
	for _, part := range path {
		currentMap, isOk := current.(map[string]any)
		if !isOk {
			return nil, false
		}

		current, isOk = currentMap[part]
		if !isOk {
			return nil, false
		}
	}

	return current, true
}
