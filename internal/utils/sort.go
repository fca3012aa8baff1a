package utils

import (
	"cmp"
	"sort"
)

// SortedKeys returns the map's keys in ascending order, for deterministic
// iteration over year- and code-keyed maps.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return cmp.Less(keys[i], keys[j])
	})
	return keys
}
