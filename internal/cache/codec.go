package cache

import (
	"fmt"
	"strconv"
)

// KeyCodec maps a cache key to the columns of a durable row.
type KeyCodec[K comparable] struct {
	Encode func(K) []string
	Decode func([]string) (K, error)
}

// ValueCodec maps a cache value to the value column of a durable row.
type ValueCodec[V any] struct {
	Encode func(V) string
	Decode func(string) (V, error)
}

// Pair is a two-column key, e.g. (term, ontology) or (query, entity).
type Pair [2]string

// StringKeys is the codec for single-column keys.
var StringKeys = KeyCodec[string]{
	Encode: func(k string) []string { return []string{k} },
	Decode: func(cols []string) (string, error) {
		if len(cols) != 1 {
			return "", fmt.Errorf("want 1 key column, got %d", len(cols))
		}
		return cols[0], nil
	},
}

// PairKeys is the codec for two-column keys.
var PairKeys = KeyCodec[Pair]{
	Encode: func(k Pair) []string { return []string{k[0], k[1]} },
	Decode: func(cols []string) (Pair, error) {
		if len(cols) != 2 {
			return Pair{}, fmt.Errorf("want 2 key columns, got %d", len(cols))
		}
		return Pair{cols[0], cols[1]}, nil
	},
}

// Floats round-trips float64 values exactly.
var Floats = ValueCodec[float64]{
	Encode: func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) },
	Decode: func(s string) (float64, error) { return strconv.ParseFloat(s, 64) },
}

// Ints encodes int values in decimal.
var Ints = ValueCodec[int]{
	Encode: strconv.Itoa,
	Decode: strconv.Atoi,
}
