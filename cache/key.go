package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const keySeparator = ":"

// Key derives the cache key for op called with params:
// op + ":" + the JSON form of params with object keys sorted.
//
// Params are round-tripped through a generic JSON value so that maps and
// structs with the same fields in a different order produce the same key.
// Call sites with positional arguments pass them as a slice. Numbers keep
// their literal form (no float64 rounding of large ids).
func Key(op string, params any) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("cache: encoding params for %s: %w", op, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var normalized any
	if err := dec.Decode(&normalized); err != nil {
		return "", fmt.Errorf("cache: normalizing params for %s: %w", op, err)
	}

	// encoding/json writes map keys in sorted order.
	sorted, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("cache: encoding params for %s: %w", op, err)
	}
	return op + keySeparator + string(sorted), nil
}
