// Package runid derives deterministic run identifiers.
//
// A run is identified by the md5 of "interval:start:end:model", so the same
// dataset window and model always map to the same id — useful for caching
// and for deduplicating persisted results.
package runid

import (
	"crypto/md5"
	"fmt"
)

// Hash returns the lowercase hex md5 of s.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// RunID builds the id for one backtest run.
func RunID(interval, start, end, modelID string) string {
	return Hash(fmt.Sprintf("%s:%s:%s:%s", interval, start, end, modelID))
}
