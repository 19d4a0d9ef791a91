// Package record provides the raw OpenKIM record model used by the converter.
//
// A record is a flat mapping of dotted keys (e.g. "a.si-value",
// "species.source-value") to JSON values. This package imports nothing
// internal; every other package builds on it.
//
// Key constraints:
//   - Values are JSON-native: float64, string, bool, []any, map[string]any
//   - Lookups go through View so defaults live in one table (Defaults)
//   - A key is consumed only when it was present and decoded successfully
//   - Canonical JSON (RFC 8785) is the only serialization used for hashing
package record
