package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
)

// Record is one flat OpenKIM query result.
type Record map[string]any

// Keys read by the converter. Qualified keys follow "<quantity>.<qualifier>".
const (
	KeySpecies       = "species.source-value"
	KeyBasis         = "basis-atom-coordinates.source-value"
	KeySpaceGroup    = "space-group.source-value"
	KeyA             = "a.si-value"
	KeyB             = "b.si-value"
	KeyC             = "c.si-value"
	KeyLengthUnit    = "a.si-unit"
	KeyAlpha         = "alpha.source-value"
	KeyBeta          = "beta.source-value"
	KeyGamma         = "gamma.source-value"
	KeyEnergy        = "cohesive-potential-energy.si-value"
	KeyTemperature   = "temperature.si-value"
	KeyStress        = "cauchy-stress.si-value"
	KeyPropertyID    = "property-id"
	KeyRunnerShortID = "meta.runner.short-id"
	KeyCreatedOn     = "meta.created_on"
)

// MetaPrefix marks metadata keys that are aggregated rather than mapped one by one.
const MetaPrefix = "meta."

// IdentifierKeys lists the keys that can identify a record, in priority order.
var IdentifierKeys = []string{
	"meta.uuid",
	KeyPropertyID,
	"meta.test-result-id",
	"meta.subject.short-id",
	"created_on",
}

// Keys returns the record keys in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Identifier returns the first identifier key value present on the record.
// Non-string identifiers are rendered with %v. ok is false when none is present.
func (r Record) Identifier() (id string, ok bool) {
	for _, key := range IdentifierKeys {
		v, present := r[key]
		if !present || v == nil {
			continue
		}
		if s, isString := v.(string); isString {
			return s, true
		}
		return fmt.Sprintf("%v", v), true
	}
	return "", false
}

var nonWord = regexp.MustCompile(`\W`)

// SanitizeKey replaces every non-word character with an underscore.
func SanitizeKey(key string) string {
	return nonWord.ReplaceAllString(key, "_")
}

// DecodeRecords decodes a JSON array of flat record objects.
func DecodeRecords(data []byte) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, fmt.Errorf("decode records: expected JSON array")
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	for i, r := range records {
		if r == nil {
			return nil, fmt.Errorf("decode records: element %d is not an object", i)
		}
	}
	return records, nil
}
