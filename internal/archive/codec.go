package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/roach88/kimconv/internal/record"
)

// RunKey is the top-level key that marks a document as a canonical archive.
const RunKey = "run"

// ErrNotCanonical is returned by Load when the document has no RunKey.
var ErrNotCanonical = errors.New("archive: document has no top-level \"run\" key")

// runFields is Run without its JSON methods.
type runFields Run

// MarshalJSON writes the modeled fields followed by the extensions in
// sorted key order, all in one flat object.
func (r Run) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(runFields(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extensions) == 0 {
		return base, nil
	}

	names := make([]string, 0, len(r.Extensions))
	for name := range r.Extensions {
		if reservedRunKeys[name] {
			return nil, &ExtensionError{Name: name, Reason: "shadows a run field"}
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.Write(base[:len(base)-1])
	for _, name := range names {
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Extensions[name])
		if err != nil {
			return nil, &ExtensionError{Name: name, Reason: "not JSON-encodable", Err: err}
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads modeled fields and collects every other member as an
// extension.
func (r *Run) UnmarshalJSON(data []byte) error {
	var base runFields
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	*r = Run(base)
	for name, raw := range members {
		if reservedRunKeys[name] {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("extension %q: %w", name, err)
		}
		if r.Extensions == nil {
			r.Extensions = make(map[string]any)
		}
		r.Extensions[name] = v
	}
	return nil
}

// Load decodes a canonical archive document.
func Load(data []byte) (*Archive, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, fmt.Errorf("archive: decode: %w", err)
	}
	if _, ok := members[RunKey]; !ok {
		return nil, ErrNotCanonical
	}
	a := New()
	if err := json.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("archive: decode: %w", err)
	}
	if a.Run == nil {
		a.Run = []*Run{}
	}
	return a, nil
}

// Marshal returns the indented JSON form of the archive.
func Marshal(a *Archive) ([]byte, error) {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("archive: encode: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteFile serializes the archive and writes it to path in one write.
// Nothing is created when serialization fails.
func (a *Archive) WriteFile(path string) error {
	data, err := Marshal(a)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("archive: write %s: %w", path, err)
	}
	return nil
}

// Hash returns the content hash of the archive's canonical JSON form.
func (a *Archive) Hash() (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("archive: encode: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("archive: decode: %w", err)
	}
	return record.ContentHash(doc)
}
