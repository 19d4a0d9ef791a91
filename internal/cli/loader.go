package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/kimconv/internal/archive"
	"github.com/roach88/kimconv/internal/record"
)

// InputKind classifies a loaded input document.
type InputKind string

const (
	// InputCanonical is an archive that needs no conversion.
	InputCanonical InputKind = "canonical"
	// InputLegacy is an object wrapping raw records under LegacyKey.
	InputLegacy InputKind = "legacy"
	// InputRecords is a bare array of flat records.
	InputRecords InputKind = "records"
)

// LegacyKey wraps raw records in older exports.
const LegacyKey = "QUERY"

// Input is a loaded input document.
type Input struct {
	Path    string
	Kind    InputKind
	Archive *archive.Archive // InputCanonical only
	Raw     []byte           // InputCanonical only: the document as read
	Records []record.Record  // InputLegacy and InputRecords
}

// LoadError represents an input that could not be read or decoded.
type LoadError struct {
	Code    string
	Message string
	Path    string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadInput reads path and detects what kind of document it holds.
//
// An object with a non-null "run" member is canonical. An object with a
// non-null LegacyKey member is unwrapped. A top-level array is a record
// list. Anything else is a LoadError; nothing is partially loaded.
func LoadInput(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "input file not found", Path: path}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: err.Error(), Path: path}
	}
	return DecodeInput(path, data)
}

// DecodeInput classifies an already-read document. path is used for messages only.
func DecodeInput(path string, data []byte) (*Input, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &LoadError{Code: ErrCodeDecodeFailed, Message: "empty document", Path: path}
	}

	switch trimmed[0] {
	case '[':
		records, err := record.DecodeRecords(trimmed)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeDecodeFailed, Message: err.Error(), Path: path}
		}
		return &Input{Path: path, Kind: InputRecords, Records: records}, nil

	case '{':
		var members map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &members); err != nil {
			return nil, &LoadError{Code: ErrCodeDecodeFailed, Message: err.Error(), Path: path}
		}
		if present(members, archive.RunKey) {
			a, err := archive.Load(trimmed)
			if err != nil {
				return nil, &LoadError{Code: ErrCodeDecodeFailed, Message: err.Error(), Path: path}
			}
			return &Input{Path: path, Kind: InputCanonical, Archive: a, Raw: trimmed}, nil
		}
		if present(members, LegacyKey) {
			records, err := record.DecodeRecords(members[LegacyKey])
			if err != nil {
				return nil, &LoadError{Code: ErrCodeDecodeFailed, Message: fmt.Sprintf("%s: %v", LegacyKey, err), Path: path}
			}
			return &Input{Path: path, Kind: InputLegacy, Records: records}, nil
		}
		return nil, &LoadError{
			Code:    ErrCodeUnknownInput,
			Message: fmt.Sprintf("object has neither %q nor %q", archive.RunKey, LegacyKey),
			Path:    path,
		}

	default:
		return nil, &LoadError{Code: ErrCodeDecodeFailed, Message: "expected a JSON object or array", Path: path}
	}
}

// WriteCanonical writes a canonical input back out with every member it
// carried, including those the archive model does not know about.
func (in *Input) WriteCanonical(path string) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, in.Raw, "", "  "); err != nil {
		return fmt.Errorf("indent %s: %w", in.Path, err)
	}
	buf.WriteByte('\n')
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func present(members map[string]json.RawMessage, key string) bool {
	raw, ok := members[key]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// DefaultOutputPath returns openkim_archive_<base>.json next to the input,
// where base is the input file name without its .json extension.
func DefaultOutputPath(input string) string {
	base := strings.TrimSuffix(filepath.Base(input), ".json")
	return filepath.Join(filepath.Dir(input), "openkim_archive_"+base+".json")
}

// Error code constants, shared by all commands.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeReadFailed   = "E002" // Input could not be read
	ErrCodeDecodeFailed = "E003" // Input is not valid JSON of the expected shape
	ErrCodeUnknownInput = "E004" // Input object is neither canonical nor legacy
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeConfig       = "E006" // Configuration could not be loaded
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeCatalog      = "E008" // Catalog could not be opened or updated
	ErrCodeQueryFailed  = "E009" // Remote query failed

	ErrCodeSchema = "E101" // Archive does not satisfy the schema
)
