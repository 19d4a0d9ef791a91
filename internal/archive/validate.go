package archive

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed schema.cue
var schemaSource string

// ValidationError is one schema violation in an archive document.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error

	// cue.Context is not safe for concurrent use.
	validateMu sync.Mutex
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("archive: compile schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Archive"))
		if !schemaDef.Exists() {
			schemaErr = fmt.Errorf("archive: schema has no #Archive definition")
		}
	})
	return schemaCtx, schemaDef, schemaErr
}

// Validate checks a JSON document against the canonical archive schema.
// The returned error is non-nil only when the document cannot be parsed or
// the schema itself is broken; violations are returned as a list.
func Validate(filename string, data []byte) ([]ValidationError, error) {
	validateMu.Lock()
	defer validateMu.Unlock()

	ctx, def, err := loadSchema()
	if err != nil {
		return nil, err
	}
	expr, err := cuejson.Extract(filename, data)
	if err != nil {
		return nil, fmt.Errorf("archive: parse %s: %w", filename, err)
	}
	doc := ctx.BuildExpr(expr)
	if err := doc.Err(); err != nil {
		return nil, fmt.Errorf("archive: build %s: %w", filename, err)
	}

	err = def.Unify(doc).Validate(cue.Concrete(true))
	if err == nil {
		return nil, nil
	}
	var out []ValidationError
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		ve := ValidationError{
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		}
		if pos := e.Position(); pos.IsValid() && pos.Filename() == filename {
			ve.Line = pos.Line()
		}
		out = append(out, ve)
	}
	return out, nil
}
