package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsBuiltArchive(t *testing.T) {
	data, err := Marshal(sampleArchive(t))
	require.NoError(t, err)

	violations, err := Validate("archive.json", data)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestValidateAcceptsEmptyArchive(t *testing.T) {
	violations, err := Validate("empty.json", []byte(`{"run": []}`))
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestValidateReportsViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing run", `{"workflow": []}`},
		{"empty program name", `{"run": [{"program": {"name": ""}}]}`},
		{"unprefixed run member", `{"run": [{"program": {"name": "OpenKIM"}, "species": "Ag"}]}`},
		{"bad workflow type", `{"run": [], "workflow": [{"type": "md"}]}`},
		{"short lattice", `{"run": [{"program": {"name": "OpenKIM"}, "system": [{"atoms": {
			"labels": ["X"], "positions": [[0,0,0]], "lattice_vectors": [[1,0,0]], "periodic": [true,true,true]}}]}]}`},
		{"stress not a matrix", `{"run": [{"program": {"name": "OpenKIM"}, "calculation": [{"stress": {"total": [1,2,3]}}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations, err := Validate("doc.json", []byte(tt.doc))
			require.NoError(t, err)
			assert.NotEmpty(t, violations)
		})
	}
}

func TestValidateRejectsInvalidJSON(t *testing.T) {
	_, err := Validate("broken.json", []byte(`{"run": [`))
	assert.Error(t, err)
}
