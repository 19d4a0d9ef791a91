package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kimconv/internal/archive"
)

const agRecord = `{
	"property-id": "tag:staff@noreply.openkim.org,2014-04-15:property/structure-cubic-crystal-npt",
	"meta.runner.short-id": "TE_929921425793_007",
	"meta.uuid": "c5ba4d22-1234",
	"species.source-value": ["Ag"],
	"basis-atom-coordinates.source-value": [[0, 0, 0]],
	"space-group.source-value": "Fm-3m",
	"a.si-value": 4.09e-10,
	"cohesive-potential-energy.si-value": 4.5e-19,
	"temperature.si-value": 0
}`

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runConvertCmd(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewConvertCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestConvertRecordsWritesDefaultOutput(t *testing.T) {
	input := writeInput(t, "Ag.json", "["+agRecord+"]")

	out, err := runConvertCmd(t, testOptions("text"), input)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Converted")
	assert.Contains(t, out, "runs: 1  systems: 1  calculations: 1  workflows: 0")

	output := filepath.Join(filepath.Dir(input), "openkim_archive_Ag.json")
	data, err := os.ReadFile(output)
	require.NoError(t, err)

	a, err := archive.Load(data)
	require.NoError(t, err)
	require.Len(t, a.Run, 1)
	assert.Len(t, a.Run[0].System[0].Atoms.Labels, 4, "face-centred cell holds four atoms")

	violations, err := archive.Validate(output, data)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestConvertLegacyInputJSON(t *testing.T) {
	input := writeInput(t, "legacy.json", `{"QUERY": [{}, {"a.si-value": "oops"}]}`)
	output := filepath.Join(t.TempDir(), "out.json")

	out, err := runConvertCmd(t, testOptions("json"), input, "-o", output)
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   ConvertResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, InputLegacy, resp.Data.Kind)
	assert.Equal(t, output, resp.Data.Output)
	assert.Equal(t, 2, resp.Data.Runs)
	require.Len(t, resp.Data.Issues, 1, "bad lattice constant is reported, not fatal")
	assert.Contains(t, resp.Data.Issues[0], "record 1")
	assert.Nil(t, resp.Data.Catalog)
	assert.FileExists(t, output)
}

func TestConvertCanonicalIsReemitted(t *testing.T) {
	input := writeInput(t, "done.json", `{"run": [{"program": {"name": "OpenKIM", "version": "v1"}}]}`)
	output := filepath.Join(t.TempDir(), "copy.json")

	out, err := runConvertCmd(t, testOptions("text"), input, "--output", output)
	require.NoError(t, err)
	assert.Contains(t, out, "runs: 1  systems: 0")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	a, err := archive.Load(data)
	require.NoError(t, err)
	assert.Equal(t, "v1", a.Run[0].Program.Version)
}

func TestConvertCanonicalKeepsUnmodeledMembers(t *testing.T) {
	input := writeInput(t, "done.json", `{
		"metadata": {"upload": "u1"},
		"run": [{
			"program": {"name": "OpenKIM"},
			"calculation": [{"x_extra": 1}]
		}],
		"workflow": [{"type": "elastic", "x_note": "kept"}]
	}`)
	output := filepath.Join(t.TempDir(), "copy.json")

	_, err := runConvertCmd(t, testOptions("text"), input, "--output", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, map[string]any{"upload": "u1"}, doc["metadata"])
	calc := doc["run"].([]any)[0].(map[string]any)["calculation"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(1), calc["x_extra"])
	wf := doc["workflow"].([]any)[0].(map[string]any)
	assert.Equal(t, "kept", wf["x_note"])
}

func TestConvertUnreadableInput(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    string
	}{
		{"not json", "not json at all", ErrCodeDecodeFailed},
		{"unknown object", `{"records": []}`, ErrCodeUnknownInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := writeInput(t, "bad.json", tt.content)

			out, err := runConvertCmd(t, testOptions("text"), input)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.code)
			assert.Contains(t, out, "Error ["+tt.code+"]")
			assert.NoFileExists(t, DefaultOutputPath(input), "no archive on fatal input error")
		})
	}
}

func TestConvertMissingInput(t *testing.T) {
	_, err := runConvertCmd(t, testOptions("text"), filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}

func TestConvertFlagsOverrideConfig(t *testing.T) {
	opts := &ConvertOptions{RootOptions: testOptions("text"), Workers: 4, Unit: "angstrom"}
	opts.Config.Converter.Workers = 1

	co := converterOptions(opts)
	assert.Equal(t, 4, co.Workers)
	assert.Equal(t, "angstrom", co.LengthUnit)
	assert.Equal(t, "x_openkim_", co.ExtensionPrefix)

	opts.Workers, opts.Unit = 0, ""
	co = converterOptions(opts)
	assert.Equal(t, 1, co.Workers)
	assert.Equal(t, "m", co.LengthUnit)
}

func TestConvertRegistersInCatalog(t *testing.T) {
	input := writeInput(t, "Ag.json", "["+agRecord+"]")
	catalog := filepath.Join(t.TempDir(), "catalog.db")

	out, err := runConvertCmd(t, testOptions("json"), input, "--catalog", catalog)
	require.NoError(t, err)

	var first struct {
		Data ConvertResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	require.NotNil(t, first.Data.Catalog)
	assert.True(t, first.Data.Catalog.Inserted)
	assert.NotEmpty(t, first.Data.Catalog.EntryID)

	out, err = runConvertCmd(t, testOptions("json"), input, "--catalog", catalog)
	require.NoError(t, err)

	var second struct {
		Data ConvertResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &second))
	require.NotNil(t, second.Data.Catalog)
	assert.False(t, second.Data.Catalog.Inserted, "same mainfile is catalogued once")
	assert.Equal(t, first.Data.Catalog.EntryID, second.Data.Catalog.EntryID)
}

func TestConvertCatalogFromConfig(t *testing.T) {
	input := writeInput(t, "Ag.json", "["+agRecord+"]")
	opts := testOptions("text")
	opts.Config.Catalog.Path = filepath.Join(t.TempDir(), "catalog.db")

	out, err := runConvertCmd(t, opts, input)
	require.NoError(t, err)
	assert.Contains(t, out, "(new)")
	assert.FileExists(t, opts.Config.Catalog.Path)
}
