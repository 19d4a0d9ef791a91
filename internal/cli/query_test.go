package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kimconv/internal/archive"
	"github.com/roach88/kimconv/internal/store"
)

func queryServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runQueryCmd(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewQueryCommand(opts)
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestQueryWritesRecordFiles(t *testing.T) {
	srv := queryServer(t, http.StatusOK, `[{"meta.uuid": "rec-1", "a.si-value": 4e-10}, {"a.si-value": 1}]`)
	dir := t.TempDir()
	opts := testOptions("json")
	opts.Config.Query.URL = srv.URL

	out, err := runQueryCmd(t, opts, "Ag", "--dir", dir)
	require.NoError(t, err)

	var resp struct {
		Data QueryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "Ag", resp.Data.Element)
	assert.Equal(t, []string{"rec_1.json"}, resp.Data.Written)
	assert.Equal(t, []int{1}, resp.Data.Unidentified)

	in, err := LoadInput(filepath.Join(dir, "rec_1.json"))
	require.NoError(t, err)
	assert.Equal(t, InputRecords, in.Kind)
	require.Len(t, in.Records, 1)
	assert.Equal(t, "rec-1", in.Records[0]["meta.uuid"])
}

func TestQueryCheckCatalogSkipsKnownRecords(t *testing.T) {
	srv := queryServer(t, http.StatusOK, `[{"meta.uuid": "rec-1"}, {"meta.uuid": "rec-2"}]`)
	catalog := filepath.Join(t.TempDir(), "catalog.db")

	st, err := store.Open(catalog)
	require.NoError(t, err)
	up, err := st.CreateUpload(context.Background(), "earlier")
	require.NoError(t, err)
	entry, err := store.NewEntry(up.ID, "rec_1.json", "", archive.New(), 0)
	require.NoError(t, err)
	_, _, err = st.PutEntry(context.Background(), entry)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	dir := t.TempDir()
	opts := testOptions("text")
	opts.Config.Query.URL = srv.URL

	out, err := runQueryCmd(t, opts, "Ag", "--dir", dir, "--check-catalog", "--catalog", catalog)
	require.NoError(t, err)
	assert.Contains(t, out, "Ag: 1 written, 1 skipped, 0 unidentified")
	assert.Contains(t, out, "+ rec_2.json")

	_, err = os.Stat(filepath.Join(dir, "rec_1.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestQueryCheckCatalogNeedsPath(t *testing.T) {
	opts := testOptions("text")
	opts.Config.Query.URL = "http://unused.invalid"

	_, err := runQueryCmd(t, opts, "Ag", "--check-catalog")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeConfig)
}

func TestQueryServiceError(t *testing.T) {
	srv := queryServer(t, http.StatusInternalServerError, "boom")
	opts := testOptions("text")
	opts.Config.Query.URL = srv.URL

	out, err := runQueryCmd(t, opts, "Ag", "--dir", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeQueryFailed)
	assert.Contains(t, out, "Error [E009]")
}
