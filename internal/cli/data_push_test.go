package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxloop/fluxloop-cli/internal/client"
)

// pushBackend fakes the data endpoints of the service and records every
// request the push workflow makes.
type pushBackend struct {
	mu sync.Mutex

	serverURL string

	requests           []string
	createPayload      map[string]any
	uploadedBody       []byte
	uploadContentType  string
	confirmPayload     map[string]any
	bindPayload        map[string]any
	materializePayload map[string]any

	bindStatus        int
	materializeStatus int
	materializeBody   string
}

func newPushBackend() *pushBackend {
	return &pushBackend{
		bindStatus:        http.StatusOK,
		materializeStatus: http.StatusOK,
		materializeBody:   `{"profile": {"id": "gtp-1"}, "gt_contracts": [{"id": "c-1"}, {"id": "c-2"}], "gt_contract_ids": ["c-1"]}`,
	}
}

func (b *pushBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.requests = append(b.requests, r.Method+" "+r.URL.Path)

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/projects/proj-1/data":
			_ = json.NewDecoder(r.Body).Decode(&b.createPayload)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"data": {"id": "data-1"}, "upload": {"upload_url": %q, "headers": {"Content-Type": "text/csv"}}}`,
				b.serverURL+"/upload/data-1")
		case r.Method == http.MethodPut && r.URL.Path == "/upload/data-1":
			b.uploadedBody, _ = io.ReadAll(r.Body)
			b.uploadContentType = r.Header.Get("Content-Type")
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/api/projects/proj-1/data/data-1/confirm":
			_ = json.NewDecoder(r.Body).Decode(&b.confirmPayload)
			fmt.Fprint(w, `{"processing_status": "queued"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/scenarios/scn-1/data/bind":
			_ = json.NewDecoder(r.Body).Decode(&b.bindPayload)
			if b.bindStatus != http.StatusOK {
				w.WriteHeader(b.bindStatus)
				fmt.Fprint(w, `{"detail": "binding exists"}`)
				return
			}
			fmt.Fprint(w, `{"binding_id": "bind-1"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/scenarios/scn-1/ground-truth/materialize":
			_ = json.NewDecoder(r.Body).Decode(&b.materializePayload)
			if b.materializeStatus != http.StatusOK {
				w.WriteHeader(b.materializeStatus)
				fmt.Fprint(w, `{"detail": "Dataset processing is pending."}`)
				return
			}
			fmt.Fprint(w, b.materializeBody)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newPushOptions(t *testing.T, serverURL string) *DataPushOptions {
	t.Helper()
	o := DefaultDataPushOptions()
	o.ConfigFilePath = filepath.Join(t.TempDir(), "client.yaml")
	o.ApiUrl = serverURL
	o.ProjectId = "proj-1"
	return o
}

func writeDataFile(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDataPushGroundTruthWorkflow(t *testing.T) {
	backend := newPushBackend()
	server := httptest.NewServer(backend.handler())
	defer server.Close()
	backend.serverURL = server.URL

	file := writeDataFile(t, "golden.csv", "q,expected\nhello,world\n")

	o := newPushOptions(t, server.URL)
	o.Usage = usageGroundTruth
	o.As = "document"
	o.Scenario = "scn-1"
	o.Split = "dev"
	o.LabelColumn = "expected"
	o.RowFilter = "q != ''"
	o.SamplingSeed = 7
	o.Quiet = true
	require.NoError(t, o.Validate([]string{file}))

	output := captureStdout(t, func() {
		require.NoError(t, o.Run(context.Background(), []string{file}))
	})

	assert.Equal(t, []string{
		"POST /api/projects/proj-1/data",
		"PUT /upload/data-1",
		"POST /api/projects/proj-1/data/data-1/confirm",
		"POST /api/scenarios/scn-1/data/bind",
		"POST /api/scenarios/scn-1/ground-truth/materialize",
	}, backend.requests)

	// Ground Truth uploads force the dataset pipeline even when --as
	// asks for a document.
	assert.Equal(t, "golden.csv", backend.createPayload["filename"])
	assert.Equal(t, "structured", backend.createPayload["file_type"])
	assert.Equal(t, "DATASET", backend.createPayload["data_category"])
	assert.Equal(t, "dataset", backend.createPayload["processing_profile"])

	// The file content goes to the signed URL with the returned headers.
	assert.Equal(t, "q,expected\nhello,world\n", string(backend.uploadedBody))
	assert.Equal(t, "text/csv", backend.uploadContentType)

	assert.Equal(t, client.HashContent([]byte("q,expected\nhello,world\n")), backend.confirmPayload["content_hash"])
	assert.EqualValues(t, len("q,expected\nhello,world\n"), backend.confirmPayload["file_size"])

	require.Equal(t, map[string]any{
		"data_id": "data-1",
		"binding_meta": map[string]any{
			"role":          "validation",
			"sampling_seed": float64(7),
			"split":         "dev",
			"label_column":  "expected",
			"row_filter":    "q != ''",
		},
	}, backend.bindPayload)

	require.Equal(t, map[string]any{
		"data_id":       "data-1",
		"sampling_seed": float64(7),
		"split":         "dev",
		"label_column":  "expected",
		"row_filter":    "q != ''",
	}, backend.materializePayload)

	// Quiet mode prints the machine readable summary, contract ids are
	// deduplicated across gt_contracts and gt_contract_ids.
	assert.Contains(t, output, "data_id=data-1\n")
	assert.Contains(t, output, "scenario_id=scn-1\n")
	assert.Contains(t, output, "profile_id=gtp-1\n")
	assert.Contains(t, output, "gt_contract_count=2\n")
}

func TestDataPushGroundTruthAlreadyBound(t *testing.T) {
	backend := newPushBackend()
	backend.bindStatus = http.StatusConflict
	server := httptest.NewServer(backend.handler())
	defer server.Close()
	backend.serverURL = server.URL

	file := writeDataFile(t, "golden.csv", "q,expected\n")

	o := newPushOptions(t, server.URL)
	o.Usage = usageGroundTruth
	o.Scenario = "scn-1"
	o.Quiet = true
	require.NoError(t, o.Validate([]string{file}))

	captureStdout(t, func() {
		require.NoError(t, o.Run(context.Background(), []string{file}))
	})

	// An existing binding is not an error, materialization still runs.
	assert.Contains(t, backend.requests, "POST /api/scenarios/scn-1/ground-truth/materialize")
}

func TestDataPushGroundTruthMaterializeConflict(t *testing.T) {
	backend := newPushBackend()
	backend.materializeStatus = http.StatusConflict
	server := httptest.NewServer(backend.handler())
	defer server.Close()
	backend.serverURL = server.URL

	file := writeDataFile(t, "golden.csv", "q,expected\n")

	o := newPushOptions(t, server.URL)
	o.Usage = usageGroundTruth
	o.Scenario = "scn-1"
	o.Quiet = true
	require.NoError(t, o.Validate([]string{file}))

	var runErr error
	output := captureStdout(t, func() {
		runErr = o.Run(context.Background(), []string{file})
	})

	require.Error(t, runErr)
	assert.EqualError(t, runErr, "ground truth materialization failed")
	assert.Contains(t, output, "✗ Ground Truth materialization failed (409)")
	assert.Contains(t, output, "1) Wait for dataset processing: fluxloop data show data-1")
}

func TestDataPushGroundTruthSkipMaterialize(t *testing.T) {
	backend := newPushBackend()
	server := httptest.NewServer(backend.handler())
	defer server.Close()
	backend.serverURL = server.URL

	file := writeDataFile(t, "golden.csv", "q,expected\n")

	o := newPushOptions(t, server.URL)
	o.Usage = usageGroundTruth
	o.Scenario = "scn-1"
	o.MaterializeGT = false
	o.Quiet = true
	require.NoError(t, o.Validate([]string{file}))

	output := captureStdout(t, func() {
		require.NoError(t, o.Run(context.Background(), []string{file}))
	})

	assert.NotContains(t, backend.requests, "POST /api/scenarios/scn-1/ground-truth/materialize")
	assert.Contains(t, output, "profile_id=-\n")
	assert.Contains(t, output, "gt_contract_count=0\n")
}

func TestDataPushContextWorkflow(t *testing.T) {
	backend := newPushBackend()
	server := httptest.NewServer(backend.handler())
	defer server.Close()
	backend.serverURL = server.URL

	file := writeDataFile(t, "notes.csv", "a,b\n1,2\n")

	o := newPushOptions(t, server.URL)
	o.Scenario = "scn-1"
	o.Quiet = true
	require.NoError(t, o.Validate([]string{file}))

	output := captureStdout(t, func() {
		require.NoError(t, o.Run(context.Background(), []string{file}))
	})

	// Context uploads keep auto-detection and never materialize.
	assert.Equal(t, "DATASET", backend.createPayload["data_category"])
	assert.Equal(t, "auto", backend.createPayload["processing_profile"])
	assert.NotContains(t, backend.requests, "POST /api/scenarios/scn-1/ground-truth/materialize")

	// A plain context bind carries no binding_meta.
	assert.NotContains(t, backend.bindPayload, "binding_meta")

	assert.Contains(t, output, "data_id=data-1\n")
	assert.Contains(t, output, "scenario_id=scn-1\n")
	assert.NotContains(t, output, "profile_id=")
}

func TestDataPushContextScenarioMissing(t *testing.T) {
	backend := newPushBackend()
	backend.bindStatus = http.StatusNotFound
	server := httptest.NewServer(backend.handler())
	defer server.Close()
	backend.serverURL = server.URL

	file := writeDataFile(t, "notes.md", "# spec\n")

	o := newPushOptions(t, server.URL)
	o.Scenario = "scn-1"
	require.NoError(t, o.Validate([]string{file}))

	var runErr error
	output := captureStdout(t, func() {
		runErr = o.Run(context.Background(), []string{file})
	})

	// A vanished scenario is reported but does not fail the upload.
	require.NoError(t, runErr)
	assert.Contains(t, output, "⚠ Scenario not found: scn-1")
	assert.Equal(t, "KNOWLEDGE", backend.createPayload["data_category"])
	assert.Equal(t, "document", backend.createPayload["file_type"])
}

func TestDataPushMissingFile(t *testing.T) {
	o := DefaultDataPushOptions()
	o.ConfigFilePath = filepath.Join(t.TempDir(), "client.yaml")
	o.ApiUrl = "http://127.0.0.1:0"
	o.ProjectId = "proj-1"

	missing := filepath.Join(t.TempDir(), "missing.csv")
	require.NoError(t, o.Validate([]string{missing}))
	err := o.Run(context.Background(), []string{missing})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}
