package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/api"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/query"
)

type fakeAPI struct {
	mu           sync.Mutex
	uploadedName string
	uploadedType string
	queries      []query.Request
	deleted      []string
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("POST /documents/upload", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "Error While Uploading File", err)
			return
		}
		io.Copy(io.Discard, file)
		f.uploadedName = header.Filename
		f.uploadedType = header.Header.Get("Content-Type")
		api.OK(w, "File Uploaded Successfuly", ingestion.DocumentMetadata{
			DocumentID: "abc123def4", FileName: header.Filename, FileType: f.uploadedType,
			TotalChunks: 3, AdditionalInfo: map[string]any{"images": 1},
		})
	})
	mux.HandleFunc("POST /query", func(w http.ResponseWriter, r *http.Request) {
		var req query.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Fail(w, http.StatusBadRequest, "Error While Executing Query", err)
			return
		}
		f.mu.Lock()
		f.queries = append(f.queries, req)
		f.mu.Unlock()
		api.OK(w, "Query executed successfully", query.Response{
			Result: "Revenue grew 12%.",
			Snippets: []query.Snippet{{
				Content: "revenue grew 12 percent", DocumentID: "abc123def4", ChunkIndex: "2",
				Metadata: map[string]any{"page_no": "4"}, RelevanceScore: 0.91,
			}},
			TotalResults: 1,
		})
	})
	mux.HandleFunc("GET /documents", func(w http.ResponseWriter, r *http.Request) {
		api.OK(w, "Documents fetched successfully", []ingestion.DocumentMetadata{
			{DocumentID: "abc123def4", FileName: "report.pdf", TotalChunks: 3, UploadTimestamp: "2026-01-02T03:04:05Z"},
		})
	})
	mux.HandleFunc("DELETE /documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.deleted = append(f.deleted, r.PathValue("id"))
		api.OK(w, "Document deleted successfully", nil)
	})
	mux.HandleFunc("GET /documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		api.Fail(w, http.StatusNotFound, "Error While Fetching Document", io.EOF)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	uploadType, listLimit, listOffset = "", 20, 0
	queryDocumentID, queryTopK, queryJSON = "", 0, false
	loadQueries = nil

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestUploadInfersContentType(t *testing.T) {
	f := &fakeAPI{}
	srv := f.server(t)
	path := filepath.Join(t.TempDir(), "report.docx")
	require.NoError(t, os.WriteFile(path, []byte("PK"), 0o644))

	out, err := execute(t, "--url", srv.URL, "upload", path)
	require.NoError(t, err)
	assert.Equal(t, "report.docx", f.uploadedName)
	assert.Equal(t, contentTypes[".docx"], f.uploadedType)
	assert.Contains(t, out, "abc123def4")
	assert.Contains(t, out, "images: 1")
}

func TestUploadUnknownExtension(t *testing.T) {
	f := &fakeAPI{}
	srv := f.server(t)
	path := filepath.Join(t.TempDir(), "photo.heic")
	require.NoError(t, os.WriteFile(path, []byte{0}, 0o644))

	_, err := execute(t, "--url", srv.URL, "upload", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--type")
	assert.Empty(t, f.uploadedName)
}

func TestQueryCommand(t *testing.T) {
	f := &fakeAPI{}
	srv := f.server(t)

	out, err := execute(t, "--url", srv.URL, "query", "-d", "abc123def4", "-k", "3", "how", "did", "revenue", "grow?")
	require.NoError(t, err)
	require.Len(t, f.queries, 1)
	assert.Equal(t, query.Request{Text: "how did revenue grow?", DocumentID: "abc123def4", TopK: 3}, f.queries[0])
	assert.Contains(t, out, "Revenue grew 12%.")
	assert.Contains(t, out, "chunk 2, page 4")
	assert.Contains(t, out, "0.9100")
}

func TestQueryJSON(t *testing.T) {
	f := &fakeAPI{}
	srv := f.server(t)

	out, err := execute(t, "--url", srv.URL, "query", "--json", "revenue")
	require.NoError(t, err)
	var resp query.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.TotalResults)
}

func TestQueryRequiresArgs(t *testing.T) {
	_, err := execute(t, "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestDocumentsCommands(t *testing.T) {
	f := &fakeAPI{}
	srv := f.server(t)

	out, err := execute(t, "--url", srv.URL, "documents", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "report.pdf")
	assert.Contains(t, out, "Total: 1 documents")

	_, err = execute(t, "--url", srv.URL, "documents", "delete", "abc123def4")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc123def4"}, f.deleted)

	_, err = execute(t, "--url", srv.URL, "documents", "get", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestHealthCommand(t *testing.T) {
	srv := (&fakeAPI{}).server(t)
	out, err := execute(t, "--url", srv.URL, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "healthy")
}

func TestLoadtestCommand(t *testing.T) {
	f := &fakeAPI{}
	srv := f.server(t)

	out, err := execute(t, "--url", srv.URL, "loadtest", "-c", "2", "--duration", "200ms", "-q", "revenue")
	require.NoError(t, err)
	assert.Contains(t, out, "=== Results ===")
	assert.Contains(t, out, "200: ")
	assert.NotEmpty(t, f.queries)
}

func TestLatencyPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), latencyPercentile(sorted, 50))
	assert.Equal(t, time.Duration(10), latencyPercentile(sorted, 99))
	assert.Equal(t, time.Duration(1), latencyPercentile(sorted, 0))
	assert.Zero(t, latencyPercentile(nil, 50))
}
