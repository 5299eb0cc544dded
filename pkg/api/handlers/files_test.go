package handlers

import (
	"bytes"
	"encoding/json"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/distfs/pkg/store"
)

func newTestStore(t *testing.T, maxEntries int) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(256*1024))
	require.NoError(t, f.Close())

	s, err := store.New(store.Config{DevicePath: path, Layout: store.Layout{MaxEntries: maxEntries}})
	require.NoError(t, err)
	return s
}

func filesRouter(s FileStore) http.Handler {
	h := NewFilesHandler(s)
	r := chi.NewRouter()
	r.Get("/files", h.List)
	r.Get("/files/{name}", h.Get)
	r.Put("/files/{name}", h.Put)
	r.Delete("/files/{name}", h.Delete)
	return r
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func wavBytes(n int) []byte {
	data := make([]byte, n)
	copy(data, "RIFF\x00\x00\x00\x00WAVEfmt ")
	for i := 16; i < n; i++ {
		data[i] = byte(i)
	}
	return data
}

func TestFilesPutGetDelete(t *testing.T) {
	h := filesRouter(newTestStore(t, 8))
	data := wavBytes(6180)

	rec := do(t, h, http.MethodPut, "/files/CantinaBand3.wav", data)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode(t, rec)
	assert.Equal(t, "ok", resp.Status)
	created := resp.Data.(map[string]interface{})
	assert.Equal(t, "CantinaBand3.wav", created["name"])
	assert.Equal(t, float64(4096), created["start_offset"])
	assert.Equal(t, float64(6180), created["size"])
	assert.Equal(t, "WAV", created["type"])

	rec = do(t, h, http.MethodGet, "/files/CantinaBand3.wav", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.Equal(t, "6180", rec.Header().Get("Content-Length"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "CantinaBand3.wav")
	assert.Equal(t, data, rec.Body.Bytes())

	rec = do(t, h, http.MethodGet, "/files", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec).Data.([]interface{})
	require.Len(t, list, 1)

	rec = do(t, h, http.MethodDelete, "/files/CantinaBand3.wav", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/files/CantinaBand3.wav", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "error", decode(t, rec).Status)
}

func TestFilesListEmpty(t *testing.T) {
	h := filesRouter(newTestStore(t, 8))

	rec := do(t, h, http.MethodGet, "/files", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(string(mustField(t, rec.Body.Bytes(), "data"))))
}

func mustField(t *testing.T, body []byte, key string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	return m[key]
}

func TestFilesEscapedName(t *testing.T) {
	s := newTestStore(t, 8)
	h := filesRouter(s)

	rec := do(t, h, http.MethodPut, "/files/music%2Fa.bin", []byte("hello"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	entries, err := s.List(t.Context())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "music/a.bin", entries[0].Name)

	rec = do(t, h, http.MethodGet, "/files/music%2Fa.bin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "hello", rec.Body.String())
}

func TestFilesContentDispositionQuoting(t *testing.T) {
	h := filesRouter(newTestStore(t, 8))

	for _, name := range []string{`say "hi".bin`, `a\b;c=d.bin`, "caf\u00e9.bin"} {
		t.Run(name, func(t *testing.T) {
			target := "/files/" + url.PathEscape(name)
			rec := do(t, h, http.MethodPut, target, []byte("hello"))
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

			rec = do(t, h, http.MethodGet, target, nil)
			require.Equal(t, http.StatusOK, rec.Code)

			disposition, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
			require.NoError(t, err)
			assert.Equal(t, "attachment", disposition)
			assert.Equal(t, name, params["filename"])
		})
	}
}

func TestFilesPutRequiresLength(t *testing.T) {
	h := filesRouter(newTestStore(t, 8))

	req := httptest.NewRequest(http.MethodPut, "/files/a.bin", strings.NewReader("abc"))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusLengthRequired, rec.Code)
}

func TestFilesTableFull(t *testing.T) {
	h := filesRouter(newTestStore(t, 1))

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPut, "/files/a", []byte("a")).Code)
	rec := do(t, h, http.MethodPut, "/files/b", []byte("b"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestFilesDeleteMissing(t *testing.T) {
	h := filesRouter(newTestStore(t, 8))
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/files/nope", nil).Code)
}

func TestWriteStoreError(t *testing.T) {
	tests := []struct {
		code store.ErrorCode
		want int
	}{
		{store.CodeNotFound, http.StatusNotFound},
		{store.CodeInvalidName, http.StatusBadRequest},
		{store.CodeSourceUnavailable, http.StatusBadRequest},
		{store.CodeTableFull, http.StatusConflict},
		{store.CodeNoSpace, http.StatusInsufficientStorage},
		{store.CodeDevice, http.StatusServiceUnavailable},
		{store.CodeWriteFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeStoreError(rec, &store.StoreError{Code: tt.code, Message: "boom"})
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, decode(t, rec).Error, "boom")
		})
	}
}
