package handlers

import (
	"bufio"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marmos91/distfs/internal/audio"
	"github.com/marmos91/distfs/internal/logger"
	"github.com/marmos91/distfs/pkg/store"
)

// FileStore is the part of *store.Store the HTTP front-end drives.
type FileStore interface {
	DevicePath() string
	List(ctx context.Context) ([]store.Entry, error)
	Header(ctx context.Context, name string) (store.BlobHeader, error)
	Download(ctx context.Context, name string, w io.Writer, progress store.ProgressFunc) (store.Entry, error)
	Put(ctx context.Context, src store.Source) (store.Entry, error)
	Delete(ctx context.Context, name string) error
}

// FileResponse is one table entry as served by the API.
type FileResponse struct {
	Name        string    `json:"name"`
	Index       uint32    `json:"index"`
	StartOffset uint64    `json:"start_offset"`
	Size        uint64    `json:"size"`
	Type        string    `json:"type,omitempty"`
	Modified    time.Time `json:"modified,omitzero"`
	Accessed    time.Time `json:"accessed,omitzero"`
	Created     time.Time `json:"created,omitzero"`
	Uploaded    time.Time `json:"uploaded,omitzero"`
}

func entryToResponse(e store.Entry) FileResponse {
	return FileResponse{
		Name:        e.Name,
		Index:       e.Index,
		StartOffset: e.StartOffset,
		Size:        e.Size,
		Modified:    e.Modified,
		Accessed:    e.Accessed,
		Created:     e.Created,
		Uploaded:    e.Uploaded,
	}
}

// FilesHandler serves the files stored on the device.
type FilesHandler struct {
	store FileStore
}

// NewFilesHandler creates a files handler over s.
func NewFilesHandler(s FileStore) *FilesHandler {
	return &FilesHandler{store: s}
}

// fileName extracts the {name} URL parameter, which may be percent-encoded
// to carry slashes.
func fileName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

// List handles GET /api/v1/files.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	files := make([]FileResponse, 0, len(entries))
	for _, e := range entries {
		files = append(files, entryToResponse(e))
	}
	writeJSON(w, http.StatusOK, okResponse(files))
}

// Get handles GET /api/v1/files/{name} by streaming the payload.
func (h *FilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := fileName(r)

	hdr, err := h.store.Header(r.Context(), name)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", hdr.Type.MIME())
	w.Header().Set("Content-Length", strconv.FormatUint(hdr.Size, 10))
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": hdr.Name})
	if disposition == "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", disposition)
	w.WriteHeader(http.StatusOK)

	// Headers are gone by now; a failure can only cut the body short.
	if _, err := h.store.Download(r.Context(), name, w, nil); err != nil {
		logger.WarnCtx(r.Context(), "Download aborted", logger.Filename(name), logger.Err(err))
	}
}

// Put handles PUT /api/v1/files/{name}. The body length must be declared.
func (h *FilesHandler) Put(w http.ResponseWriter, r *http.Request) {
	name := fileName(r)
	if r.ContentLength < 0 {
		LengthRequired(w, "Content-Length is required")
		return
	}

	body := bufio.NewReaderSize(r.Body, audio.HeaderLen)
	head, _ := body.Peek(audio.HeaderLen)

	now := time.Now()
	entry, err := h.store.Put(r.Context(), store.Source{
		Name:     name,
		Reader:   body,
		Size:     uint64(r.ContentLength),
		Type:     audio.Sniff(head),
		Modified: now,
		Accessed: now,
		Created:  now,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	resp := entryToResponse(entry)
	resp.Type = audio.Sniff(head).String()
	writeJSON(w, http.StatusCreated, okResponse(resp))
}

// Delete handles DELETE /api/v1/files/{name}.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), fileName(r)); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeStoreError maps store error codes to HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch store.CodeOf(err) {
	case store.CodeNotFound:
		NotFound(w, err.Error())
	case store.CodeInvalidName:
		BadRequest(w, err.Error())
	case store.CodeSourceUnavailable:
		BadRequest(w, err.Error())
	case store.CodeTableFull:
		Conflict(w, err.Error())
	case store.CodeNoSpace:
		InsufficientStorage(w, err.Error())
	case store.CodeDevice:
		ServiceUnavailable(w, err.Error())
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			ServiceUnavailable(w, err.Error())
			return
		}
		InternalServerError(w, err.Error())
	}
}
