package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/api"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/docqa/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/logger"
)

// MsgUploadFailed is the envelope message of every failed upload.
const MsgUploadFailed = "Error While Uploading File"

const (
	msgUploaded = "File Uploaded Successfuly"

	// multipartMemory is held in memory before parts spill to temp files.
	multipartMemory = 8 << 20
	// multipartOverhead allows for boundaries and part headers on top of the
	// file itself.
	multipartOverhead = 1 << 20

	defaultPageSize = 20
	maxPageSize     = 100
)

type Service interface {
	Ingest(ctx context.Context, up ingestion.Upload) (*ingestion.DocumentMetadata, error)
	Get(ctx context.Context, docID string) (*ingestion.DocumentMetadata, error)
	List(ctx context.Context, limit, offset int) ([]ingestion.DocumentMetadata, error)
	Delete(ctx context.Context, docID string) error
}

type Handler struct {
	service  Service
	maxBytes int64
	logger   *slog.Logger
}

func New(service Service, maxUploadBytes int64) *Handler {
	return &Handler{
		service:  service,
		maxBytes: maxUploadBytes,
		logger:   slog.Default().With("component", "ingestion-handler"),
	}
}

// Upload accepts a multipart form with the document in the "file" field.
// Every failure is reported as 400 with the error text.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	}
	up, err := h.readUpload(r)
	if err != nil {
		log.Warn("rejected upload", "error", err)
		api.Fail(w, http.StatusBadRequest, MsgUploadFailed, err)
		return
	}

	meta, err := h.service.Ingest(ctx, up)
	if err != nil {
		log.Error("upload failed",
			"file_name", up.FileName,
			"error", err,
			"validation", apperrors.IsValidation(err),
		)
		api.Fail(w, http.StatusBadRequest, MsgUploadFailed, err)
		return
	}
	api.OK(w, msgUploaded, meta)
}

func (h *Handler) readUpload(r *http.Request) (ingestion.Upload, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ingestion.Upload{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"file must be at most %d bytes", h.maxBytes)
		}
		return ingestion.Upload{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"invalid multipart body: %v", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return ingestion.Upload{}, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest,
			`multipart field "file" is required`)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return ingestion.Upload{}, fmt.Errorf("reading upload: %w", err)
	}
	return ingestion.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultPageSize, 1, maxPageSize)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "Error While Listing Documents", err)
		return
	}
	offset, err := intParam(r, "offset", 0, 0, 1<<31-1)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "Error While Listing Documents", err)
		return
	}
	docs, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.fail(w, r, "Error While Listing Documents", err)
		return
	}
	api.OK(w, "Documents fetched successfully", docs)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	meta, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "Error While Fetching Document", err)
		return
	}
	api.OK(w, "Document fetched successfully", meta)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, "Error While Deleting Document", err)
		return
	}
	api.OK(w, "Document deleted successfully", map[string]string{"document_id": id})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error(message, "error", err, "status_code", status)
	}
	api.Fail(w, status, message, err)
}

func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"%s must be an integer between %d and %d", name, lo, hi)
	}
	return n, nil
}
