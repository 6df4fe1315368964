package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/api"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/query"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/logger"
)

// MsgQueryFailed is the envelope message of every failed query.
const MsgQueryFailed = "Error While Executing Query"

const (
	msgQueryOK = "Query executed successfully"

	maxBodyBytes = 1 << 20
)

type Service interface {
	Query(ctx context.Context, req query.Request) (*query.Response, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default().With("component", "query-handler"),
	}
}

// Query handles POST /query. Every failure is reported as 400 with the
// error text.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req query.Request
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid query body", "error", err)
		api.Fail(w, http.StatusBadRequest, MsgQueryFailed, fmt.Errorf("invalid request body: %w", err))
		return
	}

	resp, err := h.service.Query(ctx, req)
	if err != nil {
		log.Error("query failed", "document_id", req.DocumentID, "error", err)
		api.Fail(w, http.StatusBadRequest, MsgQueryFailed, err)
		return
	}
	api.OK(w, msgQueryOK, resp)
}
