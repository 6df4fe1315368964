package analytics

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/api"
)

// SnapshotLister reads persisted stats snapshots, newest first.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, limit int) ([]AggregatedStats, error)
}

var errInvalidLimit = errors.New("limit must be an integer between 1 and 100")

type Handler struct {
	aggregator *Aggregator
	snapshots  SnapshotLister
}

// NewHandler serves live stats; snapshots may be nil when nothing is
// persisted.
func NewHandler(aggregator *Aggregator, snapshots SnapshotLister) *Handler {
	return &Handler{aggregator: aggregator, snapshots: snapshots}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	api.OK(w, "Analytics fetched successfully", h.aggregator.Stats())
}

func (h *Handler) Snapshots(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		api.OK(w, "Analytics snapshots are not persisted", []AggregatedStats{})
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			api.Fail(w, http.StatusBadRequest, "Error While Fetching Analytics", errInvalidLimit)
			return
		}
		limit = n
	}
	snaps, err := h.snapshots.ListSnapshots(r.Context(), limit)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "Error While Fetching Analytics", err)
		return
	}
	api.OK(w, "Analytics snapshots fetched successfully", snaps)
}
