// Package router wires up the HTTP routes and applies the middleware chain
// (RequestID → CORS → RateLimit → Metrics → Timeout).
package router

import (
	"errors"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/api"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/docqa/internal/ingestion/handler"
	queryhandler "github.com/Adithya-Monish-Kumar-K/docqa/internal/query/handler"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/docqa/pkg/middleware"
)

type Handlers struct {
	Documents *ingesthandler.Handler
	Query     *queryhandler.Handler
	Analytics *analytics.Handler
	Health    *health.Checker
}

type Options struct {
	Metrics        *metrics.Metrics
	RequestTimeout time.Duration
	CORS           pkgmw.CORSConfig
	// RateLimiter is optional.
	RateLimiter *pkgmw.RateLimiter
}

var errRequestTimeout = errors.New("request timed out")

// Upload and query failures are always reported as 400 with the endpoint's
// failure message, timeouts included.
var timeoutMessages = map[string]string{
	"/documents/upload": ingesthandler.MsgUploadFailed,
	"/query":            queryhandler.MsgQueryFailed,
}

// New builds the service handler.
//
// Route table:
//
//	POST   /documents/upload        → ingest a document
//	GET    /documents               → list documents
//	GET    /documents/{id}          → document metadata
//	DELETE /documents/{id}          → delete a document and its chunks
//	POST   /query                   → answer a question
//	GET    /analytics               → live stats
//	GET    /analytics/snapshots     → persisted stats
//	GET    /health                  → constant liveness
//	GET    /health/live             → liveness probe
//	GET    /health/ready            → dependency readiness
func New(h Handlers, opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", health.HealthHandler())
	if h.Health != nil {
		mux.HandleFunc("GET /health/live", h.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", h.Health.ReadyHandler())
	}

	mux.HandleFunc("POST /documents/upload", h.Documents.Upload)
	mux.HandleFunc("GET /documents", h.Documents.List)
	mux.HandleFunc("GET /documents/{id}", h.Documents.Get)
	mux.HandleFunc("DELETE /documents/{id}", h.Documents.Delete)

	mux.HandleFunc("POST /query", h.Query.Query)

	if h.Analytics != nil {
		mux.HandleFunc("GET /analytics", h.Analytics.Stats)
		mux.HandleFunc("GET /analytics/snapshots", h.Analytics.Snapshots)
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.NewNop()
	}

	// Applied inside-out: request → RequestID → CORS → RateLimit → Metrics → Timeout → mux
	var chain http.Handler = mux
	if opts.RequestTimeout > 0 {
		chain = pkgmw.Timeout(opts.RequestTimeout, http.HandlerFunc(timedOut))(chain)
	}
	chain = pkgmw.Metrics(m)(chain)
	if opts.RateLimiter != nil {
		chain = pkgmw.RateLimit(opts.RateLimiter)(chain)
	}
	chain = pkgmw.CORS(opts.CORS)(chain)
	chain = pkgmw.RequestID(chain)
	return chain
}

func timedOut(w http.ResponseWriter, r *http.Request) {
	if msg, ok := timeoutMessages[r.URL.Path]; ok {
		api.Fail(w, http.StatusBadRequest, msg, errRequestTimeout)
		return
	}
	api.Fail(w, http.StatusServiceUnavailable, "Request Timed Out", errRequestTimeout)
}
