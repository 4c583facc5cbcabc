// Package httpadapter exposes the operator surface of the pipeline.
package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
	"github.com/kirillkom/bank-document-pipeline/internal/core/ports"
	"github.com/kirillkom/bank-document-pipeline/internal/observability/metrics"
)

type Router struct {
	intake  ports.DocumentIntake
	docs    ports.DocumentReader
	expiry  ports.ExpiryMonitor
	reviews ports.ReviewService
	metrics *metrics.HTTPServerMetrics
	limiter *rate.Limiter
}

type Options struct {
	Metrics            *metrics.HTTPServerMetrics
	RateLimitPerSecond float64
	RateLimitBurst     int
}

func NewRouter(
	intake ports.DocumentIntake,
	docs ports.DocumentReader,
	expiry ports.ExpiryMonitor,
	reviews ports.ReviewService,
	opts Options,
) *Router {
	var limiter *rate.Limiter
	if opts.RateLimitPerSecond > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = int(opts.RateLimitPerSecond)
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitPerSecond), burst)
	}
	return &Router{
		intake:  intake,
		docs:    docs,
		expiry:  expiry,
		reviews: reviews,
		metrics: opts.Metrics,
		limiter: limiter,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.documentsSubtree)
	mux.HandleFunc("/v1/client/send-information-request", rt.sendInformationRequest)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = rateLimitMiddleware(rt.limiter, handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// documentsSubtree dispatches everything under /v1/documents/: the fixed
// operator endpoints first, then {id} and {id}/reprocess.
func (rt *Router) documentsSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")

	switch {
	case rest == "expiry-monitor":
		rt.runExpirySweep(w, r)
	case rest == "expiry-stats":
		rt.expiryStats(w, r)
	case rest == "pending-review":
		rt.pendingReview(w, r)
	case rest == "review-stats":
		rt.reviewStats(w, r)
	case strings.HasPrefix(rest, "review/"):
		rt.reviewItem(w, r, strings.TrimPrefix(rest, "review/"))
	case strings.HasSuffix(rest, "/reprocess"):
		rt.reprocessDocument(w, r, strings.TrimSuffix(rest, "/reprocess"))
	default:
		rt.getDocumentByID(w, r, rest)
	}
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "multipart field 'file' is required")
		return
	}
	defer file.Close()

	clientID := strings.TrimSpace(r.FormValue("client_id"))
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "form field 'client_id' is required")
		return
	}

	doc, err := rt.intake.Upload(
		r.Context(),
		clientID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		rt.recordUpload("rejected")
		writeDomainError(w, err)
		return
	}

	rt.recordUpload("accepted")
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "document id is required")
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) reprocessDocument(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "document id is required")
		return
	}

	if err := rt.intake.Reprocess(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"document_id": id, "status": "reprocessing"})
}

func (rt *Router) runExpirySweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	summary, err := rt.expiry.Sweep(r.Context(), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (rt *Router) expiryStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	now := time.Now()
	if r.URL.Query().Get("format") == "xlsx" {
		expiring, err := rt.expiry.Expiring(r.Context(), now)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeExpiryWorkbook(w, expiring, now)
		return
	}

	stats, err := rt.expiry.Stats(r.Context(), now)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) sendInformationRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req struct {
		ClientID string `json:"client_id"`
		Details  string `json:"details"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid json")
		return
	}
	if strings.TrimSpace(req.ClientID) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "client_id is required")
		return
	}

	sent, err := rt.expiry.SendInformationRequest(r.Context(), req.ClientID, req.Details)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"client_id": req.ClientID, "sent": sent})
}

func (rt *Router) pendingReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	items, err := rt.reviews.Pending(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if items == nil {
		items = []domain.ReviewItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (rt *Router) reviewItem(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "document id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, err := rt.reviews.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodPost:
		var req struct {
			Decision string `json:"decision"`
			Note     string `json:"note"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "invalid json")
			return
		}

		err := rt.reviews.Submit(r.Context(), id, domain.ReviewDecision(req.Decision), req.Note)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"document_id": id, "decision": req.Decision})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (rt *Router) reviewStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	stats, err := rt.reviews.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) recordUpload(outcome string) {
	if rt.metrics != nil {
		rt.metrics.RecordUpload("api", outcome)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, reason, message string) {
	writeJSON(w, status, map[string]string{"error": message, "reason": reason})
}

func writeDomainError(w http.ResponseWriter, err error) {
	status, reason := mapError(err)
	writeError(w, status, reason, err.Error())
}
