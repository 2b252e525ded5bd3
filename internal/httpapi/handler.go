// Package httpapi implements the HTTP surface described by spec section
// 6: /health, /search, /doc/{doc_id}, and a minimal token-gated admin
// surface over the optional query cache.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/indexreader"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/query"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/snippet"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/metrics"
)

const defaultK = 10

// Handler serves the search API on top of a sealed index. The query cache
// is optional; a nil *cache.QueryCache makes every search compute fresh. The
// metrics collector is optional; a nil *metrics.Metrics disables search
// metric recording.
type Handler struct {
	reader     *indexreader.Reader
	cache      *cache.QueryCache
	metrics    *metrics.Metrics
	adminToken string
	logger     *slog.Logger
}

// New builds a Handler. adminToken == "" disables the admin endpoints
// entirely (every admin request gets 401, matching an unset ADMIN_TOKEN).
func New(reader *indexreader.Reader, queryCache *cache.QueryCache, m *metrics.Metrics, adminToken string) *Handler {
	return &Handler{
		reader:     reader,
		cache:      queryCache,
		metrics:    m,
		adminToken: adminToken,
		logger:     slog.Default().With("component", "httpapi"),
	}
}

// Health answers GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type searchHit struct {
	DocID   uint32  `json:"doc_id"`
	Score   float64 `json:"score"`
	Title   string  `json:"title"`
	URL     string  `json:"url,omitempty"`
	Snippet string  `json:"snippet"`
}

type searchResponse struct {
	Query     string      `json:"query"`
	TookMs    int64       `json:"took_ms"`
	TookS     float64     `json:"took_s"`
	TotalHits int         `json:"total_hits"`
	Results   []searchHit `json:"results"`
}

// Search answers GET /search?q=<string>&k=<u32>.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logger.FromContext(r.Context())

	q := r.URL.Query().Get("q")
	if q == "" {
		h.writeError(w, errors.New(errors.ErrQueryMalformed, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}

	k := defaultK
	if kStr := r.URL.Query().Get("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil {
			h.writeError(w, errors.New(errors.ErrQueryMalformed, http.StatusBadRequest, "k must be an integer"))
			return
		}
		k = parsed
	}
	k = query.ClampK(k)

	queryTerms := tokenizer.Tokenize(q)
	if len(queryTerms) == 0 {
		log.Info("search completed", "query", q, "total_hits", 0, "returned", 0, "took_ms", 0)
		if h.metrics != nil {
			h.metrics.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
			h.metrics.SearchResultsCount.Observe(0)
		}
		h.writeJSON(w, http.StatusOK, searchResponse{
			Query:     q,
			TookMs:    0,
			TookS:     0,
			TotalHits: 0,
			Results:   []searchHit{},
		})
		return
	}

	offset := 0
	if offStr := r.URL.Query().Get("offset"); offStr != "" {
		parsed, err := strconv.Atoi(offStr)
		if err != nil || parsed < 0 {
			h.writeError(w, errors.New(errors.ErrQueryMalformed, http.StatusBadRequest, "offset must be a non-negative integer"))
			return
		}
		offset = parsed
	}

	// The ranked window handed to the scorer is capped at MaxK regardless of
	// offset: pagination only slices the already-bounded top-k window, it
	// never reaches deeper into the corpus.
	window := offset + k
	if window > query.MaxK {
		window = query.MaxK
	}

	compute := func() (query.Result, error) {
		return query.Search(h.reader, q, window)
	}

	var result query.Result
	var err error
	cacheHit := false
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(r.Context(), q, window, compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		log.Error("search failed", "query", q, "error", err)
		if h.metrics != nil {
			h.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		}
		h.writeError(w, errors.Newf(errors.ErrInternal, http.StatusInternalServerError, "search failed"))
		return
	}

	page := result.Hits
	if offset >= len(page) {
		page = nil
	} else {
		end := offset + k
		if end > len(page) {
			end = len(page)
		}
		page = page[offset:end]
	}

	results := make([]searchHit, len(page))
	for i, hit := range page {
		meta, _ := h.reader.DocMeta(hit.DocID)
		text, err := h.reader.Text(hit.DocID)
		snip := ""
		if err == nil {
			snip = snippet.Extract(text, queryTerms)
		}
		results[i] = searchHit{
			DocID:   hit.DocID,
			Score:   hit.Score,
			Title:   meta.Title,
			Snippet: snip,
		}
		if meta.HasURL {
			results[i].URL = meta.URL
		}
	}

	elapsed := time.Since(start)
	log.Info("search completed", "query", q, "total_hits", result.TotalHits, "returned", len(results), "cache_hit", cacheHit, "took_ms", elapsed.Milliseconds())

	if h.metrics != nil {
		cacheStatus := "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
		h.metrics.SearchResultsCount.Observe(float64(len(results)))
		resultType := "hit"
		if result.TotalHits == 0 {
			resultType = "zero_result"
		}
		h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}

	h.writeJSON(w, http.StatusOK, searchResponse{
		Query:     q,
		TookMs:    elapsed.Milliseconds(),
		TookS:     elapsed.Seconds(),
		TotalHits: result.TotalHits,
		Results:   results,
	})
}

type docResponse struct {
	DocID     uint32 `json:"doc_id"`
	ExtID     string `json:"ext_id"`
	Title     string `json:"title"`
	URL       string `json:"url,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Meta      string `json:"meta,omitempty"`
	Text      string `json:"text"`
}

// GetDoc answers GET /doc/{doc_id}.
func (h *Handler) GetDoc(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("doc_id")
	docID64, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		h.writeError(w, errors.New(errors.ErrQueryMalformed, http.StatusBadRequest, "doc_id must be a non-negative integer"))
		return
	}
	docID := uint32(docID64)

	meta, ok := h.reader.DocMeta(docID)
	if !ok {
		h.writeError(w, errors.New(errors.ErrDocumentNotFound, http.StatusNotFound, "document not found"))
		return
	}
	text, err := h.reader.Text(docID)
	if err != nil {
		h.writeError(w, errors.Newf(errors.ErrIndexIOError, http.StatusInternalServerError, "reading document text: %v", err))
		return
	}

	resp := docResponse{
		DocID: meta.DocID,
		ExtID: meta.ExtID,
		Title: meta.Title,
		Text:  text,
	}
	if meta.HasURL {
		resp.URL = meta.URL
	}
	if meta.HasTime {
		resp.Timestamp = meta.Timestamp.UTC().Format(time.RFC3339)
	}
	if meta.HasMeta {
		resp.Meta = meta.Meta
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// CacheStats answers GET /admin/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	h.writeJSON(w, http.StatusOK, map[string]int64{"hits": hits, "misses": misses})
}

// CacheInvalidate answers POST /admin/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	n, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.writeError(w, errors.Newf(errors.ErrInternal, http.StatusInternalServerError, "cache invalidation failed: %v", err))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"invalidated": n})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatusCode(err)
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
