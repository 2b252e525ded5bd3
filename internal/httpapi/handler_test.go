package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/build"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/indexreader"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/indexwriter"
	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// testMetrics is shared across tests: metrics.New() registers collectors
// with the global Prometheus registry, and registering the same
// collector twice in one process panics.
var testMetrics = metrics.New()

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("reading counter value: %v", err)
	}
	return m.GetCounter().GetValue()
}

func counterVecValue(t *testing.T, c *prometheus.CounterVec, label string) float64 {
	t.Helper()
	return counterValue(t, c.WithLabelValues(label))
}

func buildAndOpen(t *testing.T) *indexreader.Reader {
	t.Helper()
	b := build.New(t.TempDir(), 0)
	docs := []struct{ extID, title, url, body string }{
		{"a", "Rust search engine", "https://example.com/a", "Rust inverted index implementation"},
		{"b", "Go scheduler internals", "", "goroutines and channels in Go"},
	}
	for _, d := range docs {
		if _, admitted, err := b.AddDocument(d.extID, d.title, d.url, d.url != "", time.Time{}, false, "", false, d.body); err != nil {
			t.Fatalf("AddDocument(%q) error = %v", d.extID, err)
		} else if !admitted {
			t.Fatalf("AddDocument(%q) not admitted", d.extID)
		}
	}
	result, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	dir := t.TempDir()
	if err := indexwriter.Seal(dir, b.Dict, b.Docs, result.PostingsByTerm); err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	r, err := indexreader.Open(dir, indexreader.Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return r
}

func TestHealthReturnsOK(t *testing.T) {
	h := New(buildAndOpen(t), nil, nil, "")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Health(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("got %d %q, want 200 ok", w.Code, w.Body.String())
	}
}

func TestSearchMissingQueryReturns400(t *testing.T) {
	h := New(buildAndOpen(t), nil, nil, "")
	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	w := httptest.NewRecorder()
	h.Search(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", w.Code)
	}
}

func TestSearchReturnsResultsWithSnippetAndURL(t *testing.T) {
	h := New(buildAndOpen(t), nil, nil, "")
	req := httptest.NewRequest(http.MethodGet, "/search?q=rust&k=5", nil)
	w := httptest.NewRecorder()
	h.Search(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}
	var resp searchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.TotalHits != 1 || len(resp.Results) != 1 {
		t.Fatalf("resp = %+v, want 1 hit", resp)
	}
	if resp.Results[0].URL != "https://example.com/a" {
		t.Fatalf("URL = %q, want the doc's url", resp.Results[0].URL)
	}
	if resp.Results[0].Snippet == "" {
		t.Fatalf("expected a non-empty snippet")
	}
}

func TestSearchStopwordOnlyQueryReturnsZeroTiming(t *testing.T) {
	h := New(buildAndOpen(t), nil, nil, "")
	req := httptest.NewRequest(http.MethodGet, "/search?q=the+and+a", nil)
	w := httptest.NewRecorder()
	h.Search(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}
	var resp searchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.TotalHits != 0 || len(resp.Results) != 0 {
		t.Fatalf("resp = %+v, want zero hits for a stopword-only query", resp)
	}
	if resp.TookMs != 0 || resp.TookS != 0 {
		t.Fatalf("resp took_ms=%v took_s=%v, want zero timing for a stopword-only query", resp.TookMs, resp.TookS)
	}
}

func TestSearchRecordsMetrics(t *testing.T) {
	h := New(buildAndOpen(t), nil, testMetrics, "")

	queriesBefore := counterVecValue(t, testMetrics.SearchQueriesTotal, "hit")

	req := httptest.NewRequest(http.MethodGet, "/search?q=rust&k=5", nil)
	w := httptest.NewRecorder()
	h.Search(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}
	if got := counterVecValue(t, testMetrics.SearchQueriesTotal, "hit"); got != queriesBefore+1 {
		t.Fatalf("SearchQueriesTotal{result_type=hit} = %v, want %v", got, queriesBefore+1)
	}
}

func TestGetDocUnknownReturns404(t *testing.T) {
	h := New(buildAndOpen(t), nil, nil, "")
	req := httptest.NewRequest(http.MethodGet, "/doc/999", nil)
	req.SetPathValue("doc_id", "999")
	w := httptest.NewRecorder()
	h.GetDoc(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", w.Code)
	}
}

func TestGetDocKnownReturnsText(t *testing.T) {
	h := New(buildAndOpen(t), nil, nil, "")
	req := httptest.NewRequest(http.MethodGet, "/doc/0", nil)
	req.SetPathValue("doc_id", "0")
	w := httptest.NewRecorder()
	h.GetDoc(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}
	var resp docResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.ExtID != "a" || resp.Text == "" {
		t.Fatalf("resp = %+v, want ext_id=a with text", resp)
	}
}

func TestSearchOffsetPagesThroughTheRankedWindow(t *testing.T) {
	b := build.New(t.TempDir(), 0)
	docs := []struct{ extID, title, body string }{
		{"x", "first", "widget widget widget"},
		{"y", "second", "widget widget"},
		{"z", "third", "widget"},
		// A document without "widget" keeps df < N, so widget's idf is positive.
		{"w", "fourth", "gadget"},
	}
	for _, d := range docs {
		if _, admitted, err := b.AddDocument(d.extID, d.title, "", false, time.Time{}, false, "", false, d.body); err != nil || !admitted {
			t.Fatalf("AddDocument(%q) error = %v, admitted = %v", d.extID, err, admitted)
		}
	}
	result, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	dir := t.TempDir()
	if err := indexwriter.Seal(dir, b.Dict, b.Docs, result.PostingsByTerm); err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	reader, err := indexreader.Open(dir, indexreader.Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	h := New(reader, nil, nil, "")

	get := func(query string) searchResponse {
		req := httptest.NewRequest(http.MethodGet, "/search?"+query, nil)
		w := httptest.NewRecorder()
		h.Search(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("got %d, want 200 for %q", w.Code, query)
		}
		var resp searchResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		return resp
	}

	first := get("q=widget&k=1&offset=0")
	second := get("q=widget&k=1&offset=1")
	third := get("q=widget&k=1&offset=2")
	beyond := get("q=widget&k=1&offset=3")

	if first.TotalHits != 3 || second.TotalHits != 3 || third.TotalHits != 3 {
		t.Fatalf("expected total_hits=3 at every offset, got %d, %d, %d", first.TotalHits, second.TotalHits, third.TotalHits)
	}
	if len(first.Results) != 1 || len(second.Results) != 1 || len(third.Results) != 1 {
		t.Fatalf("expected exactly one result per page")
	}
	if first.Results[0].DocID == second.Results[0].DocID || second.Results[0].DocID == third.Results[0].DocID {
		t.Fatalf("expected distinct docs across consecutive offset pages")
	}
	if len(beyond.Results) != 0 {
		t.Fatalf("expected no results once offset exceeds the ranked window, got %+v", beyond.Results)
	}
}

func TestAdminRouteWithoutTokenRejected(t *testing.T) {
	h := New(buildAndOpen(t), nil, nil, "secret")
	router := NewRouter(h, middleware.DefaultCORSConfig(), 0, 0, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/cache/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", w.Code)
	}
}

func TestAdminRouteWithCorrectTokenSucceeds(t *testing.T) {
	h := New(buildAndOpen(t), nil, nil, "secret")
	router := NewRouter(h, middleware.DefaultCORSConfig(), 0, 0, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/cache/stats", nil)
	req.Header.Set("X-ADMIN-TOKEN", "secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}
}

func TestAdminRouteDisabledWhenNoTokenConfigured(t *testing.T) {
	h := New(buildAndOpen(t), nil, nil, "")
	router := NewRouter(h, middleware.DefaultCORSConfig(), 0, 0, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/cache/stats", nil)
	req.Header.Set("X-ADMIN-TOKEN", "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401 when admin token is unset", w.Code)
	}
}
