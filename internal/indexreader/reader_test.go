package indexreader

import (
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/dictionary"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/indexwriter"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/postings"
	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/metrics"
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

func sealTestIndex(t *testing.T) string {
	t.Helper()
	dict := dictionary.New()
	rustID := dict.Intern("rust")
	dict.BumpDF(rustID)
	goID := dict.Intern("go")
	dict.BumpDF(goID)

	docs := docstore.New()
	docs.Put("ext-a", "Rust Guide", "", false, time.Time{}, false, "", false, "Rust Guide\nrust programming")
	docs.Put("ext-b", "Go Guide", "", false, time.Time{}, false, "", false, "Go Guide\ngo programming")
	docs.SetNorm(0, 1.0)
	docs.SetNorm(1, 1.0)

	postingsByTerm := make([]postings.List, dict.Size())
	postingsByTerm[rustID] = postings.List{{DocID: 0, Weight: 1.0}}
	postingsByTerm[goID] = postings.List{{DocID: 1, Weight: 1.0}}

	dir := t.TempDir()
	if err := indexwriter.Seal(dir, dict, docs, postingsByTerm); err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	return dir
}

func TestOpenLoadsDictionaryAndDocs(t *testing.T) {
	dir := sealTestIndex(t)
	r, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if r.NumDocs() != 2 {
		t.Fatalf("NumDocs() = %d, want 2", r.NumDocs())
	}
	rustID, ok := r.Dictionary().Lookup("rust")
	if !ok {
		t.Fatal("dictionary missing 'rust'")
	}
	meta, ok := r.DocMeta(0)
	if !ok || meta.ExtID != "ext-a" {
		t.Fatalf("DocMeta(0) = %+v, %v", meta, ok)
	}
	_ = rustID
}

func TestPostingsLazyLoadAndCache(t *testing.T) {
	dir := sealTestIndex(t)
	r, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	rustID, _ := r.Dictionary().Lookup("rust")
	list, err := r.Postings(rustID)
	if err != nil {
		t.Fatalf("Postings() error = %v", err)
	}
	if len(list) != 1 || list[0].DocID != 0 {
		t.Fatalf("Postings(rust) = %+v, unexpected", list)
	}

	list2, err := r.Postings(rustID)
	if err != nil {
		t.Fatalf("Postings() second call error = %v", err)
	}
	if len(list2) != 1 || list2[0].DocID != 0 {
		t.Fatalf("cached Postings(rust) = %+v, unexpected", list2)
	}
}

func TestPostingsRecordsCacheHitAndMissMetrics(t *testing.T) {
	dir := sealTestIndex(t)
	r, err := Open(dir, Options{Metrics: testMetrics})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	rustID, _ := r.Dictionary().Lookup("rust")

	missesBefore := counterValue(t, testMetrics.PostingsCacheMissesTotal)
	hitsBefore := counterValue(t, testMetrics.PostingsCacheHitsTotal)

	if _, err := r.Postings(rustID); err != nil {
		t.Fatalf("Postings() error = %v", err)
	}
	if got := counterValue(t, testMetrics.PostingsCacheMissesTotal); got != missesBefore+1 {
		t.Fatalf("PostingsCacheMissesTotal = %v, want %v", got, missesBefore+1)
	}

	if _, err := r.Postings(rustID); err != nil {
		t.Fatalf("Postings() second call error = %v", err)
	}
	if got := counterValue(t, testMetrics.PostingsCacheHitsTotal); got != hitsBefore+1 {
		t.Fatalf("PostingsCacheHitsTotal = %v, want %v", got, hitsBefore+1)
	}
}

func TestTextLazyLoad(t *testing.T) {
	dir := sealTestIndex(t)
	r, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	text, err := r.Text(0)
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if text != "Rust Guide\nrust programming" {
		t.Fatalf("Text(0) = %q, unexpected", text)
	}
}

func TestOpenRejectsMissingMeta(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(dir, Options{}); err == nil {
		t.Fatal("Open() on directory without meta.json succeeded, want error")
	}
}
