package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/indexreader"
	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/metrics"
)

func writeJSONL(t *testing.T, lines ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "input.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing input file: %v", err)
	}
	return path
}

func testConfig() *config.Config {
	cfg, _ := config.Load("")
	return cfg
}

// testMetrics is shared across tests: metrics.New() registers collectors
// with the global Prometheus registry, and registering the same
// collector twice in one process panics.
var testMetrics = metrics.New()

func TestRunBuildProducesSealedIndex(t *testing.T) {
	input := writeJSONL(t,
		`{"id":"a","title":"Rust","body":"Rust search engine"}`,
		`{"id":"b","title":"Go","body":"Go scheduler"}`,
	)
	output := filepath.Join(t.TempDir(), "out")

	if err := runBuild(input, output, testConfig(), testMetrics); err != nil {
		t.Fatalf("runBuild() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(output, "meta.json")); err != nil {
		t.Fatalf("expected meta.json to exist: %v", err)
	}
}

func TestRunBuildSkipsMalformedAndDuplicateLines(t *testing.T) {
	input := writeJSONL(t,
		`{"id":"a","title":"Rust","body":"Rust search engine"}`,
		`not json at all`,
		`{"id":"a","title":"Rust again","body":"duplicate ext id"}`,
		`{"title":"missing id","body":"no id field"}`,
	)
	output := filepath.Join(t.TempDir(), "out")

	if err := runBuild(input, output, testConfig(), testMetrics); err != nil {
		t.Fatalf("runBuild() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(output, "meta.json")); err != nil {
		t.Fatalf("expected meta.json to exist despite skipped lines: %v", err)
	}
}

func TestRunBuildAdmitsEmptyBodyDocument(t *testing.T) {
	input := writeJSONL(t,
		`{"id":"a","title":"Rust","body":"Rust search engine"}`,
		`{"id":"b","title":"Empty body doc","body":""}`,
	)
	output := filepath.Join(t.TempDir(), "out")

	if err := runBuild(input, output, testConfig(), testMetrics); err != nil {
		t.Fatalf("runBuild() error = %v", err)
	}

	reader, err := indexreader.Open(output, indexreader.Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if reader.NumDocs() != 2 {
		t.Fatalf("NumDocs() = %d, want 2 (empty-body doc must be admitted)", reader.NumDocs())
	}

	var emptyDocID uint32
	found := false
	for id := uint32(0); id < reader.NumDocs(); id++ {
		meta, ok := reader.DocMeta(id)
		if ok && meta.ExtID == "b" {
			emptyDocID = id
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected doc ext_id=b to be retrievable")
	}
	text, err := reader.Text(emptyDocID)
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if text != "Empty body doc\n" {
		t.Fatalf("Text() = %q, want the title followed by the empty body", text)
	}
}

func TestRunBuildMissingInputFileIsFatal(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out")
	if err := runBuild("/nonexistent/input.jsonl", output, testConfig(), testMetrics); err == nil {
		t.Fatalf("expected an error for a missing input file")
	}
}
