package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/build"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/indexwriter"
	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/metrics"
)

// jsonlDoc is one line of the indexer CLI's input schema.
type jsonlDoc struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	URL       *string         `json:"url,omitempty"`
	Timestamp *string         `json:"timestamp,omitempty"`
	Meta      json.RawMessage `json:"meta,omitempty"`
}

func main() {
	if len(os.Args) < 2 || os.Args[1] != "build" {
		fmt.Fprintln(os.Stderr, "usage: indexer build --input <path> --output <dir> [--run-size <triples>] [--config <path>]")
		os.Exit(1)
	}

	fs := flag.NewFlagSet("build", flag.ExitOnError)
	input := fs.String("input", "", "path to a JSONL input file")
	output := fs.String("output", "", "path to the output index directory")
	configPath := fs.String("config", "", "optional path to a config file")
	runSize := fs.Int("run-size", 0, "number of (doc_id, term_id, tf) triples buffered before a pass-1 run spills to disk (0 keeps the config/default value)")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *runSize > 0 {
		cfg.Build.RunSize = *runSize
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if *input == "" || *output == "" {
		slog.Error("both --input and --output are required")
		os.Exit(1)
	}

	m := metrics.New()
	if err := runBuild(*input, *output, cfg, m); err != nil {
		slog.Error("build failed", "error", err)
		_ = os.RemoveAll(*output)
		os.Exit(1)
	}
}

func runBuild(inputPath, outputDir string, cfg *config.Config, m *metrics.Metrics) error {
	start := time.Now()

	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("opening input file: %w", err)
	}
	defer f.Close()

	b := build.New(cfg.Build.SpillDir, cfg.Build.RunSize)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var skippedMalformed, skippedDuplicate, admitted int
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var doc jsonlDoc
		if err := json.Unmarshal(line, &doc); err != nil || doc.ID == "" || doc.Title == "" {
			slog.Warn("skipping malformed input line", "line", lineNum, "error", err)
			m.DocsSkippedTotal.WithLabelValues("input_malformed").Inc()
			skippedMalformed++
			continue
		}

		hasURL := doc.URL != nil && *doc.URL != ""
		url := ""
		if hasURL {
			url = *doc.URL
		}

		hasTime := false
		var ts time.Time
		if doc.Timestamp != nil && *doc.Timestamp != "" {
			parsed, err := time.Parse(time.RFC3339, *doc.Timestamp)
			if err != nil {
				slog.Warn("skipping malformed input line", "line", lineNum, "error", err)
				m.DocsSkippedTotal.WithLabelValues("input_malformed").Inc()
				skippedMalformed++
				continue
			}
			ts = parsed
			hasTime = true
		}

		hasMeta := len(doc.Meta) > 0
		meta := ""
		if hasMeta {
			meta = string(doc.Meta)
		}

		_, wasAdmitted, err := b.AddDocument(doc.ID, doc.Title, url, hasURL, ts, hasTime, meta, hasMeta, doc.Body)
		if err != nil {
			return fmt.Errorf("admitting document %q: %w", doc.ID, err)
		}
		if !wasAdmitted {
			slog.Debug("skipping duplicate ext_id", "ext_id", doc.ID)
			m.DocsSkippedTotal.WithLabelValues("duplicate_ext_id").Inc()
			skippedDuplicate++
			continue
		}
		admitted++
		m.DocsIndexedTotal.Inc()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input file: %w", err)
	}

	result, err := b.Finish()
	if err != nil {
		return fmt.Errorf("finishing build: %w", err)
	}

	if err := indexwriter.Seal(outputDir, b.Dict, b.Docs, result.PostingsByTerm); err != nil {
		return fmt.Errorf("sealing index: %w", err)
	}

	elapsed := time.Since(start)
	m.IndexBuildDurationSeconds.Observe(elapsed.Seconds())
	m.IndexSizeDocs.Set(float64(b.Docs.NumDocs()))
	m.IndexSizeTerms.Set(float64(b.Dict.Size()))

	slog.Info("build complete",
		"admitted", admitted,
		"skipped_malformed", skippedMalformed,
		"skipped_duplicate", skippedDuplicate,
		"terms", b.Dict.Size(),
		"output", outputDir,
		"elapsed", elapsed,
	)
	return nil
}
