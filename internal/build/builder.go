// Package build implements the two-pass postings builder and TF-IDF
// weight computation described by spec component 4.D. Pass 1 tokenizes
// admitted documents and spills (doc_id, term_id, tf) triples to disk in
// bounded-size sorted runs; Pass 2 k-way merges the runs, groups triples by
// TermId, and computes normalized TF-IDF weights once N and every df[t]
// are known.
package build

import (
	"bufio"
	"container/heap"
	"fmt"
	"math"
	"os"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/dictionary"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/indexio"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/postings"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/tokenizer"
)

// DefaultRunSize is the number of triples buffered in memory before a run
// is spilled to disk.
const DefaultRunSize = 200_000

type triple struct {
	docID  uint32
	termID uint32
	tf     uint32
}

// Builder accumulates documents across pass 1 and produces normalized
// postings lists on Finish.
type Builder struct {
	Docs *docstore.Store
	Dict *dictionary.Dictionary

	spillDir string
	runSize  int
	buf      []triple
	runPaths []string
}

// New creates a Builder that spills pass-1 runs under spillDir. A runSize
// of 0 uses DefaultRunSize.
func New(spillDir string, runSize int) *Builder {
	if runSize <= 0 {
		runSize = DefaultRunSize
	}
	return &Builder{
		Docs:     docstore.New(),
		Dict:     dictionary.New(),
		spillDir: spillDir,
		runSize:  runSize,
	}
}

// AddDocument admits one document, deduplicating by extID (first occurrence
// wins). It returns the assigned DocId and whether the document was newly
// admitted.
func (b *Builder) AddDocument(extID, title, url string, hasURL bool, ts time.Time, hasTime bool, meta string, hasMeta bool, body string) (uint32, bool, error) {
	if b.Docs.HasExtID(extID) {
		return 0, false, nil
	}

	terms := tokenizer.Tokenize(body)
	tf := make(map[string]uint32, len(terms))
	for _, t := range terms {
		tf[t]++
	}

	rawText := title + "\n" + body
	docID := b.Docs.Put(extID, title, url, hasURL, ts, hasTime, meta, hasMeta, rawText)

	for term, count := range tf {
		termID := b.Dict.Intern(term)
		b.Dict.BumpDF(termID)
		b.buf = append(b.buf, triple{docID: docID, termID: termID, tf: count})
	}
	if len(b.buf) >= b.runSize {
		if err := b.spill(); err != nil {
			return 0, false, err
		}
	}
	return docID, true, nil
}

func (b *Builder) spill() error {
	sort.Slice(b.buf, func(i, j int) bool {
		if b.buf[i].termID != b.buf[j].termID {
			return b.buf[i].termID < b.buf[j].termID
		}
		return b.buf[i].docID < b.buf[j].docID
	})

	f, err := os.CreateTemp(b.spillDir, "run-*.bin")
	if err != nil {
		return fmt.Errorf("build: creating spill run: %w", err)
	}
	defer f.Close()

	bw := indexio.BufferedWriter(f)
	if err := indexio.WriteUint32(bw, uint32(len(b.buf))); err != nil {
		return fmt.Errorf("build: writing run count: %w", err)
	}
	for _, t := range b.buf {
		if err := writeTriple(bw, t); err != nil {
			return fmt.Errorf("build: writing run triple: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("build: flushing run: %w", err)
	}
	b.runPaths = append(b.runPaths, f.Name())
	b.buf = b.buf[:0]
	return nil
}

func writeTriple(w *bufio.Writer, t triple) error {
	if err := indexio.WriteUint32(w, t.docID); err != nil {
		return err
	}
	if err := indexio.WriteUint32(w, t.termID); err != nil {
		return err
	}
	return indexio.WriteUint32(w, t.tf)
}

func readTriple(r *bufio.Reader) (triple, error) {
	docID, err := indexio.ReadUint32(r)
	if err != nil {
		return triple{}, err
	}
	termID, err := indexio.ReadUint32(r)
	if err != nil {
		return triple{}, err
	}
	tf, err := indexio.ReadUint32(r)
	if err != nil {
		return triple{}, err
	}
	return triple{docID: docID, termID: termID, tf: tf}, nil
}

// Result is the builder's pass-2 output: the normalized posting list for
// every TermId, indexed by TermId.
type Result struct {
	PostingsByTerm []postings.List
}

// Finish runs pass 2: spills the unspilled tail as a final run, merges every
// run into one sorted in-memory slice, groups triples by TermId, computes IDF-weighted postings, accumulates
// per-document squared sums, and normalizes every weight by its document's
// Euclidean norm. It removes the run files it merged.
func (b *Builder) Finish() (*Result, error) {
	if len(b.buf) > 0 {
		if err := b.spill(); err != nil {
			return nil, err
		}
	}
	defer func() {
		for _, p := range b.runPaths {
			os.Remove(p)
		}
	}()

	merged, err := mergeRuns(b.runPaths)
	if err != nil {
		return nil, err
	}

	n := b.Docs.NumDocs()
	postingsByTerm := make([]postings.List, b.Dict.Size())

	groups := groupByTerm(merged)
	workers := runtime.NumCPU()
	if workers > len(groups) {
		workers = len(groups)
	}
	if workers < 1 {
		workers = 1
	}
	chunks := splitGroups(groups, workers)

	partials := make([][]float64, len(chunks))
	var eg errgroup.Group
	for i, chunk := range chunks {
		i, chunk := i, chunk
		eg.Go(func() error {
			partial := make([]float64, n)
			for _, g := range chunk {
				df := b.Dict.DF(g.termID)
				if df == 0 {
					continue
				}
				idf := math.Log(float64(n) / float64(df))
				list := make(postings.List, 0, g.end-g.start)
				for _, t := range merged[g.start:g.end] {
					raw := 1 + math.Log(float64(t.tf))
					w := raw * idf
					partial[t.docID] += w * w
					list = append(list, postings.Posting{DocID: t.docID, Weight: float32(w)})
				}
				postingsByTerm[g.termID] = list
			}
			partials[i] = partial
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	docNormSq := make([]float64, n)
	for _, partial := range partials {
		for d, sq := range partial {
			docNormSq[d] += sq
		}
	}
	docNorm := make([]float64, n)
	for d := 0; d < n; d++ {
		if docNormSq[d] == 0 {
			docNorm[d] = 1.0
		} else {
			docNorm[d] = math.Sqrt(docNormSq[d])
		}
		b.Docs.SetNorm(uint32(d), float32(docNorm[d]))
	}

	var eg2 errgroup.Group
	for _, chunk := range chunks {
		chunk := chunk
		eg2.Go(func() error {
			for _, g := range chunk {
				list := postingsByTerm[g.termID]
				for i := range list {
					list[i].Weight = float32(float64(list[i].Weight) / docNorm[list[i].DocID])
				}
			}
			return nil
		})
	}
	if err := eg2.Wait(); err != nil {
		return nil, err
	}

	return &Result{PostingsByTerm: postingsByTerm}, nil
}

type termGroup struct {
	termID     uint32
	start, end int
}

// groupByTerm scans merged (sorted by termID then docID) and returns the
// [start, end) boundaries of each distinct TermId's run.
func groupByTerm(merged []triple) []termGroup {
	var groups []termGroup
	i := 0
	for i < len(merged) {
		j := i + 1
		for j < len(merged) && merged[j].termID == merged[i].termID {
			j++
		}
		groups = append(groups, termGroup{termID: merged[i].termID, start: i, end: j})
		i = j
	}
	return groups
}

// splitGroups divides groups into workers contiguous, roughly balanced
// chunks so each goroutine owns a disjoint slice of TermIds and their
// postings files never see concurrent writers.
func splitGroups(groups []termGroup, workers int) [][]termGroup {
	if workers <= 0 {
		workers = 1
	}
	chunks := make([][]termGroup, 0, workers)
	n := len(groups)
	base := n / workers
	rem := n % workers
	idx := 0
	for w := 0; w < workers && idx < n; w++ {
		size := base
		if w < rem {
			size++
		}
		if size == 0 {
			continue
		}
		chunks = append(chunks, groups[idx:idx+size])
		idx += size
	}
	return chunks
}

type runSource struct {
	f   *os.File
	br  *bufio.Reader
	rem uint32
	cur triple
}

func openRunSource(path string) (*runSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := indexio.BufferedReader(f)
	count, err := indexio.ReadUint32(br)
	if err != nil {
		f.Close()
		return nil, err
	}
	s := &runSource{f: f, br: br, rem: count}
	return s, nil
}

func (s *runSource) advance() (bool, error) {
	if s.rem == 0 {
		return false, nil
	}
	t, err := readTriple(s.br)
	if err != nil {
		return false, err
	}
	s.cur = t
	s.rem--
	return true, nil
}

// mergeRuns performs a k-way merge of every spilled, term-then-doc-sorted
// run into one fully sorted triple sequence.
func mergeRuns(paths []string) ([]triple, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	sources := make([]*runSource, 0, len(paths))
	defer func() {
		for _, s := range sources {
			s.f.Close()
		}
	}()
	for _, p := range paths {
		s, err := openRunSource(p)
		if err != nil {
			return nil, fmt.Errorf("build: opening run %s: %w", p, err)
		}
		sources = append(sources, s)
	}

	h := &mergeHeap{}
	for i, s := range sources {
		ok, err := s.advance()
		if err != nil {
			return nil, fmt.Errorf("build: reading run: %w", err)
		}
		if ok {
			heap.Push(h, heapItem{triple: s.cur, src: i})
		}
	}

	var merged []triple
	for h.Len() > 0 {
		item := heap.Pop(h).(heapItem)
		merged = append(merged, item.triple)
		s := sources[item.src]
		ok, err := s.advance()
		if err != nil {
			return nil, fmt.Errorf("build: reading run: %w", err)
		}
		if ok {
			heap.Push(h, heapItem{triple: s.cur, src: item.src})
		}
	}
	return merged, nil
}

type heapItem struct {
	triple triple
	src    int
}

type mergeHeap []heapItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].triple.termID != h[j].triple.termID {
		return h[i].triple.termID < h[j].triple.termID
	}
	return h[i].triple.docID < h[j].triple.docID
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)   { *h = append(*h, x.(heapItem)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
