// Package query implements the query engine described by spec component
// 4.G: tokenize the query, fetch postings per term, accumulate an
// IDF-weighted score per document, and select the top k by a bounded
// min-heap. Scoring accumulates in float64 and iterates postings in
// ascending doc_id within each term, terms in tokenized-query order, so
// search results are byte-identical across runs regardless of machine or
// goroutine scheduling.
package query

import (
	"container/heap"
	"math"

	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/indexreader"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/tokenizer"
)

// MinK and MaxK bound the number of results a caller may request.
const (
	MinK = 1
	MaxK = 100
)

// Hit is one ranked result.
type Hit struct {
	DocID uint32
	Score float64
}

// Result is the outcome of a Search call.
type Result struct {
	TotalHits int
	Hits      []Hit
}

// ClampK enforces spec.md §6's k bounds: k=0 becomes 1, k>100 becomes 100.
func ClampK(k int) int {
	if k < MinK {
		return MinK
	}
	if k > MaxK {
		return MaxK
	}
	return k
}

// Search scores every document against q and returns the top k by score
// descending, doc_id ascending on ties. Unknown query terms are skipped.
// TotalHits counts every document with a strictly positive score, not just
// the returned window.
func Search(r *indexreader.Reader, q string, k int) (Result, error) {
	k = ClampK(k)
	terms := tokenizer.Tokenize(q)

	scores := make(map[uint32]float64)
	order := make([]uint32, 0, len(scores))

	n := float64(r.NumDocs())
	for _, term := range terms {
		termID, ok := r.Dictionary().Lookup(term)
		if !ok {
			continue
		}
		df := r.Dictionary().DF(termID)
		if df == 0 || n == 0 {
			continue
		}
		idf := math.Log(n / float64(df))
		if idf == 0 {
			continue
		}
		list, err := r.Postings(termID)
		if err != nil {
			return Result{}, err
		}
		for _, p := range list {
			if _, seen := scores[p.DocID]; !seen {
				order = append(order, p.DocID)
			}
			scores[p.DocID] += float64(p.Weight) * idf
		}
	}

	totalHits := 0
	h := &topKHeap{}
	for _, docID := range order {
		score := scores[docID]
		if score <= 0 {
			continue
		}
		totalHits++
		if h.Len() < k {
			heap.Push(h, Hit{DocID: docID, Score: score})
			continue
		}
		if less(h.items[0], Hit{DocID: docID, Score: score}) {
			heap.Pop(h)
			heap.Push(h, Hit{DocID: docID, Score: score})
		}
	}

	hits := make([]Hit, h.Len())
	for i := len(hits) - 1; i >= 0; i-- {
		hits[i] = heap.Pop(h).(Hit)
	}
	return Result{TotalHits: totalHits, Hits: hits}, nil
}

// less reports whether a should be popped before b from the min-heap: a is
// "smaller" (evicted first) when its score is lower, or on a tie, when its
// doc_id is larger — so among equal scores the heap keeps the
// smallest-doc-id entries, matching the ascending-doc_id tie-break.
func less(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.DocID > b.DocID
}

type topKHeap struct {
	items []Hit
}

func (h *topKHeap) Len() int            { return len(h.items) }
func (h *topKHeap) Less(i, j int) bool  { return less(h.items[i], h.items[j]) }
func (h *topKHeap) Swap(i, j int)       { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *topKHeap) Push(x any)          { h.items = append(h.items, x.(Hit)) }
func (h *topKHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
