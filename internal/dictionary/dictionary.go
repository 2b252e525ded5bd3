// Package dictionary implements the term-to-TermId mapping and document
// frequency table described by spec component 4.C. At build time it
// interns terms as they're first seen; at query time it's a read-only
// lookup table loaded wholesale into memory.
package dictionary

import (
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/indexio"
)

// Dictionary maps terms to dense TermIds assigned in insertion order, and
// tracks the document frequency of each term.
type Dictionary struct {
	termToID map[string]uint32
	terms    []string
	df       []uint32
}

// New creates an empty Dictionary, ready for interning.
func New() *Dictionary {
	return &Dictionary{
		termToID: make(map[string]uint32),
	}
}

// Intern returns the TermId for term, assigning a new one on first sight.
func (d *Dictionary) Intern(term string) uint32 {
	if id, ok := d.termToID[term]; ok {
		return id
	}
	id := uint32(len(d.terms))
	d.termToID[term] = id
	d.terms = append(d.terms, term)
	d.df = append(d.df, 0)
	return id
}

// BumpDF increments the document frequency of the given TermId by one.
// Callers are responsible for calling this at most once per (document,
// term) pair.
func (d *Dictionary) BumpDF(termID uint32) {
	d.df[termID]++
}

// Lookup returns the TermId for term and whether it exists in the
// dictionary.
func (d *Dictionary) Lookup(term string) (uint32, bool) {
	id, ok := d.termToID[term]
	return id, ok
}

// Term returns the term string for a TermId. Panics if termID is out of
// range — callers only ever pass TermIds obtained from this Dictionary.
func (d *Dictionary) Term(termID uint32) string {
	return d.terms[termID]
}

// DF returns the document frequency for a TermId.
func (d *Dictionary) DF(termID uint32) uint32 {
	return d.df[termID]
}

// Size returns the number of distinct terms in the dictionary.
func (d *Dictionary) Size() int {
	return len(d.terms)
}

// Terms returns the dictionary's terms in TermId order. The returned slice
// must not be mutated by the caller.
func (d *Dictionary) Terms() []string {
	return d.terms
}

// Encode writes the dictionary as a length-prefixed binary stream:
//
//	u32 term_count
//	term_count * (u32 term_id, string term)
//	u32 df_count
//	df_count * u32 df
//
// Term entries are written in TermId order so a reader can rebuild both the
// term→id map and the parallel df vector in one pass.
func (d *Dictionary) Encode(w io.Writer) error {
	bw := indexio.BufferedWriter(w)
	if err := indexio.WriteUint32(bw, uint32(len(d.terms))); err != nil {
		return fmt.Errorf("writing term count: %w", err)
	}
	for id, term := range d.terms {
		if err := indexio.WriteUint32(bw, uint32(id)); err != nil {
			return fmt.Errorf("writing term id: %w", err)
		}
		if err := indexio.WriteString(bw, term); err != nil {
			return fmt.Errorf("writing term %q: %w", term, err)
		}
	}
	if err := indexio.WriteUint32(bw, uint32(len(d.df))); err != nil {
		return fmt.Errorf("writing df count: %w", err)
	}
	for _, df := range d.df {
		if err := indexio.WriteUint32(bw, df); err != nil {
			return fmt.Errorf("writing df: %w", err)
		}
	}
	return bw.Flush()
}

// Decode reads a Dictionary previously written by Encode.
func Decode(r io.Reader) (*Dictionary, error) {
	br := indexio.BufferedReader(r)
	termCount, err := indexio.ReadUint32(br)
	if err != nil {
		return nil, fmt.Errorf("reading term count: %w", err)
	}
	d := &Dictionary{
		termToID: make(map[string]uint32, termCount),
		terms:    make([]string, termCount),
	}
	for i := uint32(0); i < termCount; i++ {
		id, err := indexio.ReadUint32(br)
		if err != nil {
			return nil, fmt.Errorf("reading term id: %w", err)
		}
		term, err := indexio.ReadString(br)
		if err != nil {
			return nil, fmt.Errorf("reading term string: %w", err)
		}
		if id >= termCount {
			return nil, fmt.Errorf("term id %d out of range (term count %d)", id, termCount)
		}
		d.terms[id] = term
		d.termToID[term] = id
	}
	dfCount, err := indexio.ReadUint32(br)
	if err != nil {
		return nil, fmt.Errorf("reading df count: %w", err)
	}
	if dfCount != termCount {
		return nil, fmt.Errorf("df count %d does not match term count %d", dfCount, termCount)
	}
	d.df = make([]uint32, dfCount)
	for i := uint32(0); i < dfCount; i++ {
		v, err := indexio.ReadUint32(br)
		if err != nil {
			return nil, fmt.Errorf("reading df value: %w", err)
		}
		d.df[i] = v
	}
	return d, nil
}
