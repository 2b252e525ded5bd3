// Package docstore implements the per-document metadata and raw-text
// persistence described by spec component 4.B. During a build it assigns
// dense DocIds in admission order and deduplicates by external id; once
// sealed, it serves metadata lookups and (via the caller's own caching)
// raw text for snippet extraction.
package docstore

import (
	"fmt"
	"io"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/indexio"
)

// DocMeta is the persisted metadata for one document.
type DocMeta struct {
	DocID     uint32
	ExtID     string
	Title     string
	URL       string // empty means absent
	HasURL    bool
	Timestamp time.Time
	HasTime   bool
	Meta      string // caller-opaque JSON blob; empty means absent
	HasMeta   bool
	DocNorm   float32
}

// Store holds document metadata in admission order. At build time it also
// dedupes by ExtID and accumulates raw text pending a flush to texts/.
type Store struct {
	metas    []DocMeta
	extToID  map[string]uint32
	rawTexts []string
}

// New creates an empty Store for use during a build.
func New() *Store {
	return &Store{extToID: make(map[string]uint32)}
}

// HasExtID reports whether a document with this external id has already
// been admitted, per spec's first-occurrence-wins dedup rule.
func (s *Store) HasExtID(extID string) bool {
	_, ok := s.extToID[extID]
	return ok
}

// Put admits a new document, assigning it the next sequential DocId. rawText
// is the concatenation of title + "\n" + body, retained verbatim for
// snippets. Callers must have already checked HasExtID.
func (s *Store) Put(extID, title, url string, hasURL bool, ts time.Time, hasTime bool, meta string, hasMeta bool, rawText string) uint32 {
	docID := uint32(len(s.metas))
	s.metas = append(s.metas, DocMeta{
		DocID:     docID,
		ExtID:     extID,
		Title:     title,
		URL:       url,
		HasURL:    hasURL,
		Timestamp: ts,
		HasTime:   hasTime,
		Meta:      meta,
		HasMeta:   hasMeta,
		DocNorm:   1.0,
	})
	s.rawTexts = append(s.rawTexts, rawText)
	s.extToID[extID] = docID
	return docID
}

// SetNorm finalizes the doc_norm for docID once its body has been fully
// tokenized and scored.
func (s *Store) SetNorm(docID uint32, norm float32) {
	s.metas[docID].DocNorm = norm
}

// NumDocs returns the number of admitted documents.
func (s *Store) NumDocs() int {
	return len(s.metas)
}

// Get returns the DocMeta for docID.
func (s *Store) Get(docID uint32) (DocMeta, bool) {
	if docID >= uint32(len(s.metas)) {
		return DocMeta{}, false
	}
	return s.metas[docID], true
}

// LookupExtID returns the DocId assigned to extID.
func (s *Store) LookupExtID(extID string) (uint32, bool) {
	id, ok := s.extToID[extID]
	return id, ok
}

// Text returns the in-memory raw text for docID, available only during a
// build before texts are flushed to disk.
func (s *Store) Text(docID uint32) (string, bool) {
	if docID >= uint32(len(s.rawTexts)) {
		return "", false
	}
	return s.rawTexts[docID], true
}

// RawTexts returns every admitted document's raw text in DocId order, for
// the writer to flush to texts/.
func (s *Store) RawTexts() []string {
	return s.rawTexts
}

// EncodeDocs writes docs.bin: a length-prefixed sequence of DocMeta records
// in DocId order.
func (s *Store) EncodeDocs(w io.Writer) error {
	bw := indexio.BufferedWriter(w)
	if err := indexio.WriteUint32(bw, uint32(len(s.metas))); err != nil {
		return fmt.Errorf("writing doc count: %w", err)
	}
	for _, m := range s.metas {
		if err := encodeDocMeta(bw, m); err != nil {
			return fmt.Errorf("writing doc %d: %w", m.DocID, err)
		}
	}
	return bw.Flush()
}

// EncodeDocIDMap writes doc_id_map.bin: a length-prefixed sequence of
// (ext_id, doc_id) pairs.
func (s *Store) EncodeDocIDMap(w io.Writer) error {
	bw := indexio.BufferedWriter(w)
	if err := indexio.WriteUint32(bw, uint32(len(s.extToID))); err != nil {
		return fmt.Errorf("writing ext id count: %w", err)
	}
	for _, m := range s.metas {
		if err := indexio.WriteString(bw, m.ExtID); err != nil {
			return fmt.Errorf("writing ext id: %w", err)
		}
		if err := indexio.WriteUint32(bw, m.DocID); err != nil {
			return fmt.Errorf("writing doc id: %w", err)
		}
	}
	return bw.Flush()
}

func encodeDocMeta(w io.Writer, m DocMeta) error {
	if err := indexio.WriteUint32(w, m.DocID); err != nil {
		return err
	}
	if err := indexio.WriteString(w, m.ExtID); err != nil {
		return err
	}
	if err := indexio.WriteString(w, m.Title); err != nil {
		return err
	}
	if err := indexio.WriteBool(w, m.HasURL); err != nil {
		return err
	}
	if m.HasURL {
		if err := indexio.WriteString(w, m.URL); err != nil {
			return err
		}
	}
	if err := indexio.WriteBool(w, m.HasTime); err != nil {
		return err
	}
	if m.HasTime {
		if err := indexio.WriteInt64(w, m.Timestamp.UTC().UnixNano()); err != nil {
			return err
		}
	}
	if err := indexio.WriteBool(w, m.HasMeta); err != nil {
		return err
	}
	if m.HasMeta {
		if err := indexio.WriteString(w, m.Meta); err != nil {
			return err
		}
	}
	return indexio.WriteFloat32(w, m.DocNorm)
}

func decodeDocMeta(r io.Reader) (DocMeta, error) {
	var m DocMeta
	var err error
	if m.DocID, err = indexio.ReadUint32(r); err != nil {
		return m, err
	}
	if m.ExtID, err = indexio.ReadString(r); err != nil {
		return m, err
	}
	if m.Title, err = indexio.ReadString(r); err != nil {
		return m, err
	}
	if m.HasURL, err = indexio.ReadBool(r); err != nil {
		return m, err
	}
	if m.HasURL {
		if m.URL, err = indexio.ReadString(r); err != nil {
			return m, err
		}
	}
	if m.HasTime, err = indexio.ReadBool(r); err != nil {
		return m, err
	}
	if m.HasTime {
		nanos, err := indexio.ReadInt64(r)
		if err != nil {
			return m, err
		}
		m.Timestamp = time.Unix(0, nanos).UTC()
	}
	if m.HasMeta, err = indexio.ReadBool(r); err != nil {
		return m, err
	}
	if m.HasMeta {
		if m.Meta, err = indexio.ReadString(r); err != nil {
			return m, err
		}
	}
	if m.DocNorm, err = indexio.ReadFloat32(r); err != nil {
		return m, err
	}
	return m, nil
}

// DecodeDocs reads docs.bin into a new Store (raw texts are not part of
// this file and remain empty; the caller reads texts/ separately).
func DecodeDocs(r io.Reader) (*Store, error) {
	br := indexio.BufferedReader(r)
	count, err := indexio.ReadUint32(br)
	if err != nil {
		return nil, fmt.Errorf("reading doc count: %w", err)
	}
	s := &Store{
		metas:   make([]DocMeta, count),
		extToID: make(map[string]uint32, count),
	}
	for i := uint32(0); i < count; i++ {
		m, err := decodeDocMeta(br)
		if err != nil {
			return nil, fmt.Errorf("reading doc %d: %w", i, err)
		}
		if m.DocID >= count {
			return nil, fmt.Errorf("doc id %d out of range (count %d)", m.DocID, count)
		}
		s.metas[m.DocID] = m
		s.extToID[m.ExtID] = m.DocID
	}
	return s, nil
}

// DecodeDocIDMap reads doc_id_map.bin into a plain ext_id -> doc_id map,
// independent of DecodeDocs, for callers that want to validate the two
// files agree (spec §8 invariant: doc_id_map is injective and every value
// appears as a key in docs).
func DecodeDocIDMap(r io.Reader) (map[string]uint32, error) {
	br := indexio.BufferedReader(r)
	count, err := indexio.ReadUint32(br)
	if err != nil {
		return nil, fmt.Errorf("reading ext id count: %w", err)
	}
	m := make(map[string]uint32, count)
	for i := uint32(0); i < count; i++ {
		extID, err := indexio.ReadString(br)
		if err != nil {
			return nil, fmt.Errorf("reading ext id: %w", err)
		}
		docID, err := indexio.ReadUint32(br)
		if err != nil {
			return nil, fmt.Errorf("reading doc id: %w", err)
		}
		m[extID] = docID
	}
	return m, nil
}
