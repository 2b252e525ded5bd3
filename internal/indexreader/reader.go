// Package indexreader opens a sealed index directory for querying, per
// spec component 4.F. It loads the dictionary and document store wholesale
// at open time and lazily loads postings and raw text through bounded LRU
// caches shared across every concurrent request.
package indexreader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/dictionary"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/indexio"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/postings"
	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/metrics"
)

// Meta mirrors the on-disk meta.json, duplicated here rather than imported
// from indexwriter so the reader has no compile-time dependency on the
// writer package.
type Meta struct {
	NumDocs   uint32 `json:"num_docs"`
	CreatedAt string `json:"created_at"`
	Version   int    `json:"version"`
}

// SupportedVersion is the only meta.json version this reader accepts.
const SupportedVersion = 1

// Reader is an immutable, read-only view of a sealed index directory. A
// single Reader is shared across every concurrent query; the only mutable
// state is the two LRU caches, which are internally synchronized.
type Reader struct {
	dir  string
	meta Meta
	dict *dictionary.Dictionary
	docs *docstore.Store

	postingsCache *lru.Cache[uint32, postings.List]
	textCache     *lru.Cache[uint32, string]

	metrics *metrics.Metrics
}

// Options configures cache sizes. Zero values fall back to sensible
// defaults. Metrics is optional; a nil value disables postings-cache
// hit/miss recording.
type Options struct {
	PostingsCacheSize int
	TextCacheSize     int
	Metrics           *metrics.Metrics
}

const (
	defaultPostingsCacheSize = 4096
	defaultTextCacheSize     = 1024
)

// Open reads meta.json, rejects a version mismatch, and fully loads the
// dictionary and document store into memory. Postings and raw text are not
// preloaded.
func Open(dir string, opts Options) (*Reader, error) {
	metaBytes, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return nil, fmt.Errorf("indexreader: meta.json missing or unreadable: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("indexreader: parsing meta.json: %w", err)
	}
	if meta.Version != SupportedVersion {
		return nil, fmt.Errorf("indexreader: unsupported index version %d (want %d)", meta.Version, SupportedVersion)
	}

	dictFile, err := os.Open(filepath.Join(dir, "dictionary.bin"))
	if err != nil {
		return nil, fmt.Errorf("indexreader: opening dictionary.bin: %w", err)
	}
	dict, err := dictionary.Decode(dictFile)
	dictFile.Close()
	if err != nil {
		return nil, fmt.Errorf("indexreader: decoding dictionary.bin: %w", err)
	}

	docsFile, err := os.Open(filepath.Join(dir, "docs.bin"))
	if err != nil {
		return nil, fmt.Errorf("indexreader: opening docs.bin: %w", err)
	}
	docs, err := docstore.DecodeDocs(docsFile)
	docsFile.Close()
	if err != nil {
		return nil, fmt.Errorf("indexreader: decoding docs.bin: %w", err)
	}

	if err := validateDocIDMap(dir, docs); err != nil {
		return nil, err
	}

	postingsCacheSize := opts.PostingsCacheSize
	if postingsCacheSize <= 0 {
		postingsCacheSize = defaultPostingsCacheSize
	}
	textCacheSize := opts.TextCacheSize
	if textCacheSize <= 0 {
		textCacheSize = defaultTextCacheSize
	}
	postingsCache, err := lru.New[uint32, postings.List](postingsCacheSize)
	if err != nil {
		return nil, fmt.Errorf("indexreader: creating postings cache: %w", err)
	}
	textCache, err := lru.New[uint32, string](textCacheSize)
	if err != nil {
		return nil, fmt.Errorf("indexreader: creating text cache: %w", err)
	}

	return &Reader{
		dir:           dir,
		meta:          meta,
		dict:          dict,
		docs:          docs,
		postingsCache: postingsCache,
		textCache:     textCache,
		metrics:       opts.Metrics,
	}, nil
}

func validateDocIDMap(dir string, docs *docstore.Store) error {
	mapFile, err := os.Open(filepath.Join(dir, "doc_id_map.bin"))
	if err != nil {
		return fmt.Errorf("indexreader: opening doc_id_map.bin: %w", err)
	}
	defer mapFile.Close()
	extToID, err := docstore.DecodeDocIDMap(mapFile)
	if err != nil {
		return fmt.Errorf("indexreader: decoding doc_id_map.bin: %w", err)
	}
	seen := make(map[uint32]bool, len(extToID))
	for extID, docID := range extToID {
		if seen[docID] {
			return fmt.Errorf("indexreader: doc_id_map is not injective: doc id %d appears twice", docID)
		}
		seen[docID] = true
		if _, ok := docs.Get(docID); !ok {
			return fmt.Errorf("indexreader: doc_id_map entry %q -> %d has no matching document", extID, docID)
		}
	}
	return nil
}

// NumDocs returns the number of documents in the index.
func (r *Reader) NumDocs() uint32 {
	return r.meta.NumDocs
}

// Dictionary exposes the read-only dictionary for term lookups.
func (r *Reader) Dictionary() *dictionary.Dictionary {
	return r.dict
}

// DocMeta returns the metadata for docID.
func (r *Reader) DocMeta(docID uint32) (docstore.DocMeta, bool) {
	return r.docs.Get(docID)
}

// Postings returns the posting list for termID, reading it from disk and
// materializing it fully on an LRU miss.
func (r *Reader) Postings(termID uint32) (postings.List, error) {
	if list, ok := r.postingsCache.Get(termID); ok {
		if r.metrics != nil {
			r.metrics.PostingsCacheHitsTotal.Inc()
		}
		return list, nil
	}
	if r.metrics != nil {
		r.metrics.PostingsCacheMissesTotal.Inc()
	}
	path := filepath.Join(r.dir, "postings", fmt.Sprintf("%08d.postings.bin", termID))
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("indexreader: reading postings for term %d: %w", termID, err)
	}
	defer f.Close()
	list, err := decodePostings(f)
	if err != nil {
		return nil, fmt.Errorf("indexreader: decoding postings for term %d: %w", termID, err)
	}
	r.postingsCache.Add(termID, list)
	return list, nil
}

func decodePostings(f *os.File) (postings.List, error) {
	br := indexio.BufferedReader(f)
	count, err := indexio.ReadUint32(br)
	if err != nil {
		return nil, err
	}
	list := make(postings.List, count)
	for i := uint32(0); i < count; i++ {
		docID, err := indexio.ReadUint32(br)
		if err != nil {
			return nil, err
		}
		weight, err := indexio.ReadFloat32(br)
		if err != nil {
			return nil, err
		}
		list[i] = postings.Posting{DocID: docID, Weight: weight}
	}
	return list, nil
}

// Text returns the raw text for docID, reading it from texts/ and caching
// it on a miss.
func (r *Reader) Text(docID uint32) (string, error) {
	if text, ok := r.textCache.Get(docID); ok {
		return text, nil
	}
	path := filepath.Join(r.dir, "texts", fmt.Sprintf("%d.txt", docID))
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("indexreader: reading text for doc %d: %w", docID, err)
	}
	text := string(data)
	r.textCache.Add(docID, text)
	return text, nil
}
