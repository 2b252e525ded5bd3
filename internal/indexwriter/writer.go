// Package indexwriter seals a built index to disk, per spec component 4.E.
// It writes to temp files and renames them into place, postings first, then
// the doc store and dictionary, then meta.json last — so a reader can treat
// the absence of meta.json as "not a valid index" regardless of when a
// build was interrupted.
package indexwriter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/dictionary"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/indexio"
	"github.com/Adithya-Monish-Kumar-K/tfidx/internal/postings"
)

// FormatVersion is the current on-disk layout version, written into
// meta.json. Any change to the binary encoding is a breaking bump.
const FormatVersion = 1

// Meta mirrors the sealed index's meta.json.
type Meta struct {
	NumDocs   uint32 `json:"num_docs"`
	CreatedAt string `json:"created_at"`
	Version   int    `json:"version"`
}

// Seal writes dict, docs, and postingsByTerm into dir as a complete, sealed
// index directory. dir is created if absent. On any error the caller is
// expected to remove dir — Seal does not clean up partial output itself,
// matching the build CLI's fatal-error policy of deleting the whole
// directory rather than guessing which files are salvageable.
func Seal(dir string, dict *dictionary.Dictionary, docs *docstore.Store, postingsByTerm []postings.List) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("indexwriter: creating index directory: %w", err)
	}

	if err := writePostings(dir, postingsByTerm); err != nil {
		return err
	}
	if err := writeTexts(dir, docs); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(dir, "docs.bin"), docs.EncodeDocs); err != nil {
		return fmt.Errorf("indexwriter: writing docs.bin: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, "doc_id_map.bin"), docs.EncodeDocIDMap); err != nil {
		return fmt.Errorf("indexwriter: writing doc_id_map.bin: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, "dictionary.bin"), dict.Encode); err != nil {
		return fmt.Errorf("indexwriter: writing dictionary.bin: %w", err)
	}

	meta := Meta{
		NumDocs:   uint32(docs.NumDocs()),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Version:   FormatVersion,
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("indexwriter: marshaling meta.json: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, "meta.json"), func(w io.Writer) error {
		_, err := w.Write(metaBytes)
		return err
	}); err != nil {
		return fmt.Errorf("indexwriter: writing meta.json: %w", err)
	}
	return nil
}

// writeAtomic writes the output of encode to path+".tmp" then renames it
// into place, so readers never observe a partially written file.
func writeAtomic(path string, encode func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	if err := encode(f); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}

func writePostings(dir string, postingsByTerm []postings.List) error {
	postingsDir := filepath.Join(dir, "postings")
	if err := os.MkdirAll(postingsDir, 0o755); err != nil {
		return fmt.Errorf("indexwriter: creating postings directory: %w", err)
	}
	for termID, list := range postingsByTerm {
		name := fmt.Sprintf("%08d.postings.bin", termID)
		path := filepath.Join(postingsDir, name)
		list := list
		if err := writeAtomic(path, func(w io.Writer) error {
			return encodePostings(w, list)
		}); err != nil {
			return fmt.Errorf("indexwriter: writing postings for term %d: %w", termID, err)
		}
	}
	return nil
}

func encodePostings(w io.Writer, list postings.List) error {
	bw := indexio.BufferedWriter(w)
	if err := indexio.WriteUint32(bw, uint32(len(list))); err != nil {
		return err
	}
	for _, p := range list {
		if err := indexio.WriteUint32(bw, p.DocID); err != nil {
			return err
		}
		if err := indexio.WriteFloat32(bw, p.Weight); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeTexts(dir string, docs *docstore.Store) error {
	textsDir := filepath.Join(dir, "texts")
	if err := os.MkdirAll(textsDir, 0o755); err != nil {
		return fmt.Errorf("indexwriter: creating texts directory: %w", err)
	}
	for docID, text := range docs.RawTexts() {
		path := filepath.Join(textsDir, fmt.Sprintf("%d.txt", docID))
		if err := writeAtomic(path, func(w io.Writer) error {
			_, err := io.WriteString(w, text)
			return err
		}); err != nil {
			return fmt.Errorf("indexwriter: writing text for doc %d: %w", docID, err)
		}
	}
	return nil
}
