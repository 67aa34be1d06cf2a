// Package docs uploads agreement documents one at a time, reporting progress
// per file and carrying on past individual failures so one bad file does not
// abort the batch.
package docs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"agreeline/internal/domain"
	"agreeline/internal/result"
)

// Stored is a document as handed to storage.
type Stored struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mime_type"`
	Hash       string    `json:"hash"`
	Size       int       `json:"size"`
	Embeddings []float32 `json:"embeddings,omitempty"`
	UploadedAt int64     `json:"uploaded_at"`
}

// Store persists a document into an agreement context.
type Store interface {
	Put(ctx context.Context, contextID, executorID string, doc Stored) error
}

// Embedder produces an embedding vector for a document. A nil Embedder skips
// the embedding step entirely.
type Embedder interface {
	Embed(ctx context.Context, name string, data []byte) ([]float32, error)
}

// Callbacks receive progress notifications during an upload batch. Any field
// may be nil.
type Callbacks struct {
	OnFileProgress      func(index, total int, name string)
	OnEmbeddingProgress func(name string)
	OnStorageStart      func(name string)
}

// Coordinator runs document upload batches.
type Coordinator struct {
	Store     Store
	Embedder  Embedder
	Now       func() time.Time
	Callbacks Callbacks
}

// NewCoordinator builds a Coordinator over the given store.
func NewCoordinator(store Store, embedder Embedder) *Coordinator {
	return &Coordinator{Store: store, Embedder: embedder, Now: time.Now}
}

// DocumentID derives the stable document id from the upload instant and the
// file name.
func DocumentID(now time.Time, name string) string {
	return fmt.Sprintf("doc_%d_%s", now.UnixMilli(), name)
}

// UploadAll uploads files strictly in order. A failed file is recorded and
// the batch continues; the returned error, if any, aggregates every per-file
// failure. The returned ids cover the files that made it into storage.
func (c *Coordinator) UploadAll(ctx context.Context, contextID, executorID string, files []domain.DocumentFile) ([]string, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	total := len(files)
	var uploaded []string
	var failures []string
	for i, f := range files {
		if c.Callbacks.OnFileProgress != nil {
			c.Callbacks.OnFileProgress(i+1, total, f.Name)
		}
		id, err := c.uploadOne(ctx, contextID, executorID, f, now())
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", f.Name, err))
			continue
		}
		uploaded = append(uploaded, id)
	}
	if len(failures) > 0 {
		return uploaded, result.Errorf(500, "failed to upload %d of %d documents: %s", len(failures), total, strings.Join(failures, "; "))
	}
	return uploaded, nil
}

func (c *Coordinator) uploadOne(ctx context.Context, contextID, executorID string, f domain.DocumentFile, now time.Time) (string, error) {
	sum := sha256.Sum256(f.Data)
	doc := Stored{
		ID:         DocumentID(now, f.Name),
		Name:       f.Name,
		MimeType:   f.MimeType,
		Hash:       hex.EncodeToString(sum[:]),
		Size:       len(f.Data),
		Embeddings: f.Embeddings,
		UploadedAt: now.UnixMilli() * int64(time.Millisecond),
	}
	if doc.Embeddings == nil && c.Embedder != nil {
		if c.Callbacks.OnEmbeddingProgress != nil {
			c.Callbacks.OnEmbeddingProgress(f.Name)
		}
		emb, err := c.Embedder.Embed(ctx, f.Name, f.Data)
		if err != nil {
			return "", fmt.Errorf("embedding: %w", err)
		}
		doc.Embeddings = emb
	}
	if c.Callbacks.OnStorageStart != nil {
		c.Callbacks.OnStorageStart(f.Name)
	}
	if err := c.Store.Put(ctx, contextID, executorID, doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}
