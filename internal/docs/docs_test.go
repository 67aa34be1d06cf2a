package docs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"agreeline/internal/domain"
)

type recordingStore struct {
	failOn map[string]bool
	puts   []Stored
}

func (s *recordingStore) Put(ctx context.Context, contextID, executorID string, doc Stored) error {
	if s.failOn[doc.Name] {
		return errors.New("storage unavailable")
	}
	s.puts = append(s.puts, doc)
	return nil
}

func fixedNow() time.Time { return time.UnixMilli(1_700_000_000_000) }

func TestUploadAllSequentialOrder(t *testing.T) {
	store := &recordingStore{}
	c := NewCoordinator(store, nil)
	c.Now = fixedNow

	var seen []string
	c.Callbacks.OnFileProgress = func(index, total int, name string) {
		if total != 3 {
			t.Fatalf("total = %d, want 3", total)
		}
		seen = append(seen, name)
	}

	files := []domain.DocumentFile{
		{Name: "a.pdf", MimeType: "application/pdf", Data: []byte("aa")},
		{Name: "b.pdf", MimeType: "application/pdf", Data: []byte("bb")},
		{Name: "c.pdf", MimeType: "application/pdf", Data: []byte("cc")},
	}
	ids, err := c.UploadAll(context.Background(), "ctx-1", "pk-1", files)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("uploaded %d files, want 3", len(ids))
	}
	for i, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		if seen[i] != name {
			t.Fatalf("progress order %v", seen)
		}
		if ids[i] != DocumentID(fixedNow(), name) {
			t.Fatalf("id %q", ids[i])
		}
	}
	if !strings.HasPrefix(ids[0], "doc_1700000000000_") {
		t.Fatalf("document id format %q", ids[0])
	}
}

func TestUploadAllContinuesPastFailures(t *testing.T) {
	store := &recordingStore{failOn: map[string]bool{"b.pdf": true, "d.pdf": true}}
	c := NewCoordinator(store, nil)
	c.Now = fixedNow

	files := []domain.DocumentFile{
		{Name: "a.pdf", Data: []byte("aa")},
		{Name: "b.pdf", Data: []byte("bb")},
		{Name: "c.pdf", Data: []byte("cc")},
		{Name: "d.pdf", Data: []byte("dd")},
	}
	ids, err := c.UploadAll(context.Background(), "ctx-1", "pk-1", files)
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	if len(ids) != 2 {
		t.Fatalf("uploaded %d files, want the 2 that succeeded", len(ids))
	}
	msg := err.Error()
	if !strings.Contains(msg, "2 of 4") {
		t.Fatalf("aggregate message %q", msg)
	}
	if !strings.Contains(msg, "b.pdf") || !strings.Contains(msg, "d.pdf") {
		t.Fatalf("aggregate message %q must name each failed file", msg)
	}
	if !strings.Contains(msg, "; ") {
		t.Fatalf("failures must be joined with a semicolon, got %q", msg)
	}
	// c.pdf was uploaded even though b.pdf before it failed.
	if store.puts[1].Name != "c.pdf" {
		t.Fatalf("expected c.pdf to be stored after b.pdf failed, got %q", store.puts[1].Name)
	}
}

type fakeEmbedder struct {
	err error
}

func (e *fakeEmbedder) Embed(ctx context.Context, name string, data []byte) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.1, 0.2}, nil
}

func TestUploadAllEmbeds(t *testing.T) {
	store := &recordingStore{}
	c := NewCoordinator(store, &fakeEmbedder{})
	c.Now = fixedNow

	var embedded []string
	c.Callbacks.OnEmbeddingProgress = func(name string) { embedded = append(embedded, name) }

	files := []domain.DocumentFile{
		{Name: "a.pdf", Data: []byte("aa")},
		{Name: "pre.pdf", Data: []byte("bb"), Embeddings: []float32{0.9}},
	}
	if _, err := c.UploadAll(context.Background(), "ctx-1", "pk-1", files); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(embedded) != 1 || embedded[0] != "a.pdf" {
		t.Fatalf("embedded %v, files with precomputed vectors must be skipped", embedded)
	}
	if len(store.puts[0].Embeddings) != 2 {
		t.Fatalf("embeddings not attached: %+v", store.puts[0])
	}
	if store.puts[1].Embeddings[0] != 0.9 {
		t.Fatalf("precomputed embeddings overwritten: %+v", store.puts[1])
	}
}

func TestUploadAllEmbeddingFailureFailsFile(t *testing.T) {
	store := &recordingStore{}
	c := NewCoordinator(store, &fakeEmbedder{err: errors.New("model offline")})
	c.Now = fixedNow

	ids, err := c.UploadAll(context.Background(), "ctx-1", "pk-1", []domain.DocumentFile{{Name: "a.pdf", Data: []byte("aa")}})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(ids) != 0 || len(store.puts) != 0 {
		t.Fatal("a file whose embedding fails must not reach storage")
	}
	if !strings.Contains(err.Error(), "embedding") {
		t.Fatalf("error %q should name the embedding step", err)
	}
}
