package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestMemory_PutGet(t *testing.T) {
	store := NewMemory()
	content := []byte(`{"resourceType":"Bundle"}`)

	obj, err := store.Put(context.Background(), "exports/p1/b1.json", "application/fhir+json", content, map[string]string{"patient": "p1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj.Size != int64(len(content)) {
		t.Errorf("expected Size=%d, got %d", len(content), obj.Size)
	}
	if len(obj.Hash) != 64 {
		t.Errorf("expected hex sha256, got %q", obj.Hash)
	}
	if obj.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	rc, meta, err := store.Get(context.Background(), "exports/p1/b1.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != string(content) {
		t.Errorf("content mismatch: %s", got)
	}
	if meta.ContentType != "application/fhir+json" {
		t.Errorf("expected content type, got %s", meta.ContentType)
	}
	if meta.Tags["patient"] != "p1" {
		t.Errorf("expected tag, got %v", meta.Tags)
	}
}

func TestMemory_PutCopiesData(t *testing.T) {
	store := NewMemory()
	data := []byte("abc")
	if _, err := store.Put(context.Background(), "k", "text/plain", data, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data[0] = 'x'
	rc, _, _ := store.Get(context.Background(), "k")
	got, _ := io.ReadAll(rc)
	if string(got) != "abc" {
		t.Errorf("stored content changed with caller buffer: %s", got)
	}
}

func TestMemory_Errors(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if _, err := store.Put(ctx, "", "text/plain", []byte("x"), nil); !errors.Is(err, ErrMissingKey) {
		t.Errorf("expected ErrMissingKey, got %v", err)
	}
	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "missing"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestMemory_ListAndDelete(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	for _, k := range []string{"exports/p2/b.xml", "exports/p1/b.json", "exports/p1/a.json"} {
		if _, err := store.Put(ctx, k, "text/plain", []byte(k), nil); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}

	objs, err := store.List(ctx, "exports/p1/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(objs) != 2 || objs[0].Key != "exports/p1/a.json" || objs[1].Key != "exports/p1/b.json" {
		t.Fatalf("unexpected listing: %+v", objs)
	}

	if err := store.Delete(ctx, "exports/p1/a.json"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	objs, _ = store.List(ctx, "exports/")
	for _, o := range objs {
		if strings.HasSuffix(o.Key, "a.json") {
			t.Error("deleted object still listed")
		}
	}
	if len(objs) != 2 {
		t.Errorf("expected 2 objects, got %d", len(objs))
	}
}
