// Package blobstore archives exported documents. Store has an in-memory
// implementation for development and tests and a MinIO/S3 implementation.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrObjectTooLarge = errors.New("object exceeds maximum allowed size")
	ErrMissingKey     = errors.New("object key is required")
)

// MaxObjectSize is the largest object Put accepts (100 MB).
const MaxObjectSize = 100 * 1024 * 1024

// Object describes a stored object.
type Object struct {
	Key         string            `json:"key"`
	ContentType string            `json:"content_type"`
	Size        int64             `json:"size"`
	Hash        string            `json:"hash"`
	CreatedAt   time.Time         `json:"created_at"`
	Tags        map[string]string `json:"tags,omitempty"`
}

type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte, tags map[string]string) (*Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, *Object, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]*Object, error)
}

func checkPut(key string, data []byte) error {
	if key == "" {
		return ErrMissingKey
	}
	if len(data) > MaxObjectSize {
		return ErrObjectTooLarge
	}
	return nil
}

func hashOf(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

type storedObject struct {
	meta    Object
	content []byte
}

// Memory is a thread-safe in-memory Store.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]*storedObject
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]*storedObject), now: time.Now}
}

// Put stores a copy of data under key, replacing any existing object.
func (s *Memory) Put(_ context.Context, key, contentType string, data []byte, tags map[string]string) (*Object, error) {
	if err := checkPut(key, data); err != nil {
		return nil, err
	}
	meta := Object{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        hashOf(data),
		CreatedAt:   s.now().UTC(),
		Tags:        make(map[string]string, len(tags)),
	}
	for k, v := range tags {
		meta.Tags[k] = v
	}

	s.mu.Lock()
	s.objects[key] = &storedObject{meta: meta, content: append([]byte(nil), data...)}
	s.mu.Unlock()

	out := meta
	return &out, nil
}

func (s *Memory) Get(_ context.Context, key string) (io.ReadCloser, *Object, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrObjectNotFound
	}
	meta := obj.meta
	return io.NopCloser(bytes.NewReader(obj.content)), &meta, nil
}

func (s *Memory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(s.objects, key)
	return nil
}

// List returns the objects whose key starts with prefix, ordered by key.
func (s *Memory) List(_ context.Context, prefix string) ([]*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Object
	for k, obj := range s.objects {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		m := obj.meta
		out = append(out, &m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
