// Package blob provides the object storage abstraction behind the backend:
// CSV files live in a bucket and are addressed by s3://bucket/key URLs.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("blob: object not found")
	// ErrInvalidURL is returned for object URLs that are not s3://bucket/key.
	ErrInvalidURL = errors.New("blob: invalid object URL")
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Bucket      string
	Key         string
	Size        int64
	ContentType string
	ModTime     time.Time
}

// URL renders the canonical object URL.
func (o ObjectInfo) URL() string {
	return FormatURL(o.Bucket, o.Key)
}

// Store is the object storage contract used by the backend.
type Store interface {
	Bucket() string
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// FormatURL renders s3://bucket/key.
func FormatURL(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}

// ParseURL splits an s3://bucket/key URL. Anything else fails with
// ErrInvalidURL.
func ParseURL(raw string) (bucket, key string, err error) {
	trimmed := strings.TrimSpace(raw)
	rest, ok := strings.CutPrefix(trimmed, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return bucket, key, nil
}

// MemoryStore is a map-backed Store for tests and ephemeral runs.
type MemoryStore struct {
	bucket string

	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data []byte
	info ObjectInfo
}

// NewMemoryStore creates an empty in-memory store for the given bucket.
func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{bucket: bucket, objects: make(map[string]memoryObject)}
}

func (m *MemoryStore) Bucket() string { return m.bucket }

func (m *MemoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) (ObjectInfo, error) {
	if strings.TrimSpace(key) == "" {
		return ObjectInfo{}, fmt.Errorf("blob: empty key")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ObjectInfo{}, err
	}
	info := ObjectInfo{
		Bucket:      m.bucket,
		Key:         key,
		Size:        int64(len(data)),
		ContentType: contentType,
		ModTime:     time.Now().UTC(),
	}
	m.mu.Lock()
	m.objects[key] = memoryObject{data: data, info: info}
	m.mu.Unlock()
	return info, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ObjectInfo{}, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.info, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	delete(m.objects, key)
	return nil
}

// Keys lists stored keys in lexical order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
