// Package blobstore stores uploaded files (profile pictures, laboratory
// results) in named buckets and hands out short-lived signed URLs for them.
// It defines the ObjectStore interface with in-memory and Postgres
// implementations, and Echo handlers for signed and public object reads.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"
)

var (
	ErrObjectNotFound   = errors.New("object not found")
	ErrUnknownBucket    = errors.New("unknown bucket")
	ErrInvalidPath      = errors.New("invalid object path")
	ErrFileTooLarge     = errors.New("file exceeds maximum allowed size")
	ErrContentType      = errors.New("content type is not allowed")
	ErrObjectExists     = errors.New("object already exists")
	ErrInvalidSignature = errors.New("invalid or expired signature")
)

// MaxFileSize is the maximum allowed object size in bytes (25 MB).
const MaxFileSize = 25 * 1024 * 1024

const (
	BucketProfilePictures = "profile-pictures"
	BucketLaboratoryFiles = "laboratory-files"
)

// Bucket describes what a bucket accepts and whether it can be read without
// a signed URL.
type Bucket struct {
	Name         string
	Public       bool
	ContentTypes map[string]bool
}

var buckets = map[string]Bucket{
	BucketProfilePictures: {
		Name:   BucketProfilePictures,
		Public: true,
		ContentTypes: map[string]bool{
			"image/png":  true,
			"image/jpeg": true,
			"image/webp": true,
		},
	},
	BucketLaboratoryFiles: {
		Name: BucketLaboratoryFiles,
		ContentTypes: map[string]bool{
			"application/pdf": true,
			"image/png":       true,
			"image/jpeg":      true,
			"text/plain":      true,
			"text/csv":        true,
		},
	},
}

// LookupBucket returns the bucket definition or ErrUnknownBucket.
func LookupBucket(name string) (Bucket, error) {
	b, ok := buckets[name]
	if !ok {
		return Bucket{}, fmt.Errorf("%w: %q", ErrUnknownBucket, name)
	}
	return b, nil
}

// CleanPath normalizes an object path and rejects traversal or absolute paths.
func CleanPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

// Object is the metadata of a stored file.
type Object struct {
	Bucket      string    `json:"bucket"`
	Path        string    `json:"path"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	CreatedAt   time.Time `json:"created_at"`
}

// ObjectStore is implemented by every storage backend.
type ObjectStore interface {
	Put(ctx context.Context, bucket, path, contentType string, content io.Reader) (*Object, error)
	Get(ctx context.Context, bucket, path string) (io.ReadCloser, *Object, error)
	Stat(ctx context.Context, bucket, path string) (*Object, error)
	Delete(ctx context.Context, bucket, path string) error
}

// prepare validates the bucket, path and content type and reads the body.
func prepare(bucket, p, contentType string, content io.Reader) (Object, []byte, error) {
	b, err := LookupBucket(bucket)
	if err != nil {
		return Object{}, nil, err
	}
	cleaned, err := CleanPath(p)
	if err != nil {
		return Object{}, nil, err
	}
	if ct, _, _ := strings.Cut(contentType, ";"); !b.ContentTypes[strings.TrimSpace(ct)] {
		return Object{}, nil, fmt.Errorf("%w: %s", ErrContentType, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return Object{}, nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return Object{}, nil, ErrFileTooLarge
	}

	sum := sha256.Sum256(data)
	return Object{
		Bucket:      bucket,
		Path:        cleaned,
		ContentType: contentType,
		Size:        int64(len(data)),
		SHA256:      hex.EncodeToString(sum[:]),
		CreatedAt:   time.Now().UTC(),
	}, data, nil
}

type storedObject struct {
	meta Object
	data []byte
}

// MemoryStore is a thread-safe, in-memory ObjectStore for tests and dev.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*storedObject
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]*storedObject)}
}

func objectKey(bucket, p string) string {
	return bucket + "/" + p
}

func (s *MemoryStore) Put(_ context.Context, bucket, p, contentType string, content io.Reader) (*Object, error) {
	meta, data, err := prepare(bucket, p, contentType, content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := objectKey(bucket, meta.Path)
	if _, ok := s.objects[key]; ok {
		return nil, ErrObjectExists
	}
	s.objects[key] = &storedObject{meta: meta, data: data}

	out := meta
	return &out, nil
}

func (s *MemoryStore) Get(_ context.Context, bucket, p string) (io.ReadCloser, *Object, error) {
	s.mu.RLock()
	obj, ok := s.objects[objectKey(bucket, p)]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrObjectNotFound
	}
	meta := obj.meta
	return io.NopCloser(bytes.NewReader(obj.data)), &meta, nil
}

func (s *MemoryStore) Stat(_ context.Context, bucket, p string) (*Object, error) {
	s.mu.RLock()
	obj, ok := s.objects[objectKey(bucket, p)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	meta := obj.meta
	return &meta, nil
}

func (s *MemoryStore) Delete(_ context.Context, bucket, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := objectKey(bucket, p)
	if _, ok := s.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(s.objects, key)
	return nil
}

// IsRejected reports whether err means the upload itself was unacceptable
// (bucket, path, type or size) rather than a storage failure.
func IsRejected(err error) bool {
	return errors.Is(err, ErrUnknownBucket) || errors.Is(err, ErrInvalidPath) ||
		errors.Is(err, ErrContentType) || errors.Is(err, ErrFileTooLarge)
}
