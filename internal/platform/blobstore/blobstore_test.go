package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

func TestLookupBucket(t *testing.T) {
	if _, err := LookupBucket(BucketLaboratoryFiles); err != nil {
		t.Fatalf("expected laboratory-files to exist: %v", err)
	}
	if _, err := LookupBucket("avatars"); !errors.Is(err, ErrUnknownBucket) {
		t.Errorf("expected ErrUnknownBucket, got %v", err)
	}
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"p1/result.pdf", "p1/result.pdf", false},
		{"p1//a/../result.pdf", "p1/result.pdf", false},
		{"", "", true},
		{"/etc/passwd", "", true},
		{"../secret", "", true},
		{"a/../../b", "", true},
		{"a\\b", "", true},
	}
	for _, tt := range tests {
		got, err := CleanPath(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("CleanPath(%q) err=%v, wantErr=%v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("CleanPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	obj, err := store.Put(ctx, BucketLaboratoryFiles, "p1/cbc.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if obj.Size != 8 {
		t.Errorf("expected size 8, got %d", obj.Size)
	}
	if len(obj.SHA256) != 64 {
		t.Errorf("expected hex sha256, got %q", obj.SHA256)
	}

	rc, meta, err := store.Get(ctx, BucketLaboratoryFiles, "p1/cbc.pdf")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "%PDF-1.4" {
		t.Errorf("unexpected content %q", data)
	}
	if meta.ContentType != "application/pdf" {
		t.Errorf("unexpected content type %q", meta.ContentType)
	}

	if _, err := store.Put(ctx, BucketLaboratoryFiles, "p1/cbc.pdf", "application/pdf", strings.NewReader("x")); !errors.Is(err, ErrObjectExists) {
		t.Errorf("expected ErrObjectExists, got %v", err)
	}
}

func TestMemoryStore_Validation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Put(ctx, "unknown", "a.pdf", "application/pdf", strings.NewReader("x")); !errors.Is(err, ErrUnknownBucket) {
		t.Errorf("expected ErrUnknownBucket, got %v", err)
	}
	if _, err := store.Put(ctx, BucketProfilePictures, "a.pdf", "application/pdf", strings.NewReader("x")); !errors.Is(err, ErrContentType) {
		t.Errorf("expected ErrContentType for pdf in profile-pictures, got %v", err)
	}
	if _, err := store.Put(ctx, BucketLaboratoryFiles, "../a.pdf", "application/pdf", strings.NewReader("x")); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
	big := strings.NewReader(strings.Repeat("a", MaxFileSize+1))
	if _, err := store.Put(ctx, BucketLaboratoryFiles, "big.txt", "text/plain", big); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestMemoryStore_StatDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if _, err := store.Put(ctx, BucketProfilePictures, "u1.png", "image/png", strings.NewReader("png")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Stat(ctx, BucketProfilePictures, "u1.png"); err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if err := store.Delete(ctx, BucketProfilePictures, "u1.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Stat(ctx, BucketProfilePictures, "u1.png"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, BucketProfilePictures, "u1.png"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound on second delete, got %v", err)
	}
}

func TestMemoryStore_ConcurrentPut(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Put(ctx, BucketLaboratoryFiles, "same.txt", "text/plain", strings.NewReader("x")); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if created != 1 {
		t.Errorf("expected exactly one successful put, got %d", created)
	}
}
