package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/matcare/matcare/internal/platform/db"
)

// PGStore keeps objects in the storage_objects table.
type PGStore struct {
	db db.Querier
}

func NewPGStore(q db.Querier) *PGStore {
	return &PGStore{db: q}
}

func (s *PGStore) Put(ctx context.Context, bucket, p, contentType string, content io.Reader) (*Object, error) {
	meta, data, err := prepare(bucket, p, contentType, content)
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO storage_objects (bucket, path, content_type, size, sha256, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		meta.Bucket, meta.Path, meta.ContentType, meta.Size, meta.SHA256, data,
	).Scan(&meta.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrObjectExists
		}
		return nil, fmt.Errorf("insert object: %w", err)
	}
	return &meta, nil
}

func (s *PGStore) Get(ctx context.Context, bucket, p string) (io.ReadCloser, *Object, error) {
	var o Object
	var data []byte
	err := s.db.QueryRow(ctx, `
		SELECT bucket, path, content_type, size, sha256, created_at, data
		FROM storage_objects WHERE bucket = $1 AND path = $2`, bucket, p,
	).Scan(&o.Bucket, &o.Path, &o.ContentType, &o.Size, &o.SHA256, &o.CreatedAt, &data)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, fmt.Errorf("get object: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), &o, nil
}

func (s *PGStore) Stat(ctx context.Context, bucket, p string) (*Object, error) {
	var o Object
	err := s.db.QueryRow(ctx, `
		SELECT bucket, path, content_type, size, sha256, created_at
		FROM storage_objects WHERE bucket = $1 AND path = $2`, bucket, p,
	).Scan(&o.Bucket, &o.Path, &o.ContentType, &o.Size, &o.SHA256, &o.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	return &o, nil
}

func (s *PGStore) Delete(ctx context.Context, bucket, p string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM storage_objects WHERE bucket = $1 AND path = $2`, bucket, p)
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrObjectNotFound
	}
	return nil
}
