package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrBlobNotFound is returned when no blob exists for a reference.
var ErrBlobNotFound = errors.New("blob not found")

// Store holds rendered report blobs. Implementations are content
// addressed: Put returns the reference the caller persists on the
// inspection record.
type Store interface {
	Put(ctx context.Context, r io.Reader) (ref string, size int64, err error)
	Get(ctx context.Context, ref string) (io.ReadCloser, int64, error)
	Has(ctx context.Context, ref string) (bool, error)
	Delete(ctx context.Context, ref string) error
}
