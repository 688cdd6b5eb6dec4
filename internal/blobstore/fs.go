package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const refPrefix = "blob:"

// validHash matches a lowercase hex-encoded SHA256 hash (64 characters).
var validHash = regexp.MustCompile(`^[0-9a-f]{64}$`)

// FSStore implements Store on the local filesystem. Blobs live in a
// two-level directory tree keyed by the first two characters of their
// content hash.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem-backed blob store rooted at the given directory.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FSStore{root: root}, nil
}

// Put stores the blob and returns its content-addressed reference.
// Storing the same bytes twice yields the same reference.
func (s *FSStore) Put(_ context.Context, r io.Reader) (string, int64, error) {
	tmpFile, err := os.CreateTemp(s.root, ".blob-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmpFile, hasher), r)
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("write blob data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("close temp file: %w", err)
	}

	hash := hex.EncodeToString(hasher.Sum(nil))
	blobPath := s.blobPath(hash)
	if _, err := os.Stat(blobPath); err == nil {
		os.Remove(tmpPath)
		return refPrefix + hash, size, nil
	}
	if err := os.MkdirAll(filepath.Dir(blobPath), 0o755); err != nil {
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("create blob dir: %w", err)
	}
	if err := os.Rename(tmpPath, blobPath); err != nil {
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("rename blob: %w", err)
	}
	return refPrefix + hash, size, nil
}

// Get opens a blob for reading.
func (s *FSStore) Get(_ context.Context, ref string) (io.ReadCloser, int64, error) {
	hash, ok := parseRef(ref)
	if !ok {
		return nil, 0, ErrBlobNotFound
	}
	f, err := os.Open(s.blobPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrBlobNotFound
		}
		return nil, 0, fmt.Errorf("open blob %s: %w", hash, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat blob %s: %w", hash, err)
	}
	return f, info.Size(), nil
}

// Has checks whether a blob exists.
func (s *FSStore) Has(_ context.Context, ref string) (bool, error) {
	hash, ok := parseRef(ref)
	if !ok {
		return false, nil
	}
	_, err := os.Stat(s.blobPath(hash))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat blob %s: %w", hash, err)
	}
	return true, nil
}

// Delete removes a blob. Deleting a missing blob is a no-op.
func (s *FSStore) Delete(_ context.Context, ref string) error {
	hash, ok := parseRef(ref)
	if !ok {
		return nil
	}
	os.Remove(s.blobPath(hash))
	return nil
}

func parseRef(ref string) (string, bool) {
	hash := strings.TrimPrefix(ref, refPrefix)
	if !validHash.MatchString(hash) {
		return "", false
	}
	return hash, true
}

func (s *FSStore) blobPath(hash string) string {
	return filepath.Join(s.root, hash[:2], hash[2:])
}
