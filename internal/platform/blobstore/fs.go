package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// validKey restricts keys to path-safe segments so a stored key can never
// escape the root directory.
func validKey(key string) bool {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == '/':
		default:
			return false
		}
	}
	return true
}

// FSStore stores blobs as files under a root directory. Content is written to
// a temp file and renamed into place so readers never observe partial writes.
// A sidecar .meta.json file carries content type, hash, and timestamps.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", root, err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) dataPath(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *FSStore) metaPath(key string) string {
	return s.dataPath(key) + ".meta.json"
}

func (s *FSStore) Put(_ context.Context, key, contentType string, content io.Reader) (*ObjectInfo, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}

	path := s.dataPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), content)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write blob content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	info := ObjectInfo{
		Key:         key,
		ContentType: contentType,
		Size:        size,
		Hash:        fmt.Sprintf("%x", h.Sum(nil)),
		CreatedAt:   time.Now().UTC(),
	}

	metaBytes, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("marshal blob metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(key), metaBytes, 0o644); err != nil {
		return nil, fmt.Errorf("write blob metadata: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("finalize blob: %w", err)
	}

	out := info
	return &out, nil
}

func (s *FSStore) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	if !validKey(key) {
		return nil, nil, ErrInvalidKey
	}

	info, err := s.Stat(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(s.dataPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("open blob %s: %w", key, err)
	}
	return f, info, nil
}

func (s *FSStore) Stat(_ context.Context, key string) (*ObjectInfo, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}

	metaBytes, err := os.ReadFile(s.metaPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read blob metadata %s: %w", key, err)
	}

	var info ObjectInfo
	if err := json.Unmarshal(metaBytes, &info); err != nil {
		return nil, fmt.Errorf("unmarshal blob metadata %s: %w", key, err)
	}
	return &info, nil
}

func (s *FSStore) Delete(_ context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}

	if err := os.Remove(s.dataPath(key)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	_ = os.Remove(s.metaPath(key))
	return nil
}
