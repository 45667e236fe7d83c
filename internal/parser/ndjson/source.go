package ndjson

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/size-analysis/internal/storage"
	apperrors "github.com/size-analysis/pkg/errors"
)

// Source is where a size stream's bytes come from.
type Source interface {
	// Open starts a fresh read of the source.
	Open(ctx context.Context) (io.ReadCloser, error)

	// Key identifies the input; equal keys denote the same bytes.
	Key() string
}

// HTTPSource fetches a stream over HTTP(S).
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// Open issues a GET request. Non-2xx responses are errors.
func (s *HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("GET %s: %s", s.URL, resp.Status))
		}
		return nil, fmt.Errorf("GET %s: %s", s.URL, resp.Status)
	}
	return resp.Body, nil
}

// Key returns the URL.
func (s *HTTPSource) Key() string {
	return s.URL
}

// FileSource reads a stream from the local filesystem.
type FileSource struct {
	Path string
}

// Open opens the file.
func (s *FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound, "file not found: "+s.Path, err)
		}
		return nil, err
	}
	return f, nil
}

// Key returns the cleaned path.
func (s *FileSource) Key() string {
	if abs, err := filepath.Abs(s.Path); err == nil {
		return "file://" + abs
	}
	return "file://" + filepath.Clean(s.Path)
}

// StorageSource reads a stream from an object store.
type StorageSource struct {
	Store     storage.Storage
	ObjectKey string
}

// Open downloads the object.
func (s *StorageSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return s.Store.Download(ctx, s.ObjectKey)
}

// Key returns the storage key.
func (s *StorageSource) Key() string {
	return "storage://" + s.ObjectKey
}

// BlobSource serves a stream already held in memory, e.g. an upload.
type BlobSource struct {
	Data        []byte
	fingerprint string
}

// NewBlobSource wraps data. data must not be modified afterwards.
func NewBlobSource(data []byte) *BlobSource {
	return &BlobSource{Data: data, fingerprint: Fingerprint(data)}
}

// Open returns a reader over the blob.
func (s *BlobSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(s.Data)), nil
}

// Key returns the blob fingerprint.
func (s *BlobSource) Key() string {
	if s.fingerprint == "" {
		s.fingerprint = Fingerprint(s.Data)
	}
	return "blob:" + s.fingerprint
}

// Fingerprint returns the xxhash of data as 16 hex digits.
func Fingerprint(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// Storage URL schemes understood by Resolve.
var storageSchemes = []string{"storage://", "cos://", "s3://"}

// IsStorageInput reports whether input names an object storage key.
func IsStorageInput(input string) bool {
	lower := strings.ToLower(strings.TrimSpace(input))
	for _, scheme := range storageSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// Resolve maps a load input to a Source: http(s) URLs are fetched, storage
// schemes are read through store, and anything else is a local path.
func Resolve(input string, store storage.Storage, client *http.Client) (Source, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "input is required")
	}

	lower := strings.ToLower(input)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return &HTTPSource{URL: input, Client: client}, nil
	}

	for _, scheme := range storageSchemes {
		if strings.HasPrefix(lower, scheme) {
			if store == nil {
				return nil, apperrors.New(apperrors.CodeInvalidInput, "no object storage configured for "+input)
			}
			key := strings.TrimLeft(input[len(scheme):], "/")
			if key == "" {
				return nil, apperrors.New(apperrors.CodeInvalidInput, "empty storage key in "+input)
			}
			return &StorageSource{Store: store, ObjectKey: key}, nil
		}
	}

	if strings.HasPrefix(lower, "file://") {
		input = input[len("file://"):]
	}
	return &FileSource{Path: input}, nil
}
