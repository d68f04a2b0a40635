package region

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/garyellow/region-matcher/internal/data"
)

// Source loads a reference catalog.
type Source interface {
	// Name identifies the source in logs and cache keys.
	Name() string
	Load(ctx context.Context) (*Catalog, error)
}

// Fingerprinter is implemented by sources that can report a cheap change
// marker (an ETag, a modification time) without loading the catalog.
type Fingerprinter interface {
	Fingerprint(ctx context.Context) (string, error)
}

// maxCatalogBytes caps the decompressed size of a catalog document.
const maxCatalogBytes = 64 << 20

// EmbeddedSource serves the catalog bundled into the binary.
type EmbeddedSource struct{}

func (EmbeddedSource) Name() string { return "embedded" }

func (EmbeddedSource) Load(_ context.Context) (*Catalog, error) {
	return ParseCatalog(data.Catalog)
}

// FileSource reads a catalog from the local filesystem. Paths ending in
// ".zst" are zstd-decompressed.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file:" + s.Path }

func (s FileSource) Load(_ context.Context) (*Catalog, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("region: read catalog %s: %w", s.Path, err)
	}
	if strings.HasSuffix(s.Path, ".zst") {
		raw, err = decompress(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("region: decompress catalog %s: %w", s.Path, err)
		}
	}
	return ParseCatalog(raw)
}

// Fingerprint returns the file's size and modification time.
func (s FileSource) Fingerprint(_ context.Context) (string, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return "", fmt.Errorf("region: stat catalog %s: %w", s.Path, err)
	}
	return fmt.Sprintf("%d-%d", info.Size(), info.ModTime().UnixNano()), nil
}

// ObjectStore is the subset of an object storage client R2Source needs.
// *r2client.Client satisfies it.
type ObjectStore interface {
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	HeadObject(ctx context.Context, key string) (string, error)
}

// R2Source downloads a catalog object from an S3-compatible bucket. Keys
// ending in ".zst" are zstd-decompressed.
type R2Source struct {
	Store ObjectStore
	Key   string
}

func (s R2Source) Name() string { return "r2:" + s.Key }

func (s R2Source) Load(ctx context.Context) (*Catalog, error) {
	body, _, err := s.Store.Download(ctx, s.Key)
	if err != nil {
		return nil, fmt.Errorf("region: download catalog %s: %w", s.Key, err)
	}
	defer func() { _ = body.Close() }()

	var raw []byte
	if strings.HasSuffix(s.Key, ".zst") {
		raw, err = decompress(body)
	} else {
		raw, err = io.ReadAll(io.LimitReader(body, maxCatalogBytes))
	}
	if err != nil {
		return nil, fmt.Errorf("region: read catalog %s: %w", s.Key, err)
	}
	return ParseCatalog(raw)
}

// Fingerprint returns the object's ETag.
func (s R2Source) Fingerprint(ctx context.Context) (string, error) {
	etag, err := s.Store.HeadObject(ctx, s.Key)
	if err != nil {
		return "", fmt.Errorf("region: head catalog %s: %w", s.Key, err)
	}
	return etag, nil
}

func decompress(r io.Reader) ([]byte, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderMaxMemory(maxCatalogBytes))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(io.LimitReader(dec, maxCatalogBytes))
}
