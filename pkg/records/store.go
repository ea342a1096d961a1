// Package records provides on-demand aircraft metadata: a thin object-store
// client plus a bounded, TTL'd per-ICAO cache in front of it. Records are
// produced by an external ingestion pipeline and stored as JSON blobs
// (optionally gzip-compressed) at a deterministic path per aircraft.
package records

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/klauspost/compress/gzip"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// ErrNotFound indicates the record blob does not exist in the store.
var ErrNotFound = errors.New("records: object not found")

// AircraftRecord is static metadata for one airframe, keyed by its ICAO24
// transponder address. Immutable once fetched; refreshed only by cache expiry.
type AircraftRecord struct {
	ICAO24       string `json:"icao24"`
	Registration string `json:"registration"`
	TypeCode     string `json:"typeCode"`
	Owner        string `json:"owner"`
	Operator     string `json:"operator"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	SerialNumber string `json:"serialNumber"`
	YearBuilt    string `json:"yearBuilt"`
}

// ObjectStore is the read interface onto the record blobs. Get returns
// ErrNotFound for missing keys.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// ObjectKey returns the deterministic store path for an aircraft's record.
func ObjectKey(icao24 string) string {
	return "aircraft/" + strings.ToLower(icao24) + ".json"
}

// GCSStore reads record blobs from a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// NewGCSStore creates a store for the given bucket. Credentials come from the
// environment (GOOGLE_APPLICATION_CREDENTIALS or workload identity); extra
// client options are passed through for testing against emulators.
func NewGCSStore(ctx context.Context, bucketName string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("bucket name cannot be empty")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: client.Bucket(bucketName),
	}, nil
}

// Get reads one object, transparently decompressing gzip blobs.
func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	rd, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	defer rd.Close()

	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return maybeGunzip(data)
}

// List returns the object names under a prefix.
func (s *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// Close releases the underlying storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// maybeGunzip decompresses data if it carries the gzip magic number, and
// returns it unchanged otherwise. The ingestion pipeline compresses larger
// records; older blobs are plain JSON.
func maybeGunzip(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("gzip decompress: %w", err)
	}
	return out, nil
}
