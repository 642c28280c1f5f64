package checkpoint

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

// blobStore is a content-addressed arena for file snapshots. Bodies
// are keyed by their blake3 hash and stored zstd-compressed, so a file
// that appears unchanged across many checkpoints costs one blob.
type blobStore struct {
	dir     string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newBlobStore(dir string) (*blobStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}

	return &blobStore{dir: dir, encoder: encoder, decoder: decoder}, nil
}

// hashBytes returns the hex blake3 hash of data.
func hashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (b *blobStore) path(hash string) string {
	return filepath.Join(b.dir, hash[:2], hash+".zst")
}

// Put stores data and returns its hash. Existing blobs are not
// rewritten.
func (b *blobStore) Put(data []byte) (string, error) {
	hash := hashBytes(data)
	path := b.path(hash)

	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create blob bucket: %w", err)
	}

	compressed := b.encoder.EncodeAll(data, nil)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to finalize blob: %w", err)
	}

	return hash, nil
}

// Get returns the body for a hash, verifying integrity. A missing or
// mismatching blob is reported as ErrCorrupt.
func (b *blobStore) Get(hash string) ([]byte, error) {
	compressed, err := os.ReadFile(b.path(hash))
	if err != nil {
		return nil, fmt.Errorf("%w: blob %s unreadable: %v", ErrCorrupt, hash, err)
	}

	data, err := b.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: blob %s undecodable: %v", ErrCorrupt, hash, err)
	}

	if hashBytes(data) != hash {
		return nil, fmt.Errorf("%w: blob %s content does not match its hash", ErrCorrupt, hash)
	}

	return data, nil
}
