package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"

	"github.com/ssargent/bookshelf/pkg/book"
)

// Snapshot layout: magic(4) | version(1) | compression(1) | crc32(4) | block.
// The CRC32 (IEEE, little-endian) covers the block.
var snapshotMagic = []byte("BKSH")

const (
	snapshotVersion    = 1
	snapshotHeaderSize = 10
)

// ErrBadSnapshot is returned when snapshot bytes cannot be decoded.
var ErrBadSnapshot = errors.New("storage: malformed snapshot")

// EncodeSnapshot serializes the whole collection into one compressed snapshot.
func EncodeSnapshot(books []book.Book, c Compression) ([]byte, error) {
	payload, err := EncodeBooks(books)
	if err != nil {
		return nil, err
	}

	block, err := compressBlock(payload, c)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, snapshotHeaderSize+len(block))
	out = append(out, snapshotMagic...)
	out = append(out, snapshotVersion, byte(c))
	out = binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(block))
	out = append(out, block...)
	return out, nil
}

// DecodeSnapshot parses bytes produced by EncodeSnapshot. The compression is
// read from the header, so snapshots stay readable after the configured
// compression changes.
func DecodeSnapshot(data []byte) ([]book.Book, error) {
	if len(data) < snapshotHeaderSize || !bytes.Equal(data[:4], snapshotMagic) {
		return nil, fmt.Errorf("%w: missing header", ErrBadSnapshot)
	}
	if data[4] != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, data[4])
	}

	block := data[snapshotHeaderSize:]
	if want, got := binary.LittleEndian.Uint32(data[6:10]), crc32.ChecksumIEEE(block); want != got {
		return nil, fmt.Errorf("%w: CRC32 mismatch: %d != %d", ErrBadSnapshot, want, got)
	}

	payload, err := decompressBlock(block, Compression(data[5]))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}

	books, err := DecodeBooks(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	return books, nil
}

// SnapshotFile persists the collection as a single file, rewritten atomically
// on every save.
type SnapshotFile struct {
	mu          sync.Mutex
	path        string
	compression Compression
}

// NewSnapshotFile creates the backend. The parent directory is created if
// needed; the file itself appears on the first save.
func NewSnapshotFile(path string, c Compression) (*SnapshotFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &SnapshotFile{path: path, compression: c}, nil
}

// LoadAll reads the snapshot. A missing file is an empty collection.
func (f *SnapshotFile) LoadAll(_ context.Context) ([]book.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return []book.Book{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}

// SaveAll writes to a temporary file in the same directory and renames it over
// the previous snapshot, so readers never see a partial file.
func (f *SnapshotFile) SaveAll(_ context.Context, books []book.Book) error {
	data, err := EncodeSnapshot(books, f.compression)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Close is a no-op; the file is not held open between saves.
func (f *SnapshotFile) Close() error {
	return nil
}

// Path returns the snapshot location.
func (f *SnapshotFile) Path() string {
	return f.path
}
