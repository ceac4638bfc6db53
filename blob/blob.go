// Package blob reads whole files into memory for the format decoders.
package blob

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const (
	ErrTypeRead       = "blob-read-failure"
	ErrTypeDecompress = "blob-decompress-failure"
	ErrTypeTooLarge   = "blob-too-large"
	ErrTypeNotFound   = "blob-not-found"
)

// DefaultMaxSize is the largest blob a FileLoader returns when no limit is
// configured.
const DefaultMaxSize = 64 << 20

// Loader loads a named file fully into memory. Every successful Load must be
// paired with a Release of the returned bytes once the caller is done with
// them.
type Loader interface {
	Load(path string) ([]byte, error)
	Release(data []byte)
}

// FileLoader loads blobs from the file system. Files ending in .zst or .gz are
// transparently decompressed.
type FileLoader struct {
	// The directory relative paths are resolved against.
	Root string

	// The maximum size in bytes of a loaded (decompressed) blob. Defaults to
	// DefaultMaxSize.
	MaxSize int64
}

func (l *FileLoader) Load(path string) ([]byte, error) {
	format := formatOf(path)
	maxSize := l.maxSize()

	f, err := os.Open(l.resolve(path))
	if err != nil {
		err = errors.New("opening blob failed").
			WithType(ErrTypeRead).
			WithTag("path", path).
			Wrap(err)
		instrumentLoadError(format, err)
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	switch format {
	case "zstd":
		dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			err = errors.New("creating zstd decoder failed").
				WithType(ErrTypeDecompress).
				WithTag("path", path).
				Wrap(err)
			instrumentLoadError(format, err)
			return nil, err
		}
		defer dec.Close()
		r = dec

	case "gzip":
		gz, err := gzip.NewReader(f)
		if err != nil {
			err = errors.New("creating gzip reader failed").
				WithType(ErrTypeDecompress).
				WithTag("path", path).
				Wrap(err)
			instrumentLoadError(format, err)
			return nil, err
		}
		defer gz.Close()
		r = gz
	}

	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		errType := ErrTypeRead
		if format != "raw" {
			errType = ErrTypeDecompress
		}
		err = errors.New("reading blob failed").
			WithType(errType).
			WithTag("path", path).
			Wrap(err)
		instrumentLoadError(format, err)
		return nil, err
	}

	if int64(len(data)) > maxSize {
		err := errors.New("blob exceeds the maximum size").
			WithType(ErrTypeTooLarge).
			WithTag("path", path).
			WithTag("max_size", maxSize)
		instrumentLoadError(format, err)
		return nil, err
	}

	instrumentLoad(format, len(data))
	return data, nil
}

func (l *FileLoader) Release(data []byte) {
	instrumentRelease(len(data))
}

func (l *FileLoader) resolve(path string) string {
	if l.Root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.Root, path)
}

func (l *FileLoader) maxSize() int64 {
	if l.MaxSize <= 0 {
		return DefaultMaxSize
	}
	return l.MaxSize
}

func formatOf(path string) string {
	switch {
	case strings.HasSuffix(path, ".zst"):
		return "zstd"
	case strings.HasSuffix(path, ".gz"):
		return "gzip"
	default:
		return "raw"
	}
}

// MemoryLoader serves blobs from memory. It keeps track of the blobs that are
// loaded and not yet released.
type MemoryLoader struct {
	mutex       sync.Mutex
	blobs       map[string][]byte
	outstanding int
	loads       int
}

func NewMemoryLoader() *MemoryLoader {
	return &MemoryLoader{
		blobs: make(map[string][]byte),
	}
}

// Set registers a blob under the given path. The data is copied.
func (l *MemoryLoader) Set(path string, data []byte) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.blobs[path] = append([]byte(nil), data...)
}

func (l *MemoryLoader) Load(path string) ([]byte, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	data, ok := l.blobs[path]
	if !ok {
		return nil, errors.New("blob not found").
			WithType(ErrTypeNotFound).
			WithTag("path", path)
	}

	l.outstanding++
	l.loads++
	return append([]byte(nil), data...), nil
}

func (l *MemoryLoader) Release(data []byte) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.outstanding > 0 {
		l.outstanding--
	}
}

// Outstanding returns the number of loaded blobs that were not released.
func (l *MemoryLoader) Outstanding() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.outstanding
}

// Loads returns the number of successful loads.
func (l *MemoryLoader) Loads() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.loads
}
