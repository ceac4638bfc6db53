package blob

import (
	"bytes"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const (
	ErrTypeCompress = "blob-compress-failure"
)

// Compress encodes data the way a FileLoader expects to find it at path:
// zstd for .zst, gzip for .gz and unchanged otherwise.
func Compress(path string, data []byte) ([]byte, error) {
	switch formatOf(path) {
	case "zstd":
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, errors.New("creating zstd encoder failed").
				WithType(ErrTypeCompress).
				WithTag("path", path).
				Wrap(err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, make([]byte, 0, len(data))), nil

	case "gzip":
		var buf bytes.Buffer
		gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return nil, errors.New("creating gzip writer failed").
				WithType(ErrTypeCompress).
				WithTag("path", path).
				Wrap(err)
		}
		if _, err := gz.Write(data); err != nil {
			return nil, errors.New("gzip compression failed").
				WithType(ErrTypeCompress).
				WithTag("path", path).
				Wrap(err)
		}
		if err := gz.Close(); err != nil {
			return nil, errors.New("closing gzip writer failed").
				WithType(ErrTypeCompress).
				WithTag("path", path).
				Wrap(err)
		}
		return buf.Bytes(), nil

	default:
		return data, nil
	}
}
