package vcf

import (
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Open opens a local file for reading, transparently decompressing
// gzip (.gz, .bgz) and zstd (.zst) inputs by extension. Plain paths and
// file:// URIs are accepted. The returned closer releases both the
// decoder and the underlying file.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(strings.TrimPrefix(path, "file://"))
	if err != nil {
		return nil, err
	}
	rc, err := Decompress(path, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if rc == nil {
		return f, nil
	}
	return &stackedReadCloser{Reader: rc, closers: []io.Closer{rc, f}}, nil
}

// Decompress wraps r in a decoder chosen by the extension of name.
// It returns nil when the name carries no recognized compression
// extension, meaning r can be read directly.
//
// BGZF (.bgz and most .vcf.gz files) is a gzip-compatible framing, so the
// stdlib gzip reader handles it.
func Decompress(name string, r io.Reader) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(name, ".gz"), strings.HasSuffix(name, ".bgz"):
		return gzip.NewReader(r)
	case strings.HasSuffix(name, ".zst"):
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return decoder.IOReadCloser(), nil
	default:
		return nil, nil
	}
}

type stackedReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedReadCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
