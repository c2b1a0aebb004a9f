package file

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/hansrobothans/logfan"
)

// compressArchive compresses a rotated archive in place and removes the
// original. It returns the path of the compressed file.
func compressArchive(path, method string) (string, error) {
	var (
		out string
		err error
	)
	switch method {
	case logfan.CompressGzip:
		out, err = gzipFile(path)
	case logfan.CompressZstd:
		out, err = zstdFile(path)
	default:
		return "", fmt.Errorf("unknown compression %q", method)
	}
	if err != nil {
		return "", err
	}
	if err := os.Remove(path); err != nil {
		return out, fmt.Errorf("remove original: %w", err)
	}
	return out, nil
}

func gzipFile(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	out := path + ".gz"
	dst, err := os.Create(out)
	if err != nil {
		return "", err
	}
	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		zw.Close()
		dst.Close()
		os.Remove(out)
		return "", err
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		os.Remove(out)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(out)
		return "", err
	}
	return out, nil
}

func zstdFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return "", err
	}
	defer enc.Close()

	compressed := enc.EncodeAll(raw, make([]byte, 0, len(raw)))
	out := path + ".zst"
	if err := os.WriteFile(out, compressed, 0o644); err != nil {
		return "", err
	}
	return out, nil
}
