package model

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Load reads the model file at path and builds its network.
// Files ending in .gz are gzip compressed, files ending in .sz use snappy framing.
func Load(path string) (*Network, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	net, err := New(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "model %s", path)
	}
	return net, nil
}

// ReadFile decodes a model file without building the network.
func ReadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open model")
	}
	defer fh.Close()

	r, err := decompressor(path, fh)
	if err != nil {
		return nil, errors.Wrapf(err, "model %s", path)
	}
	defer r.Close()

	f, err := Decode(r)
	if err != nil {
		return nil, errors.WithMessagef(err, "model %s", path)
	}
	return f, nil
}

// Decode parses an uncompressed model document.
func Decode(r io.Reader) (*File, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decode model")
	}
	return &f, nil
}

// WriteFile encodes f to path, compressing according to the file extension.
func WriteFile(path string, f *File) error {
	fh, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create model")
	}
	w := compressor(path, fh)
	if err := json.NewEncoder(w).Encode(f); err != nil {
		fh.Close()
		return errors.Wrap(err, "encode model")
	}
	if err := w.Close(); err != nil {
		fh.Close()
		return errors.Wrap(err, "flush model")
	}
	return fh.Close()
}

func decompressor(path string, r io.Reader) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(path, ".gz"):
		return gzip.NewReader(r)
	case strings.HasSuffix(path, ".sz"):
		return io.NopCloser(snappy.NewReader(r)), nil
	default:
		return io.NopCloser(r), nil
	}
}

func compressor(path string, w io.Writer) io.WriteCloser {
	switch {
	case strings.HasSuffix(path, ".gz"):
		return gzip.NewWriter(w)
	case strings.HasSuffix(path, ".sz"):
		return snappy.NewBufferedWriter(w)
	default:
		return nopWriteCloser{w}
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
