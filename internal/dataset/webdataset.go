package dataset

import (
	"archive/tar"
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Sample represents a paired record from a WebDataset shard.
type Sample struct {
	Key   string
	Image []byte
	Label int
}

var (
	// ErrPendingOverflow indicates the pairing map exceeded the configured bound.
	ErrPendingOverflow = errors.New("webdataset: pending pair buffer exceeded")
	// ErrLabel indicates a class label outside {0, 1} in a binary dataset.
	ErrLabel = errors.New("webdataset: label is not binary")
)

const defaultPendingCap = 1024

// StreamOptions tunes how a shard is read.
type StreamOptions struct {
	// PendingCap bounds the number of half-paired keys held in memory.
	PendingCap int
	// Binary rejects any label other than 0 or 1.
	Binary bool
}

// StreamShard streams paired samples from the shard at path, in archive order.
// The error channel carries at most one error and is closed before the sample channel.
func StreamShard(ctx context.Context, path string, opts StreamOptions) (<-chan Sample, <-chan error) {
	if opts.PendingCap <= 0 {
		opts.PendingCap = defaultPendingCap
	}
	out := make(chan Sample)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		if err := streamShard(ctx, path, opts, out); err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

func streamShard(ctx context.Context, path string, opts StreamOptions, out chan<- Sample) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open shard")
	}
	defer f.Close()

	tr := tar.NewReader(bufio.NewReader(f))
	pending := make(map[string]*partial)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "read tar %s", path)
		}
		if hdr.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(hdr.Name)
		ext := strings.ToLower(filepath.Ext(name))
		key := strings.TrimSuffix(name, filepath.Ext(name))

		part := pending[key]
		switch ext {
		case ".jpg", ".jpeg", ".png":
			data, err := io.ReadAll(tr)
			if err != nil {
				return errors.Wrapf(err, "read image %s", name)
			}
			if part == nil {
				part = &partial{}
				pending[key] = part
			}
			part.image = data
		case ".cls":
			label, err := readLabel(tr, opts.Binary)
			if err != nil {
				return errors.WithMessagef(err, "%s: label %s", path, name)
			}
			if part == nil {
				part = &partial{}
				pending[key] = part
			}
			part.label = &label
		default:
			continue
		}

		if len(pending) > opts.PendingCap {
			return ErrPendingOverflow
		}

		if part.ready() {
			delete(pending, key)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- Sample{Key: key, Image: part.image, Label: *part.label}:
			}
		}
	}

	if len(pending) > 0 {
		return errors.Errorf("%s: %d samples incomplete", path, len(pending))
	}
	return nil
}

func readLabel(r io.Reader, binary bool) (int, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return 0, errors.Wrap(err, "read")
	}
	label, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		return 0, errors.Wrap(err, "parse")
	}
	if binary && label != 0 && label != 1 {
		return 0, errors.Wrapf(ErrLabel, "got %d", label)
	}
	return label, nil
}

type partial struct {
	image []byte
	label *int
}

func (p *partial) ready() bool {
	return len(p.image) > 0 && p.label != nil
}
