package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/dreamware/strata/internal/encoding"
	"github.com/dreamware/strata/internal/plan"
	"github.com/dreamware/strata/internal/staging"
)

// writeShard serializes one bucket of items into the shard file at path,
// exclusively owned by the calling goroutine. storageKey is the file's
// logical name and becomes the path component of every produced locator.
//
// Byte blobs are written first as raw copies; tensor items drain through
// the staging pipeline and are framed self-describingly. On failure a
// partially written file may remain; the caller must not commit metadata
// for it.
func writeShard(path, storageKey string, items []plan.WriteItem, src plan.SaveSource, opts Options) ([]plan.WriteResult, error) {
	var blobs, tensors []plan.WriteItem
	for _, it := range items {
		if it.Kind == plan.ByteIO {
			blobs = append(blobs, it)
		} else {
			if it.Tensor == nil {
				return nil, fmt.Errorf("item %q: %s item without tensor metadata", it.Key, it.Kind)
			}
			tensors = append(tensors, it)
		}
	}

	stager, release := newStager(src, opts)
	defer release()
	for _, it := range tensors {
		if err := stager.Add(it, it.ByteSize()); err != nil {
			return nil, fmt.Errorf("stage %q: %w", it.Key, err)
		}
	}
	if err := stager.Start(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create shard: %w", err)
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	out := &countingWriter{w: bw}

	results := make([]plan.WriteResult, 0, len(items))
	record := func(it plan.WriteItem, offset int64) {
		results = append(results, plan.WriteResult{
			Key:         it.Key,
			Kind:        it.Kind,
			SizeInBytes: out.n - offset,
			Locator:     plan.Locator{Path: storageKey, Offset: offset, Length: out.n - offset},
		})
	}

	write := func() error {
		for _, it := range blobs {
			payload, err := src.ResolveSource(it)
			if err != nil {
				return fmt.Errorf("resolve %q: %w", it.Key, err)
			}
			offset := out.n
			if _, err := out.Write(payload.Data); err != nil {
				return fmt.Errorf("write %q: %w", it.Key, err)
			}
			record(it, offset)
		}

		return stager.Drain(func(st staging.Staged) error {
			offset := out.n
			if _, err := encoding.EncodeTensor(out, *st.Item.Tensor, st.Data); err != nil {
				return fmt.Errorf("write %q: %w", st.Item.Key, err)
			}
			record(st.Item, offset)
			return nil
		})
	}

	if err := write(); err != nil {
		f.Close()
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush shard: %w", err)
	}
	if opts.SyncFiles {
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, fmt.Errorf("sync shard: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close shard: %w", err)
	}
	return results, nil
}

// newStager picks the staging strategy for src: overlapped when the source
// advertises device residency and a positive budget is configured, direct
// otherwise. The returned release func frees strategy resources.
func newStager(src plan.SaveSource, opts Options) (staging.Stager, func()) {
	if staging.Capable(src) && opts.CopyAhead > 0 {
		stream := staging.NewStream()
		return staging.NewOverlapped(src.ResolveSource, stream, opts.CopyAhead), stream.Close
	}
	return staging.NewDirect(src.ResolveSource), func() {}
}

// countingWriter tracks the running byte offset of a shard file so each
// item's locator can be recorded without seeking.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
