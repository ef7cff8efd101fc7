package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/dreamware/strata/internal/encoding"
	"github.com/dreamware/strata/internal/plan"
)

// FileReader reconstructs items from a committed checkpoint directory.
// Reads are offset-based random access into shard files: the storage index
// pins every item to a byte range, and each shard file is opened once per
// read plan however many items it serves.
type FileReader struct {
	dir string
	log zerolog.Logger
	md  *encoding.Metadata
}

// NewFileReader returns a reader over the checkpoint at dir.
func NewFileReader(dir string, log zerolog.Logger) *FileReader {
	return &FileReader{dir: dir, log: log.With().Str("dir", dir).Logger()}
}

// ReadMetadata loads and caches the checkpoint's committed metadata.
func (r *FileReader) ReadMetadata() (*encoding.Metadata, error) {
	if r.md != nil {
		return r.md, nil
	}
	f, err := os.Open(filepath.Join(r.dir, MetadataFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", r.dir, ErrNoMetadata)
	}
	if err != nil {
		return nil, fmt.Errorf("open metadata: %w", err)
	}
	defer f.Close()

	md, err := encoding.DecodeMetadata(f)
	if err != nil {
		return nil, err
	}
	r.md = md
	return md, nil
}

// PrepareLocalPlan readies the reader for p. The filesystem reader needs
// no adjustment.
func (r *FileReader) PrepareLocalPlan(p plan.LoadPlan) (plan.LoadPlan, error) {
	return p, nil
}

// PrepareGlobalPlans returns the participants' plans unchanged.
func (r *FileReader) PrepareGlobalPlans(plans []plan.LoadPlan) ([]plan.LoadPlan, error) {
	return plans, nil
}

// Read satisfies every item in p through sink. Items are grouped by shard
// file; request order within a file is not guaranteed.
func (r *FileReader) Read(ctx context.Context, p plan.LoadPlan, sink plan.LoadSink) *PendingRead {
	pr := &PendingRead{done: make(chan struct{})}
	go func() {
		defer close(pr.done)
		pr.err = r.read(ctx, p, sink)
	}()
	return pr
}

func (r *FileReader) read(ctx context.Context, p plan.LoadPlan, sink plan.LoadSink) error {
	md, err := r.ReadMetadata()
	if err != nil {
		return err
	}

	perFile := make(map[string][]request)
	for _, item := range p.Items {
		entry, ok := md.Index[item.Key]
		if !ok {
			return fmt.Errorf("item %q: %w", item.Key, ErrUnknownKey)
		}
		if (entry.Kind == plan.ByteIO) != (item.Kind == plan.ByteIO) {
			return fmt.Errorf("item %q: stored as %s, requested as %s", item.Key, entry.Kind, item.Kind)
		}
		perFile[entry.Locator.Path] = append(perFile[entry.Locator.Path], request{item: item, entry: entry})
	}

	for path, reqs := range perFile {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.readFile(path, reqs, sink); err != nil {
			return err
		}
		r.log.Debug().Str("shard", path).Int("items", len(reqs)).Msg("shard read")
	}
	return nil
}

// request pairs one read item with its storage index entry.
type request struct {
	item  plan.ReadItem
	entry encoding.Entry
}

func (r *FileReader) readFile(path string, reqs []request, sink plan.LoadSink) error {
	f, err := os.Open(filepath.Join(r.dir, path))
	if err != nil {
		return fmt.Errorf("open shard %s: %w", path, err)
	}
	defer f.Close()

	for _, req := range reqs {
		loc := req.entry.Locator
		section := io.NewSectionReader(f, loc.Offset, loc.Length)

		if req.item.Kind == plan.ByteIO {
			data := make([]byte, loc.Length)
			if _, err := io.ReadFull(section, data); err != nil {
				return fmt.Errorf("read %q from %s: %w", req.item.Key, path, err)
			}
			if err := sink.LoadBytes(req.item, data); err != nil {
				return fmt.Errorf("load bytes %q: %w", req.item.Key, err)
			}
			continue
		}

		if err := r.readTensor(section, req.item, sink); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileReader) readTensor(section *io.SectionReader, item plan.ReadItem, sink plan.LoadSink) error {
	tensor, err := encoding.DecodeTensor(section)
	if err != nil {
		return fmt.Errorf("decode %q: %w", item.Key, err)
	}

	offsets, lengths := item.Offsets, item.Lengths
	if offsets == nil && lengths == nil {
		// Whole-item read.
		offsets = make([]int64, len(tensor.Meta.Shape))
		lengths = tensor.Meta.Shape
	}
	region, err := tensor.Narrow(offsets, lengths)
	if err != nil {
		return fmt.Errorf("narrow %q: %w", item.Key, err)
	}

	dst, err := sink.ResolveDestination(item)
	if err != nil {
		return fmt.Errorf("resolve destination %q: %w", item.Key, err)
	}
	if !dst.Meta.Shape.Equal(region.Meta.Shape) || dst.Meta.DType != region.Meta.DType {
		return &SizeMismatchError{Key: item.Key, Want: dst.Meta.Shape, Got: region.Meta.Shape}
	}
	if int64(len(dst.Data)) != region.Meta.ByteSize() {
		return fmt.Errorf("item %q: destination buffer is %d bytes, region needs %d",
			item.Key, len(dst.Data), region.Meta.ByteSize())
	}

	copy(dst.Data, region.Data)
	if err := sink.CommitPayload(item, dst); err != nil {
		return fmt.Errorf("commit %q: %w", item.Key, err)
	}
	return nil
}
