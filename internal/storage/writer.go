package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/strata/internal/bucket"
	"github.com/dreamware/strata/internal/encoding"
	"github.com/dreamware/strata/internal/plan"
)

// FileWriter persists checkpoints to a directory: one shard file per item
// group plus a metadata file committed atomically once every shard write
// has succeeded.
type FileWriter struct {
	opts Options
	log  zerolog.Logger
}

// NewFileWriter returns a writer targeting opts.Dir. Pass zerolog.Nop()
// when no logging is wanted.
func NewFileWriter(opts Options, log zerolog.Logger) (*FileWriter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &FileWriter{opts: opts, log: log.With().Str("dir", opts.Dir).Logger()}, nil
}

// PrepareLocalPlan creates the destination directory if absent and rejects
// non-empty destinations: checkpoints never overwrite existing data.
func (w *FileWriter) PrepareLocalPlan(p plan.SavePlan) (plan.SavePlan, error) {
	if err := os.MkdirAll(w.opts.Dir, 0o755); err != nil {
		return plan.SavePlan{}, fmt.Errorf("create checkpoint directory: %w", err)
	}
	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		return plan.SavePlan{}, fmt.Errorf("inspect checkpoint directory: %w", err)
	}
	if len(entries) > 0 {
		return plan.SavePlan{}, fmt.Errorf("%s: %w", w.opts.Dir, ErrDirNotEmpty)
	}
	return p, nil
}

// PrepareGlobalPlans stamps each participant's plan with a shard file
// prefix derived from its position, keeping concurrent writers' file names
// disjoint for the lifetime of the checkpoint.
func (w *FileWriter) PrepareGlobalPlans(plans []plan.SavePlan) ([]plan.SavePlan, error) {
	out := make([]plan.SavePlan, len(plans))
	for i, p := range plans {
		p.Prefix = fmt.Sprintf("__%d_", i)
		out[i] = p
	}
	return out, nil
}

// shardJob is one unit of pool work: a bucket of items bound to a shard
// file no other worker touches.
type shardJob struct {
	path  string
	key   string
	items []plan.WriteItem
}

// Write persists every item of p, resolving payloads through src. Work is
// spread over ThreadCount workers pulling buckets from a shared queue;
// each bucket maps to exactly one shard file, so workers share nothing but
// the queues. Any bucket failure fails the whole write.
func (w *FileWriter) Write(ctx context.Context, p plan.SavePlan, src plan.SaveSource) *PendingWrite {
	pw := &PendingWrite{done: make(chan struct{})}
	go func() {
		defer close(pw.done)
		pw.results, pw.err = w.write(ctx, p, src)
	}()
	return pw
}

func (w *FileWriter) write(ctx context.Context, p plan.SavePlan, src plan.SaveSource) ([]plan.WriteResult, error) {
	start := time.Now()

	seq := 0
	nextFile := func() string {
		name := fmt.Sprintf("%s%d%s", p.Prefix, seq, ShardSuffix)
		seq++
		return name
	}

	var jobs []shardJob
	if w.opts.SingleFilePerGroup {
		for _, b := range bucket.Split(w.opts.ThreadCount, p.Items) {
			if len(b) == 0 {
				continue
			}
			key := nextFile()
			jobs = append(jobs, shardJob{path: filepath.Join(w.opts.Dir, key), key: key, items: b})
		}
	} else {
		for _, it := range p.Items {
			key := nextFile()
			jobs = append(jobs, shardJob{path: filepath.Join(w.opts.Dir, key), key: key, items: []plan.WriteItem{it}})
		}
	}

	queue := make(chan shardJob, len(jobs))
	for _, job := range jobs {
		queue <- job
	}
	close(queue)

	resultCh := make(chan []plan.WriteResult, len(jobs))
	workers := w.opts.ThreadCount
	if workers > len(jobs) {
		workers = len(jobs)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for job := range queue {
				if err := ctx.Err(); err != nil {
					return err
				}
				res, err := writeShard(job.path, job.key, job.items, src, w.opts)
				if err != nil {
					return fmt.Errorf("shard %s: %w", job.key, err)
				}
				w.log.Debug().
					Str("shard", job.key).
					Int("items", len(res)).
					Msg("shard written")
				resultCh <- res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(resultCh)

	var results []plan.WriteResult
	var bytes int64
	for rs := range resultCh {
		for _, r := range rs {
			bytes += r.SizeInBytes
		}
		results = append(results, rs...)
	}

	w.log.Info().
		Int("items", len(results)).
		Int("shards", len(jobs)).
		Str("bytes", humanize.Bytes(uint64(bytes))).
		Dur("elapsed", time.Since(start)).
		Msg("checkpoint data written")
	return results, nil
}

// Finish merges results into md's storage index and publishes md with a
// two-phase commit: stage to a temporary sibling, optionally sync, then
// rename over the canonical name. Readers see either the previous complete
// metadata or the new one, never a torn file.
func (w *FileWriter) Finish(md *encoding.Metadata, results [][]plan.WriteResult) error {
	index, err := BuildIndex(results)
	if err != nil {
		return err
	}
	md.Index = index
	if md.CheckpointID == "" {
		md.CheckpointID = uuid.NewString()
	}
	if md.CreatedAt.IsZero() {
		md.CreatedAt = time.Now().UTC()
	}

	tmp := filepath.Join(w.opts.Dir, metadataTemp)
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("stage metadata: %w", err)
	}
	if err := encoding.EncodeMetadata(f, md); err != nil {
		f.Close()
		return err
	}
	if w.opts.SyncFiles {
		if err := f.Sync(); err != nil {
			f.Close()
			return fmt.Errorf("sync metadata: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close metadata: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(w.opts.Dir, MetadataFile)); err != nil {
		return fmt.Errorf("commit metadata: %w", err)
	}

	w.log.Info().
		Str("checkpoint", md.CheckpointID).
		Int("entries", len(md.Index)).
		Msg("metadata committed")
	return nil
}
