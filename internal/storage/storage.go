package storage

import (
	"context"

	"github.com/dreamware/strata/internal/encoding"
	"github.com/dreamware/strata/internal/plan"
)

const (
	// ShardSuffix terminates every shard file name.
	ShardSuffix = ".shard"
	// MetadataFile is the canonical metadata file name inside a
	// checkpoint directory.
	MetadataFile = ".metadata"
	// metadataTemp is the sibling the metadata is staged to before the
	// atomic rename.
	metadataTemp = MetadataFile + ".tmp"
)

// Writer persists one checkpoint's write plan. The concrete filesystem
// implementation is FileWriter; alternative backends satisfy the same
// interface.
type Writer interface {
	// PrepareLocalPlan readies this writer's backing storage for p,
	// creating the destination if needed. Returns the (possibly
	// adjusted) plan.
	PrepareLocalPlan(p plan.SavePlan) (plan.SavePlan, error)

	// PrepareGlobalPlans assigns each participant's plan a shard file
	// prefix unique across participants, so concurrent writers never
	// collide on a file name.
	PrepareGlobalPlans(plans []plan.SavePlan) ([]plan.SavePlan, error)

	// Write persists every item in p, resolving payloads through src.
	// The returned handle reports the per-item results when the write
	// completes.
	Write(ctx context.Context, p plan.SavePlan, src plan.SaveSource) *PendingWrite

	// Finish merges the per-shard results of one checkpoint into md's
	// storage index and commits md atomically. It must only be called
	// once every shard write has succeeded.
	Finish(md *encoding.Metadata, results [][]plan.WriteResult) error
}

// Reader reconstructs items from a previously committed checkpoint.
type Reader interface {
	// ReadMetadata loads the checkpoint's committed metadata. The result
	// is cached for subsequent reads.
	ReadMetadata() (*encoding.Metadata, error)

	// PrepareLocalPlan readies this reader for p.
	PrepareLocalPlan(p plan.LoadPlan) (plan.LoadPlan, error)

	// PrepareGlobalPlans adjusts the participants' read plans as a set.
	PrepareGlobalPlans(plans []plan.LoadPlan) ([]plan.LoadPlan, error)

	// Read satisfies every item in p, delivering payloads through sink.
	Read(ctx context.Context, p plan.LoadPlan, sink plan.LoadSink) *PendingRead
}

// PendingWrite is the completion handle of an in-flight checkpoint write.
type PendingWrite struct {
	done    chan struct{}
	results []plan.WriteResult
	err     error
}

// Wait blocks until the write completes and returns its per-item results.
func (p *PendingWrite) Wait() ([]plan.WriteResult, error) {
	<-p.done
	return p.results, p.err
}

// PendingRead is the completion handle of an in-flight checkpoint read.
type PendingRead struct {
	done chan struct{}
	err  error
}

// Wait blocks until the read completes.
func (p *PendingRead) Wait() error {
	<-p.done
	return p.err
}
