// Package storage implements the filesystem checkpoint engine: balanced
// shard files written by a worker pool, a global storage index committed
// atomically, and offset-based random-access reads.
//
// # Write path
//
//	plan ──► bucket.Split ──► work queue ──► shard writers (× threads)
//	                                              │
//	                              staging pipeline per writer
//	                                              │
//	                              one shard file per bucket
//	                                              │
//	         results ◄── result queue ◄───────────┘
//	            │
//	   BuildIndex + Finish ──► .metadata.tmp ──rename──► .metadata
//
// Each shard file is owned exclusively by the one worker writing it, so
// the only shared state between workers is the pair of queues. Workers
// report per-bucket success or failure; any failure fails the checkpoint
// before metadata is touched, so a reader never observes an index that
// references unwritten data.
//
// # Read path
//
// ReadMetadata loads the committed index. Read groups the plan's items by
// shard file, opens each file once, and slices the exact byte range of
// every item out of it. Tensor payloads are decoded from their
// self-describing frames and narrowed to the requested sub-region before
// they reach the caller's destination buffers.
//
// # Durability
//
// With SyncFiles enabled, shard files are fsynced before close and the
// metadata file before its rename, so a completed checkpoint survives a
// crash. With it disabled a crash mid-write can leave an inconsistent
// checkpoint; the metadata commit rename is the only guarantee retained.
//
// # Layout
//
// One checkpoint occupies one directory:
//
//	{prefix}{seq}.shard   serialized payloads, one file per bucket
//	.metadata             committed storage index
//
// prefix is injected per writing participant by PrepareGlobalPlans;
// seq increments per file generated by one writer.
package storage
