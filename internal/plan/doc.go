// Package plan defines the data model shared between the checkpoint
// storage engine and the planning layer that drives it: write and read
// items, plans, storage locators, and the resolver/sink interfaces the
// planner supplies.
//
// # Overview
//
// The engine persists two payload classes: opaque byte blobs (ByteIO) and
// tensor payloads (Tensor, TensorShard). Tensor items carry a TensorMeta
// describing shape and element type; blobs are raw bytes with no declared
// layout. Item identities (WriteItem.Key) are opaque strings that must be
// globally unique within one checkpoint.
//
// # Collaborator boundary
//
// The engine never materializes payloads on its own. A SaveSource resolves
// items to byte buffers during writes, and a LoadSink receives
// reconstructed payloads during reads. Both are implemented by the
// planning layer; the engine treats payload contents as opaque.
//
// # Locators
//
// A Locator pins one item's serialized bytes to a (file, offset, length)
// triple. Locators written to the same shard file never overlap, and the
// union of a file's locator ranges never exceeds the file's size. The
// global key-to-locator mapping is the checkpoint's storage index,
// published atomically by the metadata commit.
package plan
