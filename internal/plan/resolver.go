package plan

// Source is the resolved payload of one write item as handed over by the
// planning layer. Data may alias memory the resolver still owns; the
// staging pipeline copies it to an exclusively owned buffer before the
// shard writer serializes it, unless the flags say a copy is unnecessary.
type Source struct {
	// Data is the logical payload. It may alias a larger backing
	// allocation (see Padded) or memory that is expensive to touch
	// synchronously (see OnDevice).
	Data []byte

	// Padded marks payloads whose backing storage is larger than the
	// logical data. Staging clones them so padding never reaches disk.
	Padded bool

	// OnDevice marks payloads resident on an accelerator. Staging moves
	// them host-side through an asynchronous transfer stream when the
	// overlapped strategy is active.
	OnDevice bool
}

// SaveSource resolves write items to their payload bytes. Supplied by the
// planning layer; the engine treats payloads as opaque buffers.
type SaveSource interface {
	// ResolveSource returns the payload for item. Called at most once
	// per item per checkpoint write.
	ResolveSource(item WriteItem) (Source, error)
}

// Destination is a mutable buffer a read item's payload is reconstructed
// into. Meta declares the shape the caller expects; reads fail when the
// narrowed payload disagrees with it.
type Destination struct {
	Data []byte     // Buffer the payload region is copied into
	Meta TensorMeta // Expected layout of the region
}

// LoadSink receives reconstructed payloads during a checkpoint read.
// Supplied by the planning layer.
type LoadSink interface {
	// LoadBytes delivers the raw payload of a ByteIO item. The slice is
	// owned by the sink after the call returns.
	LoadBytes(item ReadItem, data []byte) error

	// ResolveDestination returns the buffer the requested region of a
	// tensor item must be copied into.
	ResolveDestination(item ReadItem) (Destination, error)

	// CommitPayload signals that dst holds the complete requested
	// region for item.
	CommitPayload(item ReadItem, dst Destination) error
}
