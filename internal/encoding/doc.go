// Package encoding implements the two on-disk formats of a checkpoint:
// self-describing tensor frames inside shard files, and the versioned
// metadata file holding the global storage index.
//
// Both formats are explicit binary layouts rather than language-specific
// object serialization, so any reader that implements the documented byte
// layout can consume a checkpoint. Every payload carries an xxhash64
// checksum; decoders verify it and fail with ErrChecksum on corruption.
//
// Tensor frames are decodable without the metadata file: the frame header
// records shape and element type, which also lets readers narrow a decoded
// tensor to a requested sub-region (see Tensor.Narrow).
package encoding
