package plan

import "fmt"

// DType identifies the element type of a tensor payload.
// The encoding of a tensor frame records the DType so that readers can
// reconstruct payloads without out-of-band schema information.
type DType uint8

const (
	// Float32 is a 4-byte IEEE 754 float
	Float32 DType = iota
	// Float64 is an 8-byte IEEE 754 float
	Float64
	// Float16 is a 2-byte IEEE 754 half-precision float
	Float16
	// BFloat16 is a 2-byte brain floating point value
	BFloat16
	// Int64 is an 8-byte signed integer
	Int64
	// Int32 is a 4-byte signed integer
	Int32
	// Int16 is a 2-byte signed integer
	Int16
	// Int8 is a 1-byte signed integer
	Int8
	// Uint8 is a 1-byte unsigned integer
	Uint8
	// Bool is a 1-byte boolean
	Bool
)

// dtypeSizes maps each DType to its element size in bytes
var dtypeSizes = [...]int64{
	Float32:  4,
	Float64:  8,
	Float16:  2,
	BFloat16: 2,
	Int64:    8,
	Int32:    4,
	Int16:    2,
	Int8:     1,
	Uint8:    1,
	Bool:     1,
}

var dtypeNames = [...]string{
	Float32:  "float32",
	Float64:  "float64",
	Float16:  "float16",
	BFloat16: "bfloat16",
	Int64:    "int64",
	Int32:    "int32",
	Int16:    "int16",
	Int8:     "int8",
	Uint8:    "uint8",
	Bool:     "bool",
}

// Valid reports whether d is a known element type.
func (d DType) Valid() bool {
	return int(d) < len(dtypeSizes)
}

// Size returns the element size in bytes.
func (d DType) Size() int64 {
	if !d.Valid() {
		return 0
	}
	return dtypeSizes[d]
}

// String returns the canonical lowercase name of the element type.
func (d DType) String() string {
	if !d.Valid() {
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
	return dtypeNames[d]
}

// Shape is the dimension vector of a tensor payload.
type Shape []int64

// Numel returns the number of elements a shape describes.
// A zero-rank shape describes a scalar and has one element.
func (s Shape) Numel() int64 {
	n := int64(1)
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether two shapes have identical rank and dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i, d := range s {
		if d != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the shape.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// TensorMeta describes the logical layout of one tensor payload:
// its dimensions and element type. For region items the shape describes
// the region being written, not the full tensor it belongs to.
type TensorMeta struct {
	Shape Shape // Dimension vector of the payload
	DType DType // Element type of the payload
}

// ByteSize returns the payload size in bytes implied by the metadata.
func (m TensorMeta) ByteSize() int64 {
	return m.Shape.Numel() * m.DType.Size()
}

// ItemKind distinguishes the payload classes a checkpoint can hold.
type ItemKind uint8

const (
	// ByteIO is an opaque byte blob serialized as a raw copy
	ByteIO ItemKind = iota
	// Tensor is a complete tensor payload
	Tensor
	// TensorShard is a sub-region of a tensor owned by one writer
	TensorShard
)

// String returns a short name for the item kind.
func (k ItemKind) String() string {
	switch k {
	case ByteIO:
		return "bytes"
	case Tensor:
		return "tensor"
	case TensorShard:
		return "tensor-shard"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsTensor reports whether the kind carries a tensor payload.
func (k ItemKind) IsTensor() bool {
	return k == Tensor || k == TensorShard
}

// WriteItem describes one payload to persist. Items are supplied by the
// planning layer and are immutable; the engine never mutates them.
type WriteItem struct {
	Key    string      // Globally unique item identity
	Kind   ItemKind    // Payload class
	Tensor *TensorMeta // Layout for tensor kinds; nil for ByteIO
}

// ByteSize returns the serialized payload size implied by the item's
// metadata. Byte blobs have no declared size (their length is only known
// once resolved) and report zero.
func (w WriteItem) ByteSize() int64 {
	if w.Tensor == nil {
		return 0
	}
	return w.Tensor.ByteSize()
}

// ReadItem describes one payload, or sub-region of one, to reconstruct.
// Offsets and Lengths select a region of the stored tensor; for whole-item
// reads they cover the full stored shape. Both are ignored for byte blobs.
type ReadItem struct {
	Key     string   // Identity of a previously written item
	Kind    ItemKind // Expected payload class, must match the write
	Offsets []int64  // Per-dimension start of the requested region
	Lengths []int64  // Per-dimension extent of the requested region
}

// SavePlan is the scope of one checkpoint write: the items to persist and
// the shard file prefix assigned to this writer by global planning.
type SavePlan struct {
	Prefix string      // Shard filename prefix, unique per writer
	Items  []WriteItem // Items this writer persists
}

// LoadPlan is the scope of one checkpoint read.
type LoadPlan struct {
	Items []ReadItem // Items to reconstruct
}

// Locator identifies the serialized bytes of exactly one item: which shard
// file holds it and the byte range within that file. Ranges of distinct
// locators within one file never overlap.
type Locator struct {
	Path   string // Shard file name relative to the checkpoint directory
	Offset int64  // Byte offset of the payload within the file
	Length int64  // Byte length of the payload
}

// WriteResult reports the outcome of persisting one item.
type WriteResult struct {
	Key         string   // Item identity
	Kind        ItemKind // Payload class that was written
	SizeInBytes int64    // Serialized length, including framing
	Locator     Locator  // Where the payload landed
}
