package encoding

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"

	"github.com/dreamware/strata/internal/plan"
)

// Frame layout, little-endian throughout:
//
//	magic     [4]byte  "STF1"
//	version   uint16
//	dtype     uint8
//	rank      uint8
//	dims      rank × uint64
//	length    uint64   payload bytes
//	payload   length bytes
//	checksum  uint64   xxhash64 of payload
var tensorMagic = [4]byte{'S', 'T', 'F', '1'}

// TensorFrameVersion is the frame layout version written by this build.
const TensorFrameVersion uint16 = 1

// maxRank bounds the dimension count a frame may declare, guarding decode
// against garbage headers.
const maxRank = 64

var (
	// ErrBadMagic is returned when decoded bytes are not a tensor frame.
	ErrBadMagic = errors.New("not a tensor frame: bad magic")
	// ErrVersion is returned for frame versions this build cannot read.
	ErrVersion = errors.New("unsupported frame version")
	// ErrChecksum is returned when a payload fails integrity verification.
	ErrChecksum = errors.New("payload checksum mismatch")
)

// Tensor is a decoded tensor payload: its layout plus the raw bytes in
// row-major order.
type Tensor struct {
	Meta plan.TensorMeta
	Data []byte
}

// EncodeTensor writes one self-describing tensor frame to w and returns
// the number of bytes written. data must match the byte size implied by
// meta exactly.
func EncodeTensor(w io.Writer, meta plan.TensorMeta, data []byte) (int64, error) {
	if !meta.DType.Valid() {
		return 0, fmt.Errorf("encode tensor: invalid dtype %d", uint8(meta.DType))
	}
	if want := meta.ByteSize(); int64(len(data)) != want {
		return 0, fmt.Errorf("encode tensor: payload is %d bytes, layout %v %s implies %d",
			len(data), meta.Shape, meta.DType, want)
	}
	if len(meta.Shape) > maxRank {
		return 0, fmt.Errorf("encode tensor: rank %d exceeds %d", len(meta.Shape), maxRank)
	}

	header := make([]byte, 0, 8+8*len(meta.Shape)+8)
	header = append(header, tensorMagic[:]...)
	header = binary.LittleEndian.AppendUint16(header, TensorFrameVersion)
	header = append(header, byte(meta.DType), byte(len(meta.Shape)))
	for _, d := range meta.Shape {
		header = binary.LittleEndian.AppendUint64(header, uint64(d))
	}
	header = binary.LittleEndian.AppendUint64(header, uint64(len(data)))

	var sum [8]byte
	binary.LittleEndian.PutUint64(sum[:], xxhash.Sum64(data))

	var n int64
	for _, chunk := range [][]byte{header, data, sum[:]} {
		nw, err := writeFull(w, chunk)
		n += nw
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// DecodeTensor reads one tensor frame from r, verifying magic, version and
// payload checksum.
func DecodeTensor(r io.Reader) (Tensor, error) {
	var head [8]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Tensor{}, fmt.Errorf("decode tensor header: %w", err)
	}
	if [4]byte(head[0:4]) != tensorMagic {
		return Tensor{}, ErrBadMagic
	}
	if v := binary.LittleEndian.Uint16(head[4:6]); v != TensorFrameVersion {
		return Tensor{}, fmt.Errorf("%w: %d", ErrVersion, v)
	}
	dtype := plan.DType(head[6])
	if !dtype.Valid() {
		return Tensor{}, fmt.Errorf("decode tensor: invalid dtype %d", head[6])
	}
	rank := int(head[7])
	if rank > maxRank {
		return Tensor{}, fmt.Errorf("decode tensor: rank %d exceeds %d", rank, maxRank)
	}

	tail := make([]byte, 8*rank+8)
	if _, err := io.ReadFull(r, tail); err != nil {
		return Tensor{}, fmt.Errorf("decode tensor dims: %w", err)
	}
	shape := make(plan.Shape, rank)
	for i := range shape {
		shape[i] = int64(binary.LittleEndian.Uint64(tail[8*i:]))
	}
	meta := plan.TensorMeta{Shape: shape, DType: dtype}

	length := binary.LittleEndian.Uint64(tail[8*rank:])
	if int64(length) != meta.ByteSize() {
		return Tensor{}, fmt.Errorf("decode tensor: payload length %d disagrees with layout %v %s",
			length, shape, dtype)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return Tensor{}, fmt.Errorf("decode tensor payload: %w", err)
	}
	var sum [8]byte
	if _, err := io.ReadFull(r, sum[:]); err != nil {
		return Tensor{}, fmt.Errorf("decode tensor checksum: %w", err)
	}
	if binary.LittleEndian.Uint64(sum[:]) != xxhash.Sum64(data) {
		return Tensor{}, ErrChecksum
	}

	return Tensor{Meta: meta, Data: data}, nil
}

// Narrow returns the sub-region of t selected by per-dimension offsets and
// lengths, copied into a fresh contiguous buffer. The region must lie
// inside the tensor's shape.
func (t Tensor) Narrow(offsets, lengths []int64) (Tensor, error) {
	shape := t.Meta.Shape
	rank := len(shape)
	if len(offsets) != rank || len(lengths) != rank {
		return Tensor{}, fmt.Errorf("narrow: region rank %d/%d does not match tensor rank %d",
			len(offsets), len(lengths), rank)
	}
	full := true
	for i := range shape {
		if offsets[i] < 0 || lengths[i] < 0 || offsets[i]+lengths[i] > shape[i] {
			return Tensor{}, fmt.Errorf("narrow: region [%d,%d) outside dimension %d of size %d",
				offsets[i], offsets[i]+lengths[i], i, shape[i])
		}
		if offsets[i] != 0 || lengths[i] != shape[i] {
			full = false
		}
	}
	if full {
		return t, nil
	}

	out := Tensor{
		Meta: plan.TensorMeta{Shape: plan.Shape(lengths).Clone(), DType: t.Meta.DType},
	}
	elem := t.Meta.DType.Size()
	out.Data = make([]byte, out.Meta.ByteSize())
	if out.Meta.Shape.Numel() == 0 {
		return out, nil
	}

	// Row-major element strides of the source tensor.
	strides := make([]int64, rank)
	stride := int64(1)
	for i := rank - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}

	// Copy one innermost contiguous run per outer index tuple.
	run := lengths[rank-1] * elem
	idx := make([]int64, rank-1)
	dst := int64(0)
	for {
		src := offsets[rank-1]
		for d := 0; d < rank-1; d++ {
			src += (offsets[d] + idx[d]) * strides[d]
		}
		copy(out.Data[dst:dst+run], t.Data[src*elem:src*elem+run])
		dst += run

		d := rank - 2
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < lengths[d] {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			break
		}
	}
	return out, nil
}

// writeFull writes all of p to w, reporting the bytes written.
func writeFull(w io.Writer, p []byte) (int64, error) {
	n, err := w.Write(p)
	if err != nil {
		return int64(n), fmt.Errorf("write frame: %w", err)
	}
	return int64(n), nil
}
