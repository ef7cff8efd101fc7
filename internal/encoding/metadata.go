package encoding

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/slices"

	"github.com/dreamware/strata/internal/plan"
)

// Metadata file layout, little-endian:
//
//	magic        [4]byte  "STMD"
//	version      uint16
//	checkpointID string16
//	createdAt    int64    unix nanoseconds
//	app          bytes32  opaque planner payload
//	count        uint32
//	entries      count × { key string16, kind uint8,
//	                       path string16, offset uint64, length uint64 }
//	checksum     uint64   xxhash64 of everything above
//
// string16 and bytes32 are length-prefixed with uint16 / uint32.
var metadataMagic = [4]byte{'S', 'T', 'M', 'D'}

// MetadataVersion is the metadata layout version written by this build.
const MetadataVersion uint16 = 1

// Entry records where one item's payload lives and what class it is.
type Entry struct {
	Kind    plan.ItemKind // Payload class recorded at write time
	Locator plan.Locator  // Serialized location within the checkpoint
}

// Metadata is the global storage index of one checkpoint plus its
// checkpoint-level fields. It is built after every shard write succeeds
// and persisted exactly once per checkpoint.
type Metadata struct {
	CheckpointID string           // Unique ID assigned at commit time
	CreatedAt    time.Time        // Commit timestamp
	App          []byte           // Opaque payload owned by the planning layer
	Index        map[string]Entry // Item identity to storage entry
}

// EncodeMetadata writes md to w in the versioned binary layout.
func EncodeMetadata(w io.Writer, md *Metadata) error {
	if len(md.Index) > math.MaxUint32 {
		return fmt.Errorf("encode metadata: %d entries exceed format limit", len(md.Index))
	}

	buf := make([]byte, 0, 64+len(md.Index)*64)
	buf = append(buf, metadataMagic[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, MetadataVersion)
	var err error
	if buf, err = appendString16(buf, md.CheckpointID); err != nil {
		return fmt.Errorf("encode metadata: checkpoint id: %w", err)
	}
	buf = binary.LittleEndian.AppendUint64(buf, uint64(md.CreatedAt.UnixNano()))
	if len(md.App) > math.MaxUint32 {
		return fmt.Errorf("encode metadata: app payload of %d bytes exceeds format limit", len(md.App))
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(md.App)))
	buf = append(buf, md.App...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(md.Index)))

	// Deterministic output: identical indexes encode to identical bytes.
	keys := make([]string, 0, len(md.Index))
	for key := range md.Index {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		entry := md.Index[key]
		if buf, err = appendString16(buf, key); err != nil {
			return fmt.Errorf("encode metadata: key %q: %w", key, err)
		}
		buf = append(buf, byte(entry.Kind))
		if buf, err = appendString16(buf, entry.Locator.Path); err != nil {
			return fmt.Errorf("encode metadata: path for %q: %w", key, err)
		}
		buf = binary.LittleEndian.AppendUint64(buf, uint64(entry.Locator.Offset))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(entry.Locator.Length))
	}

	buf = binary.LittleEndian.AppendUint64(buf, xxhash.Sum64(buf))
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// DecodeMetadata reads a complete metadata file from r, verifying magic,
// version and checksum.
func DecodeMetadata(r io.Reader) (*Metadata, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	if len(raw) < len(metadataMagic)+2+8 {
		return nil, fmt.Errorf("metadata truncated: %d bytes", len(raw))
	}
	if [4]byte(raw[0:4]) != metadataMagic {
		return nil, ErrBadMagic
	}

	body, sum := raw[:len(raw)-8], raw[len(raw)-8:]
	if binary.LittleEndian.Uint64(sum) != xxhash.Sum64(body) {
		return nil, ErrChecksum
	}

	c := cursor{buf: body[4:]}
	if v := c.u16(); v != MetadataVersion {
		return nil, fmt.Errorf("%w: metadata version %d", ErrVersion, v)
	}

	md := &Metadata{
		CheckpointID: c.string16(),
		CreatedAt:    time.Unix(0, int64(c.u64())),
		App:          c.bytes32(),
	}
	count := c.u32()
	md.Index = make(map[string]Entry, count)
	for i := uint32(0); i < count; i++ {
		key := c.string16()
		entry := Entry{
			Kind: plan.ItemKind(c.u8()),
			Locator: plan.Locator{
				Path:   c.string16(),
				Offset: int64(c.u64()),
				Length: int64(c.u64()),
			},
		}
		if c.err == nil {
			md.Index[key] = entry
		}
	}
	if c.err != nil {
		return nil, fmt.Errorf("decode metadata: %w", c.err)
	}
	return md, nil
}

func appendString16(buf []byte, s string) ([]byte, error) {
	if len(s) > math.MaxUint16 {
		return buf, fmt.Errorf("string of %d bytes exceeds format limit", len(s))
	}
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...), nil
}

// cursor walks a decode buffer, latching the first out-of-bounds error.
type cursor struct {
	buf []byte
	off int
	err error
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if c.off+n > len(c.buf) {
		c.err = io.ErrUnexpectedEOF
		return nil
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b
}

func (c *cursor) u8() uint8 {
	b := c.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *cursor) u16() uint16 {
	b := c.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (c *cursor) u32() uint32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (c *cursor) u64() uint64 {
	b := c.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (c *cursor) string16() string {
	return string(c.take(int(c.u16())))
}

func (c *cursor) bytes32() []byte {
	b := c.take(int(c.u32()))
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
