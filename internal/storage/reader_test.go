package storage

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/strata/internal/plan"
)

// memSink collects reconstructed payloads. dests declares the region
// layout the caller expects per item, the way a planner would size its
// destination tensors.
type memSink struct {
	dests     map[string]plan.TensorMeta
	blobs     map[string][]byte
	committed map[string][]byte
}

func newMemSink() *memSink {
	return &memSink{
		dests:     make(map[string]plan.TensorMeta),
		blobs:     make(map[string][]byte),
		committed: make(map[string][]byte),
	}
}

func (s *memSink) LoadBytes(item plan.ReadItem, data []byte) error {
	s.blobs[item.Key] = data
	return nil
}

func (s *memSink) ResolveDestination(item plan.ReadItem) (plan.Destination, error) {
	meta := s.dests[item.Key]
	return plan.Destination{Data: make([]byte, meta.ByteSize()), Meta: meta}, nil
}

func (s *memSink) CommitPayload(item plan.ReadItem, dst plan.Destination) error {
	s.committed[item.Key] = dst.Data
	return nil
}

// writeFixture persists a blob and a 10x10 byte matrix and returns the
// checkpoint directory.
func writeFixture(t *testing.T) (dir string, matrix []byte) {
	t.Helper()
	dir = t.TempDir() + "/ckpt"

	matrix = make([]byte, 100)
	for i := range matrix {
		matrix[i] = byte(i) // value row*10+col at [row][col]
	}

	items := []plan.WriteItem{
		blobWrite("state"),
		tensorWrite("matrix", plan.Shape{10, 10}, plan.Uint8),
	}
	src := &memSource{payloads: map[string][]byte{
		"state":  []byte("optimizer state bytes"),
		"matrix": matrix,
	}}

	opts := DefaultOptions(dir)
	opts.SyncFiles = false
	writeCheckpoint(t, opts, items, src)
	return dir, matrix
}

// TestReadRoundTrip verifies whole-item reads recover exactly the written
// bytes for both payload classes.
func TestReadRoundTrip(t *testing.T) {
	dir, matrix := writeFixture(t)

	r := NewFileReader(dir, zerolog.Nop())
	md, err := r.ReadMetadata()
	require.NoError(t, err)
	require.Len(t, md.Index, 2)

	sink := newMemSink()
	sink.dests["matrix"] = plan.TensorMeta{Shape: plan.Shape{10, 10}, DType: plan.Uint8}

	p := plan.LoadPlan{Items: []plan.ReadItem{
		{Key: "state", Kind: plan.ByteIO},
		{Key: "matrix", Kind: plan.Tensor},
	}}
	require.NoError(t, r.Read(context.Background(), p, sink).Wait())

	assert.Equal(t, []byte("optimizer state bytes"), sink.blobs["state"])
	assert.Equal(t, matrix, sink.committed["matrix"])
}

// TestReadSubRegion verifies narrowing: offsets [2,0], lengths [3,4] of a
// [10,10] tensor must match an independent slice of the original data.
func TestReadSubRegion(t *testing.T) {
	dir, _ := writeFixture(t)

	r := NewFileReader(dir, zerolog.Nop())
	sink := newMemSink()
	sink.dests["matrix"] = plan.TensorMeta{Shape: plan.Shape{3, 4}, DType: plan.Uint8}

	p := plan.LoadPlan{Items: []plan.ReadItem{{
		Key:     "matrix",
		Kind:    plan.Tensor,
		Offsets: []int64{2, 0},
		Lengths: []int64{3, 4},
	}}}
	require.NoError(t, r.Read(context.Background(), p, sink).Wait())

	var want []byte
	for row := 2; row < 5; row++ {
		for col := 0; col < 4; col++ {
			want = append(want, byte(row*10+col))
		}
	}
	assert.Equal(t, want, sink.committed["matrix"])
}

// TestReadSizeMismatch verifies a destination whose shape disagrees with
// the requested region fails with SizeMismatchError.
func TestReadSizeMismatch(t *testing.T) {
	dir, _ := writeFixture(t)

	r := NewFileReader(dir, zerolog.Nop())
	sink := newMemSink()
	sink.dests["matrix"] = plan.TensorMeta{Shape: plan.Shape{5, 5}, DType: plan.Uint8}

	p := plan.LoadPlan{Items: []plan.ReadItem{{Key: "matrix", Kind: plan.Tensor}}}
	err := r.Read(context.Background(), p, sink).Wait()

	var sme *SizeMismatchError
	require.ErrorAs(t, err, &sme)
	assert.Equal(t, "matrix", sme.Key)
}

// TestReadUnknownKey verifies plans referencing unwritten identities fail.
func TestReadUnknownKey(t *testing.T) {
	dir, _ := writeFixture(t)

	r := NewFileReader(dir, zerolog.Nop())
	p := plan.LoadPlan{Items: []plan.ReadItem{{Key: "ghost", Kind: plan.ByteIO}}}
	err := r.Read(context.Background(), p, newMemSink()).Wait()

	assert.ErrorIs(t, err, ErrUnknownKey)
}

// TestReadKindMismatch verifies requesting a tensor as bytes is rejected.
func TestReadKindMismatch(t *testing.T) {
	dir, _ := writeFixture(t)

	r := NewFileReader(dir, zerolog.Nop())
	p := plan.LoadPlan{Items: []plan.ReadItem{{Key: "matrix", Kind: plan.ByteIO}}}
	err := r.Read(context.Background(), p, newMemSink()).Wait()

	assert.Error(t, err)
}

// TestReadMetadataMissing verifies reading an uncommitted directory fails
// with ErrNoMetadata.
func TestReadMetadataMissing(t *testing.T) {
	r := NewFileReader(t.TempDir(), zerolog.Nop())
	_, err := r.ReadMetadata()
	assert.ErrorIs(t, err, ErrNoMetadata)
}
