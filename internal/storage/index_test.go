package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/strata/internal/encoding"
	"github.com/dreamware/strata/internal/plan"
)

func result(key, path string, offset, length int64) plan.WriteResult {
	return plan.WriteResult{
		Key:         key,
		Kind:        plan.Tensor,
		SizeInBytes: length,
		Locator:     plan.Locator{Path: path, Offset: offset, Length: length},
	}
}

// TestBuildIndexMerges verifies per-shard result lists merge into one map
// covering every identity.
func TestBuildIndexMerges(t *testing.T) {
	results := [][]plan.WriteResult{
		{result("a", "__0_0.shard", 0, 10), result("b", "__0_0.shard", 10, 20)},
		{result("c", "__0_1.shard", 0, 5)},
	}

	index, err := BuildIndex(results)
	require.NoError(t, err)

	require.Len(t, index, 3)
	assert.Equal(t, int64(10), index["b"].Locator.Offset)
	assert.Equal(t, "__0_1.shard", index["c"].Locator.Path)
}

// TestBuildIndexDuplicate verifies identity collisions are caught even
// across different shard files.
func TestBuildIndexDuplicate(t *testing.T) {
	results := [][]plan.WriteResult{
		{result("a", "__0_0.shard", 0, 10)},
		{result("a", "__0_1.shard", 0, 10)},
	}

	_, err := BuildIndex(results)

	var dke *DuplicateKeyError
	require.ErrorAs(t, err, &dke)
	assert.Equal(t, "a", dke.Key)
}

// TestCheckOverlap exercises the locator invariants.
func TestCheckOverlap(t *testing.T) {
	sizes := map[string]int64{"f.shard": 100}

	t.Run("valid adjacent ranges", func(t *testing.T) {
		index := map[string]encoding.Entry{
			"a": {Locator: plan.Locator{Path: "f.shard", Offset: 0, Length: 40}},
			"b": {Locator: plan.Locator{Path: "f.shard", Offset: 40, Length: 60}},
		}
		assert.NoError(t, CheckOverlap(index, sizes))
	})

	t.Run("overlapping ranges", func(t *testing.T) {
		index := map[string]encoding.Entry{
			"a": {Locator: plan.Locator{Path: "f.shard", Offset: 0, Length: 50}},
			"b": {Locator: plan.Locator{Path: "f.shard", Offset: 49, Length: 10}},
		}
		assert.Error(t, CheckOverlap(index, sizes))
	})

	t.Run("range past end of file", func(t *testing.T) {
		index := map[string]encoding.Entry{
			"a": {Locator: plan.Locator{Path: "f.shard", Offset: 90, Length: 20}},
		}
		assert.Error(t, CheckOverlap(index, sizes))
	})

	t.Run("missing shard", func(t *testing.T) {
		index := map[string]encoding.Entry{
			"a": {Locator: plan.Locator{Path: "ghost.shard", Offset: 0, Length: 1}},
		}
		assert.Error(t, CheckOverlap(index, sizes))
	})
}
