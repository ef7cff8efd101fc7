package staging

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/strata/internal/plan"
)

// testSource builds a resolver over fixed payloads keyed by item identity.
func testSource(payloads map[string][]byte, onDevice bool) ResolveFunc {
	return func(item plan.WriteItem) (plan.Source, error) {
		data, ok := payloads[item.Key]
		if !ok {
			return plan.Source{}, fmt.Errorf("unknown item %q", item.Key)
		}
		return plan.Source{Data: data, OnDevice: onDevice}, nil
	}
}

func itemOfSize(key string, n int) (plan.WriteItem, []byte) {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i + len(key))
	}
	item := plan.WriteItem{
		Key:    key,
		Kind:   plan.Tensor,
		Tensor: &plan.TensorMeta{Shape: plan.Shape{int64(n)}, DType: plan.Uint8},
	}
	return item, data
}

// drainAll collects every staged payload keyed by item identity.
func drainAll(t *testing.T, s Stager) map[string][]byte {
	t.Helper()
	out := make(map[string][]byte)
	err := s.Drain(func(st Staged) error {
		_, dup := out[st.Item.Key]
		require.False(t, dup, "item %s yielded twice", st.Item.Key)
		out[st.Item.Key] = st.Data
		return nil
	})
	require.NoError(t, err)
	return out
}

// TestStagerYieldsEveryItemOnce runs the shared contract over both
// strategies and a range of in-flight budgets, including budgets smaller
// than a single item and larger than the whole set.
func TestStagerYieldsEveryItemOnce(t *testing.T) {
	payloads := make(map[string][]byte)
	var items []plan.WriteItem
	for i, n := range []int{100, 1, 50, 200, 7, 7, 0, 33} {
		item, data := itemOfSize(fmt.Sprintf("item-%d", i), n)
		items = append(items, item)
		payloads[item.Key] = data
	}

	build := map[string]func(t *testing.T) Stager{
		"direct": func(t *testing.T) Stager {
			return NewDirect(testSource(payloads, false))
		},
		"overlapped/budget=1": func(t *testing.T) Stager {
			return newTestOverlapped(t, payloads, 1)
		},
		"overlapped/budget=64": func(t *testing.T) Stager {
			return newTestOverlapped(t, payloads, 64)
		},
		"overlapped/budget=1MB": func(t *testing.T) Stager {
			return newTestOverlapped(t, payloads, 1<<20)
		},
	}

	for name, mk := range build {
		t.Run(name, func(t *testing.T) {
			s := mk(t)
			for _, it := range items {
				require.NoError(t, s.Add(it, it.ByteSize()))
			}
			require.NoError(t, s.Start())

			got := drainAll(t, s)

			require.Len(t, got, len(items))
			for key, want := range payloads {
				assert.Equal(t, want, got[key], "payload for %s", key)
			}
		})
	}
}

func newTestOverlapped(t *testing.T, payloads map[string][]byte, budget int64) Stager {
	t.Helper()
	stream := NewStream()
	t.Cleanup(stream.Close)
	return NewOverlapped(testSource(payloads, true), stream, budget)
}

// TestAddAfterStartFails verifies the idle → started transition is one way.
func TestAddAfterStartFails(t *testing.T) {
	item, data := itemOfSize("a", 4)
	payloads := map[string][]byte{"a": data}

	t.Run("direct", func(t *testing.T) {
		s := NewDirect(testSource(payloads, false))
		require.NoError(t, s.Add(item, 4))
		require.NoError(t, s.Start())
		assert.ErrorIs(t, s.Add(item, 4), ErrStarted)
	})

	t.Run("overlapped", func(t *testing.T) {
		s := newTestOverlapped(t, payloads, 16)
		require.NoError(t, s.Add(item, 4))
		require.NoError(t, s.Start())
		assert.ErrorIs(t, s.Add(item, 4), ErrStarted)
	})
}

// TestStartIdempotent verifies repeated Start calls neither fail nor
// re-issue transfers.
func TestStartIdempotent(t *testing.T) {
	item, data := itemOfSize("a", 8)
	s := newTestOverlapped(t, map[string][]byte{"a": data}, 4)

	require.NoError(t, s.Add(item, 8))
	require.NoError(t, s.Start())
	require.NoError(t, s.Start())

	got := drainAll(t, s)
	assert.Equal(t, data, got["a"])
}

// TestDrainTwiceFails verifies the sequence is not restartable.
func TestDrainTwiceFails(t *testing.T) {
	s := NewDirect(testSource(nil, false))
	require.NoError(t, s.Drain(func(Staged) error { return nil }))
	assert.ErrorIs(t, s.Drain(func(Staged) error { return nil }), ErrDrained)
}

// TestDirectClonesPaddedSources verifies padded payloads are copied out of
// their oversized backing storage before being yielded.
func TestDirectClonesPaddedSources(t *testing.T) {
	backing := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	logical := backing[:4]

	s := NewDirect(func(plan.WriteItem) (plan.Source, error) {
		return plan.Source{Data: logical, Padded: true}, nil
	})
	item, _ := itemOfSize("padded", 4)
	require.NoError(t, s.Add(item, 4))

	var staged Staged
	require.NoError(t, s.Drain(func(st Staged) error {
		staged = st
		return nil
	}))

	require.Equal(t, []byte{1, 2, 3, 4}, staged.Data)
	// Mutating the backing storage must not reach the staged copy.
	backing[0] = 99
	assert.Equal(t, byte(1), staged.Data[0])
}

// TestOverlappedResolveError verifies resolver failures surface with the
// failing item's identity.
func TestOverlappedResolveError(t *testing.T) {
	wantErr := errors.New("source gone")
	stream := NewStream()
	defer stream.Close()

	s := NewOverlapped(func(plan.WriteItem) (plan.Source, error) {
		return plan.Source{}, wantErr
	}, stream, 16)
	item, _ := itemOfSize("missing", 4)
	require.NoError(t, s.Add(item, 4))

	err := s.Drain(func(Staged) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
	assert.Contains(t, err.Error(), "missing")
}

// TestStreamOrdering verifies jobs run in submission order and Synchronize
// observes all prior jobs.
func TestStreamOrdering(t *testing.T) {
	stream := NewStream()
	defer stream.Close()

	var order []int
	for i := 0; i < 100; i++ {
		i := i
		stream.Submit(func() { order = append(order, i) })
	}
	stream.Synchronize()

	require.Len(t, order, 100)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}
