package staging

import (
	"fmt"

	"github.com/dreamware/strata/internal/plan"
	"golang.org/x/exp/slices"
)

// DefaultCopyAhead is the in-flight transfer budget used when none is
// configured: enough to hide transfer latency without pinning unbounded
// host memory per writer.
const DefaultCopyAhead = 10_000_000

// Overlapped stages payloads by pipelining source-to-host transfers with
// the consumer's own work. Transfers are issued asynchronously on a Stream
// up to an in-flight byte budget; while the consumer serializes payload k,
// the transfer of payload k+1 is already running.
//
// Items are staged smallest first so the pipeline fills quickly and the
// budget is exceeded by at most one item.
type Overlapped struct {
	resolve   ResolveFunc
	stream    *Stream
	copyAhead int64

	items    []sizedItem
	ready    []Staged // transfer issued, front entries complete after sync
	inFlight int64
	next     int
	started  bool
	drained  bool
}

type sizedItem struct {
	size int64
	item plan.WriteItem
}

// NewOverlapped returns a pipelined stager issuing transfers on stream.
// A copyAhead of zero or less falls back to DefaultCopyAhead; callers that
// want serial behavior should use Direct instead.
func NewOverlapped(resolve ResolveFunc, stream *Stream, copyAhead int64) *Overlapped {
	if copyAhead <= 0 {
		copyAhead = DefaultCopyAhead
	}
	return &Overlapped{resolve: resolve, stream: stream, copyAhead: copyAhead}
}

// Add registers an item with its payload size. Fails with ErrStarted once
// staging has begun.
func (o *Overlapped) Add(item plan.WriteItem, size int64) error {
	if o.started {
		return ErrStarted
	}
	o.items = append(o.items, sizedItem{size: size, item: item})
	return nil
}

// Start sorts registered items ascending by size and issues the first
// round of transfers. Idempotent.
func (o *Overlapped) Start() error {
	if o.started {
		return nil
	}
	o.started = true
	slices.SortStableFunc(o.items, func(a, b sizedItem) int {
		switch {
		case a.size < b.size:
			return -1
		case a.size > b.size:
			return 1
		default:
			return 0
		}
	})
	return o.refill()
}

// Drain yields every payload exactly once, interleaving transfer refills
// with consumption. A second call fails with ErrDrained.
func (o *Overlapped) Drain(fn func(Staged) error) error {
	if o.drained {
		return ErrDrained
	}
	o.drained = true
	if err := o.Start(); err != nil {
		return err
	}

	for o.next < len(o.items) {
		drained := o.drainOverBudget()
		if err := o.refill(); err != nil {
			return err
		}
		for _, st := range drained {
			if err := fn(st); err != nil {
				return err
			}
		}
	}

	// All transfers issued; one final sync flushes whatever remains.
	if len(o.ready) > 0 {
		o.stream.Synchronize()
	}
	for _, st := range o.ready {
		if err := fn(st); err != nil {
			return err
		}
	}
	o.ready = nil
	return nil
}

// drainOverBudget synchronizes the stream once the budget is exceeded and
// pops completed payloads from the front of the ready queue until the
// in-flight total is back under it.
func (o *Overlapped) drainOverBudget() []Staged {
	var drained []Staged
	if o.inFlight >= o.copyAhead {
		o.stream.Synchronize()
	}
	for o.inFlight >= o.copyAhead {
		st := o.ready[0]
		o.ready = o.ready[1:]
		o.inFlight -= int64(len(st.Data))
		drained = append(drained, st)
	}
	return drained
}

// refill issues transfers for remaining items until the in-flight budget
// is reached.
func (o *Overlapped) refill() error {
	for o.next < len(o.items) && o.inFlight < o.copyAhead {
		item := o.items[o.next].item
		o.next++

		src, err := o.resolve(item)
		if err != nil {
			return fmt.Errorf("resolve %q: %w", item.Key, err)
		}

		var data []byte
		switch {
		case src.OnDevice:
			// Device payloads move host-side asynchronously; the copy
			// completes by the next Synchronize.
			dst := make([]byte, len(src.Data))
			from := src.Data
			o.stream.Submit(func() { copy(dst, from) })
			data = dst
		case src.Padded:
			data = append([]byte(nil), src.Data...)
		default:
			data = src.Data
		}

		o.ready = append(o.ready, Staged{Item: item, Data: data})
		o.inFlight += int64(len(data))
	}
	return nil
}
