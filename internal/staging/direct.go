package staging

import (
	"fmt"

	"github.com/dreamware/strata/internal/plan"
)

// Direct stages payloads one at a time, fully synchronously. It is the
// fallback strategy for host-resident sources, where there is no transfer
// latency worth hiding.
type Direct struct {
	resolve ResolveFunc
	items   []plan.WriteItem
	started bool
	drained bool
}

// NewDirect returns a serial stager resolving payloads through resolve.
func NewDirect(resolve ResolveFunc) *Direct {
	return &Direct{resolve: resolve}
}

// Add registers an item. The size hint is unused by the serial strategy.
func (d *Direct) Add(item plan.WriteItem, _ int64) error {
	if d.started {
		return ErrStarted
	}
	d.items = append(d.items, item)
	return nil
}

// Start begins staging. The serial strategy does no up-front work.
func (d *Direct) Start() error {
	d.started = true
	return nil
}

// Drain resolves and yields each item in insertion order. Padded or
// device-resident payloads are cloned so the consumer owns a minimal,
// host-resident buffer.
func (d *Direct) Drain(fn func(Staged) error) error {
	if d.drained {
		return ErrDrained
	}
	d.started = true
	d.drained = true

	for _, item := range d.items {
		src, err := d.resolve(item)
		if err != nil {
			return fmt.Errorf("resolve %q: %w", item.Key, err)
		}
		data := src.Data
		if src.Padded || src.OnDevice {
			data = append([]byte(nil), src.Data...)
		}
		if err := fn(Staged{Item: item, Data: data}); err != nil {
			return err
		}
	}
	return nil
}
