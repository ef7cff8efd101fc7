package staging

import (
	"errors"

	"github.com/dreamware/strata/internal/plan"
)

// ErrStarted is returned when items are added to a stager after staging
// has begun.
var ErrStarted = errors.New("staging already started: cannot add items")

// ErrDrained is returned when a stager's sequence is consumed twice.
// Staged buffers transfer ownership to the consumer, so the sequence is
// not restartable.
var ErrDrained = errors.New("staging sequence already drained")

// ResolveFunc resolves one write item to its source payload. It is the
// staging-facing view of plan.SaveSource.ResolveSource.
type ResolveFunc func(plan.WriteItem) (plan.Source, error)

// Staged is one host-resident payload ready to serialize. Data is owned
// exclusively by the consumer once yielded.
type Staged struct {
	Item plan.WriteItem // The item the payload belongs to
	Data []byte         // Host-resident payload bytes
}

// Stager turns registered write items into host-resident buffers ready to
// serialize. Implementations control the yield order; consumers must not
// assume insertion order. Every added item is yielded exactly once,
// whatever the strategy.
type Stager interface {
	// Add registers an item before staging starts. size is the item's
	// payload size in bytes and only influences scheduling. Fails with
	// ErrStarted once Start has been called.
	Add(item plan.WriteItem, size int64) error

	// Start begins staging. Idempotent.
	Start() error

	// Drain yields every staged payload to fn, one call per registered
	// item. The sequence is lazy and finite; payloads not yet staged are
	// produced while earlier ones are being consumed. Drain stops at the
	// first error from fn or from staging itself. A second call fails
	// with ErrDrained.
	Drain(fn func(Staged) error) error
}

// DeviceAware is an optional interface a plan.SaveSource implements to
// advertise that its payloads live on an accelerator and benefit from
// overlapped transfer.
type DeviceAware interface {
	DeviceBacked() bool
}

// Capable reports whether src advertises device-backed payloads.
func Capable(src plan.SaveSource) bool {
	da, ok := src.(DeviceAware)
	return ok && da.DeviceBacked()
}
