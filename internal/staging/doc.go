// Package staging moves checkpoint payloads from their source into
// host-resident buffers the shard writer can serialize, optionally
// overlapping the movement with the writer's own file I/O.
//
// # Strategies
//
// Two Stager implementations share one contract:
//
//	Direct:     resolve, copy, yield, one item at a time, synchronous.
//	Overlapped: issue asynchronous transfers ahead of consumption, bounded
//	            by an in-flight byte budget, so the transfer of the next
//	            payload hides behind the serialization of the current one.
//
// Correctness is strategy-independent: every added item is yielded exactly
// once regardless of budget or strategy; only latency differs.
//
// # State machine
//
// A stager moves idle → started → drained. Add is only legal while idle
// and fails with ErrStarted afterwards; Start is idempotent; Drain may run
// once and fails with ErrDrained on reuse, because yielded buffers hand
// ownership to the consumer.
//
// # Selection
//
// Strategy choice is a runtime capability decision, not a type hierarchy:
// sources advertising device residency through DeviceAware get the
// overlapped stager (see Capable); everything else stages directly.
package staging
