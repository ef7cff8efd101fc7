package storage

import (
	"errors"
	"fmt"

	"github.com/dreamware/strata/internal/plan"
)

// ErrDirNotEmpty is returned when the checkpoint destination already
// contains files. Checkpoints never overwrite existing data.
var ErrDirNotEmpty = errors.New("checkpoint directory is not empty")

// ErrNoMetadata is returned when a checkpoint directory holds no committed
// metadata file, which means no checkpoint completed there.
var ErrNoMetadata = errors.New("checkpoint metadata not found")

// ErrUnknownKey is returned when a read plan references an identity the
// storage index does not hold.
var ErrUnknownKey = errors.New("item not present in storage index")

// DuplicateKeyError reports two shard results claiming the same item
// identity. Identities are globally unique per checkpoint, so this always
// indicates a planning bug upstream.
type DuplicateKeyError struct {
	Key string // The identity claimed twice
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate item identity %q across shard results", e.Key)
}

// SizeMismatchError reports a decoded payload whose shape disagrees with
// the destination the sink resolved for it.
type SizeMismatchError struct {
	Key  string     // The item being read
	Want plan.Shape // Shape the destination expects
	Got  plan.Shape // Shape the narrowed payload has
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("item %q: destination expects shape %v, payload region is %v",
		e.Key, e.Want, e.Got)
}
