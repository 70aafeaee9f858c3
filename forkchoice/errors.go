package forkchoice

import "github.com/pkg/errors"

// ErrMalformedView indicates a structurally inconsistent snapshot: a block
// referencing a missing parent, a vote referencing an absent block, or an
// empty block set. Such snapshots are never silently repaired.
var ErrMalformedView = errors.New("malformed fork choice snapshot")

// ErrUnknownBlock is returned when a queried root is not part of the view.
var ErrUnknownBlock = errors.New("unknown block root")
