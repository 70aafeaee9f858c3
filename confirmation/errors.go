package confirmation

import "github.com/pkg/errors"

// ErrInapplicableCandidate is returned when a candidate block is not an
// ancestor of the current head. The rule is only defined for blocks on the
// canonical path; confirming an abandoned branch is meaningless.
var ErrInapplicableCandidate = errors.New("candidate is not on the canonical chain")

// ErrUnorderedSnapshot is returned when snapshots are fed to the analyzer in
// decreasing slot order. Out-of-order processing invalidates the anomaly
// detection guarantee, so the offending snapshot produces no verdicts.
var ErrUnorderedSnapshot = errors.New("snapshot slots are out of order")

// ErrInvalidThresholds is returned for threshold parameters outside their
// valid open intervals.
var ErrInvalidThresholds = errors.New("invalid confirmation thresholds")
