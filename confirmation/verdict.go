package confirmation

import (
	types "github.com/forkwatchlabs/forkwatch/consensus-types/primitives"
)

// Verdict is the outcome of evaluating one candidate block against one
// snapshot under fixed thresholds. Verdicts are append-only outputs and are
// never mutated after the analyzer records them.
//
// Margin is the distance of the binding safety inequality from its boundary,
// in Gwei: strictly positive exactly when the block is confirmed. Deficit is
// the additional committed weight that would flip a negative verdict.
type Verdict struct {
	Root        types.Root `json:"root"`
	Slot        types.Slot `json:"slot"`
	EvaluatedAt types.Slot `json:"evaluated_at"`
	Thresholds  Thresholds `json:"thresholds"`
	Confirmed   bool       `json:"confirmed"`
	Margin      int64      `json:"margin_gwei"`
	Deficit     types.Gwei `json:"deficit_gwei,omitempty"`
	ConfirmedAt types.Slot `json:"confirmed_at,omitempty"`
}

// Anomaly records a previously confirmed block that later stopped being an
// ancestor of the canonical head. It is a first-class output, not an error:
// it is either a counterexample to the safety claim or evidence that the
// threshold assumptions were violated on the observed network.
type Anomaly struct {
	Root        types.Root `json:"root"`
	Slot        types.Slot `json:"slot"`
	ConfirmedAt types.Slot `json:"confirmed_at"`
	ObservedAt  types.Slot `json:"observed_at"`
}
