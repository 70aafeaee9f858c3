// Package snapshot defines the immutable fork-choice observation records
// produced by the collector and consumed by the confirmation analyzer.
package snapshot

import (
	"encoding/json"

	types "github.com/forkwatchlabs/forkwatch/consensus-types/primitives"
	"github.com/pkg/errors"
)

// Checkpoint is an (epoch, block root) pair marking an epoch boundary.
type Checkpoint struct {
	Epoch types.Epoch `json:"epoch"`
	Root  types.Root  `json:"root"`
}

// BlockNode is one block observed in the node's fork-choice store. Weight is
// the accumulated LMD support of the block's subtree as reported by the node,
// proposer boost included.
type BlockNode struct {
	Slot       types.Slot `json:"slot"`
	Root       types.Root `json:"block_root"`
	ParentRoot types.Root `json:"parent_root"`
	Weight     types.Gwei `json:"weight"`
}

// Vote is a single validator's latest head vote. Snapshots collected from a
// live node carry aggregate block weights instead of individual votes; votes
// appear in synthetic scenarios and tests, where weights are derived from them
// under the constant-balance model.
type Vote struct {
	ValidatorIndex types.ValidatorIndex `json:"validator_index"`
	Slot           types.Slot           `json:"slot"`
	HeadRoot       types.Root           `json:"head_root"`
}

// Snapshot is one polling instant's view of the chain: the fork-choice block
// set, checkpoint lineage, head, and the committee size used for weight
// accounting. Snapshots are immutable once built; a new poll produces a new
// snapshot rather than mutating a prior one.
type Snapshot struct {
	Slot                types.Slot  `json:"current_slot"`
	TimeInSlot          uint64      `json:"current_time_in_slot"`
	HeadRoot            types.Root  `json:"head_root"`
	JustifiedCheckpoint Checkpoint  `json:"justified_checkpoint"`
	FinalizedCheckpoint Checkpoint  `json:"finalized_checkpoint"`
	CommitteeSize       uint64      `json:"committee_size"`
	Blocks              []BlockNode `json:"blocks"`
	Votes               []Vote      `json:"votes,omitempty"`
}

// Marshal encodes the snapshot to its canonical JSON form.
func (s *Snapshot) Marshal() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal snapshot")
	}
	return b, nil
}

// Unmarshal decodes a snapshot from its JSON form.
func Unmarshal(data []byte) (*Snapshot, error) {
	s := &Snapshot{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, errors.Wrap(err, "could not unmarshal snapshot")
	}
	return s, nil
}
