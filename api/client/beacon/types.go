package beacon

import (
	types "github.com/forkwatchlabs/forkwatch/consensus-types/primitives"
	"github.com/forkwatchlabs/forkwatch/snapshot"
)

// ForkChoiceDump is the fork choice state reported by a node: its block tree
// with accumulated weights and its checkpoints.
type ForkChoiceDump struct {
	JustifiedCheckpoint snapshot.Checkpoint
	FinalizedCheckpoint snapshot.Checkpoint
	Blocks              []snapshot.BlockNode
}

type genesisResponse struct {
	Data struct {
		GenesisTime string `json:"genesis_time"`
	} `json:"data"`
}

type headHeaderResponse struct {
	Data struct {
		Root types.Root `json:"root"`
	} `json:"data"`
}

type checkpointJSON struct {
	Epoch types.Epoch `json:"epoch"`
	Root  types.Root  `json:"root"`
}

type forkChoiceNodeJSON struct {
	Slot       types.Slot `json:"slot"`
	BlockRoot  types.Root `json:"block_root"`
	ParentRoot types.Root `json:"parent_root"`
	Weight     types.Gwei `json:"weight"`
}

type forkChoiceResponse struct {
	JustifiedCheckpoint checkpointJSON       `json:"justified_checkpoint"`
	FinalizedCheckpoint checkpointJSON       `json:"finalized_checkpoint"`
	ForkChoiceNodes     []forkChoiceNodeJSON `json:"fork_choice_nodes"`
}

type committeesResponse struct {
	Data []struct {
		Index      types.ValidatorIndex   `json:"index"`
		Slot       types.Slot             `json:"slot"`
		Validators []types.ValidatorIndex `json:"validators"`
	} `json:"data"`
}
