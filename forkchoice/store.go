// Package forkchoice builds an immutable, arena-backed view of the block tree
// observed in one snapshot and answers the ancestry and weight queries the
// confirmation rule needs. A view is built once per snapshot, is read-only
// afterwards, and can be shared across goroutines without locking.
package forkchoice

import (
	"bytes"
	"sort"

	"github.com/forkwatchlabs/forkwatch/config/params"
	types "github.com/forkwatchlabs/forkwatch/consensus-types/primitives"
	"github.com/forkwatchlabs/forkwatch/snapshot"
	"github.com/pkg/errors"
)

// View is the in-memory block tree of one snapshot. The lowest block in the
// snapshot acts as the tree root; every other block must attach to a parent
// already present.
type View struct {
	cfg       *params.ChainConfig
	nodes     []*Node
	indices   map[types.Root]uint64
	slot      types.Slot
	justified snapshot.Checkpoint
	finalized snapshot.Checkpoint

	committeeSize uint64
	votes         []snapshot.Vote
}

// NewView builds a view from a snapshot. When the snapshot carries explicit
// votes, block weights are recomputed from them under the constant-balance
// model; otherwise the node-reported accumulated weights are used as-is.
func NewView(snap *snapshot.Snapshot, cfg *params.ChainConfig) (*View, error) {
	if len(snap.Blocks) == 0 {
		return nil, errors.Wrap(ErrMalformedView, "snapshot contains no blocks")
	}

	blocks := make([]snapshot.BlockNode, len(snap.Blocks))
	copy(blocks, snap.Blocks)
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Slot != blocks[j].Slot {
			return blocks[i].Slot < blocks[j].Slot
		}
		return bytes.Compare(blocks[i].Root[:], blocks[j].Root[:]) < 0
	})

	v := &View{
		cfg:           cfg,
		nodes:         make([]*Node, 0, len(blocks)),
		indices:       make(map[types.Root]uint64, len(blocks)),
		slot:          snap.Slot,
		justified:     snap.JustifiedCheckpoint,
		finalized:     snap.FinalizedCheckpoint,
		committeeSize: snap.CommitteeSize,
		votes:         snap.Votes,
	}

	for i, b := range blocks {
		if _, ok := v.indices[b.Root]; ok {
			return nil, errors.Wrapf(ErrMalformedView, "duplicate block %s", b.Root)
		}
		parent := NonExistentNode
		if i > 0 {
			idx, ok := v.indices[b.ParentRoot]
			if !ok {
				return nil, errors.Wrapf(ErrMalformedView,
					"block %s at slot %d references missing parent %s", b.Root, b.Slot, b.ParentRoot)
			}
			if v.nodes[idx].slot >= b.Slot {
				return nil, errors.Wrapf(ErrMalformedView,
					"block %s at slot %d is not above its parent's slot %d", b.Root, b.Slot, v.nodes[idx].slot)
			}
			parent = idx
		}
		n := &Node{slot: b.Slot, root: b.Root, parent: parent, weight: b.Weight}
		v.nodes = append(v.nodes, n)
		v.indices[b.Root] = uint64(i)
		if parent != NonExistentNode {
			v.nodes[parent].children = append(v.nodes[parent].children, uint64(i))
		}
	}

	if len(snap.Votes) > 0 {
		if err := v.applyVotes(snap.Votes); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// applyVotes recomputes every node's weight from the vote set: a node's
// weight is the summed weight of all votes whose head target is the node or
// one of its descendants.
func (v *View) applyVotes(votes []snapshot.Vote) error {
	for _, n := range v.nodes {
		n.weight = 0
	}
	for _, vote := range votes {
		idx, ok := v.indices[vote.HeadRoot]
		if !ok {
			return errors.Wrapf(ErrMalformedView,
				"vote by validator %d references unknown block %s", vote.ValidatorIndex, vote.HeadRoot)
		}
		v.nodes[idx].weight += v.ValidatorWeight(vote.ValidatorIndex)
	}
	// Nodes are slot-ordered, so a reverse sweep pushes each subtree's weight
	// onto its parent before the parent itself is visited.
	for i := len(v.nodes) - 1; i > 0; i-- {
		n := v.nodes[i]
		if n.parent != NonExistentNode {
			v.nodes[n.parent].weight += n.weight
		}
	}
	return nil
}

// Slot returns the snapshot slot the view was observed at.
func (v *View) Slot() types.Slot {
	return v.slot
}

// JustifiedCheckpoint of the snapshot.
func (v *View) JustifiedCheckpoint() snapshot.Checkpoint {
	return v.justified
}

// FinalizedCheckpoint of the snapshot.
func (v *View) FinalizedCheckpoint() snapshot.Checkpoint {
	return v.finalized
}

// HasBlock reports whether the root is part of the view.
func (v *View) HasBlock(root types.Root) bool {
	_, ok := v.indices[root]
	return ok
}

// BlockSlot returns the slot of a block in the view.
func (v *View) BlockSlot(root types.Root) (types.Slot, error) {
	idx, ok := v.indices[root]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownBlock, "%s", root)
	}
	return v.nodes[idx].slot, nil
}

// Weight returns the accumulated support weight of a block's subtree.
func (v *View) Weight(root types.Root) (types.Gwei, error) {
	idx, ok := v.indices[root]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownBlock, "%s", root)
	}
	return v.nodes[idx].weight, nil
}

// TreeRoot returns the root of the lowest block in the view.
func (v *View) TreeRoot() types.Root {
	return v.nodes[0].root
}

// FinalizedSlot returns the slot of the finalized checkpoint block if it is
// part of the view, else the tree root's slot.
func (v *View) FinalizedSlot() types.Slot {
	if idx, ok := v.indices[v.finalized.Root]; ok {
		return v.nodes[idx].slot
	}
	return v.nodes[0].slot
}

// Head returns the canonical head: starting from the tree root, descend into
// the heaviest child, breaking weight ties toward the lexicographically
// larger root.
func (v *View) Head() types.Root {
	cur := v.nodes[0]
	for len(cur.children) > 0 {
		best := v.nodes[cur.children[0]]
		for _, ci := range cur.children[1:] {
			c := v.nodes[ci]
			if c.weight > best.weight ||
				(c.weight == best.weight && bytes.Compare(c.root[:], best.root[:]) > 0) {
				best = c
			}
		}
		cur = best
	}
	return cur.root
}

// IsAncestor reports whether a is an ancestor of b, or equal to it.
func (v *View) IsAncestor(a, b types.Root) (bool, error) {
	ai, ok := v.indices[a]
	if !ok {
		return false, errors.Wrapf(ErrUnknownBlock, "%s", a)
	}
	cur, ok := v.indices[b]
	if !ok {
		return false, errors.Wrapf(ErrUnknownBlock, "%s", b)
	}
	aSlot := v.nodes[ai].slot
	for v.nodes[cur].slot > aSlot && v.nodes[cur].parent != NonExistentNode {
		cur = v.nodes[cur].parent
	}
	return v.nodes[cur].root == a, nil
}

// Ancestor returns the highest ancestor of a block at or below the requested
// slot. If the walk exhausts the view, the tree root is returned.
func (v *View) Ancestor(root types.Root, slot types.Slot) (types.Root, error) {
	cur, ok := v.indices[root]
	if !ok {
		return types.Root{}, errors.Wrapf(ErrUnknownBlock, "%s", root)
	}
	for v.nodes[cur].slot > slot && v.nodes[cur].parent != NonExistentNode {
		cur = v.nodes[cur].parent
	}
	return v.nodes[cur].root, nil
}

// ParentRoot returns the parent of a block, and false for the tree root.
func (v *View) ParentRoot(root types.Root) (types.Root, bool, error) {
	cur, ok := v.indices[root]
	if !ok {
		return types.Root{}, false, errors.Wrapf(ErrUnknownBlock, "%s", root)
	}
	p := v.nodes[cur].parent
	if p == NonExistentNode {
		return types.Root{}, false, nil
	}
	return v.nodes[p].root, true, nil
}

// CheckpointSupport returns the weight committed to a checkpoint. The FFG
// support of a checkpoint is approximated by the LMD support of its block:
// the protocol constrains a validator's finality-target vote to be an
// ancestor of its head vote, so head support descending from the checkpoint
// block bounds its FFG support. When explicit votes are available the sum is
// restricted to votes cast in the checkpoint's epoch; relaxing the
// approximation later only needs a second accumulator here.
func (v *View) CheckpointSupport(cp snapshot.Checkpoint) (types.Gwei, error) {
	if len(v.votes) == 0 {
		return v.Weight(cp.Root)
	}
	if !v.HasBlock(cp.Root) {
		return 0, errors.Wrapf(ErrUnknownBlock, "%s", cp.Root)
	}
	var support types.Gwei
	for _, vote := range v.votes {
		if types.Epoch(uint64(vote.Slot)/v.cfg.SlotsPerEpoch) != cp.Epoch {
			continue
		}
		desc, err := v.IsAncestor(cp.Root, vote.HeadRoot)
		if err != nil {
			return 0, err
		}
		if desc {
			support += v.ValidatorWeight(vote.ValidatorIndex)
		}
	}
	return support, nil
}

// ActiveValidatorCount is the validator count implied by the committee size,
// assuming a full committee in every slot of the epoch.
func (v *View) ActiveValidatorCount() uint64 {
	return v.committeeSize * v.cfg.SlotsPerEpoch
}

// ValidatorWeight returns a validator's effective weight. Every active
// validator carries the same constant balance; indices beyond the active set
// weigh nothing, since not-yet-active validators are a normal input state.
func (v *View) ValidatorWeight(idx types.ValidatorIndex) types.Gwei {
	if uint64(idx) >= v.ActiveValidatorCount() {
		return 0
	}
	return types.Gwei(v.cfg.ValidatorBalance)
}

// TotalActiveWeight is the aggregate weight of the full validator set.
func (v *View) TotalActiveWeight() types.Gwei {
	return types.Gwei(v.ActiveValidatorCount() * v.cfg.ValidatorBalance)
}

// CommitteeWeight is the weight attesting in a single slot.
func (v *View) CommitteeWeight() types.Gwei {
	return types.Gwei(v.committeeSize * v.cfg.ValidatorBalance)
}

// Nodes exposes the arena for read-only iteration, slot-ascending.
func (v *View) Nodes() []*Node {
	return v.nodes
}
