package forkchoice

import (
	types "github.com/forkwatchlabs/forkwatch/consensus-types/primitives"
)

// NonExistentNode is the parent index of the tree root.
const NonExistentNode = ^uint64(0)

// Node is one block in the view's arena. Nodes reference their parent by
// index into the arena rather than by pointer.
type Node struct {
	slot     types.Slot
	root     types.Root
	parent   uint64
	weight   types.Gwei
	children []uint64
}

// Slot of the fork choice node.
func (n *Node) Slot() types.Slot {
	return n.slot
}

// Root of the fork choice node.
func (n *Node) Root() types.Root {
	return n.root
}

// Parent index of the fork choice node.
func (n *Node) Parent() uint64 {
	return n.parent
}

// Weight is the accumulated support of the node's subtree.
func (n *Node) Weight() types.Gwei {
	return n.weight
}
