package report

import (
	"strconv"

	"github.com/emicklei/dot"
	types "github.com/forkwatchlabs/forkwatch/consensus-types/primitives"
	"github.com/forkwatchlabs/forkwatch/forkchoice"
)

// RenderTree renders a view's block tree in graphviz dot format. The head's
// chain is drawn green and the confirmed head, when present, gets a doubled
// border, so competing branches stand out at a glance.
func RenderTree(view *forkchoice.View, confirmedHead types.Root) (string, error) {
	nodes := view.Nodes()
	head := view.Head()

	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "RL")
	graph.Attr("labeljust", "l")

	canonical := make(map[types.Root]bool, len(nodes))
	for _, n := range nodes {
		onChain, err := view.IsAncestor(n.Root(), head)
		if err != nil {
			return "", err
		}
		canonical[n.Root()] = onChain
	}

	dotNodes := make([]dot.Node, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		label := "slot: " + strconv.FormatUint(uint64(n.Slot()), 10) +
			"\nroot: " + n.Root().String()[:10] +
			"\nweight: " + strconv.FormatUint(uint64(n.Weight()), 10)
		dotN := graph.Node(strconv.Itoa(i)).Box().Attr("label", label)
		if canonical[n.Root()] {
			dotN = dotN.Attr("color", "green")
		}
		if n.Root() == confirmedHead {
			dotN = dotN.Attr("peripheries", "2")
		}
		dotNodes[i] = dotN
	}

	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i].Parent() != forkchoice.NonExistentNode {
			graph.Edge(dotNodes[i], dotNodes[nodes[i].Parent()])
		}
	}
	return graph.String(), nil
}
