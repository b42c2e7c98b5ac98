package layout

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strconv"
)

// pointsPerInch converts renderer pixels to Graphviz inches (1 px = 1 pt).
const pointsPerInch = 72.0

// ToDOT converts a layout request to Graphviz DOT. Node i of the returned
// order is emitted as "n<i>", so arbitrary ids never need DOT quoting.
//
// Statement order is what Graphviz uses as the initial ordering within each
// rank, so nodes are emitted hinted-first, sorted by their prior cross-axis
// coordinate, followed by new nodes in request order. Edges follow the same
// order.
func ToDOT(req Request) (dot string, order []string) {
	spacing := req.Spacing.withDefaults()
	dir := req.Direction
	if dir == "" {
		dir = TopToBottom
	}

	nodes := orderNodes(req)
	index := make(map[string]int, len(nodes))
	order = make([]string, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
		order[i] = n.ID
	}

	var buf bytes.Buffer
	buf.WriteString("digraph L {\n")
	fmt.Fprintf(&buf, "  graph [rankdir=%s, nodesep=%s, ranksep=%s, ordering=out, splines=false];\n",
		dir, inches(spacing.Node), inches(spacing.Rank))
	buf.WriteString("  node [shape=box, fixedsize=true, label=\"\"];\n")
	buf.WriteString("\n")

	for i, n := range nodes {
		fmt.Fprintf(&buf, "  n%d [width=%s, height=%s];\n", i, inches(n.Width), inches(n.Height))
	}

	edges := slices.Clone(req.Edges)
	slices.SortStableFunc(edges, func(a, b Edge) int {
		if c := cmp.Compare(index[a.Source], index[b.Source]); c != 0 {
			return c
		}
		return cmp.Compare(index[a.Target], index[b.Target])
	})
	if len(edges) > 0 {
		buf.WriteString("\n")
	}
	for _, e := range edges {
		fmt.Fprintf(&buf, "  n%d -> n%d;\n", index[e.Source], index[e.Target])
	}

	buf.WriteString("}\n")
	return buf.String(), order
}

// orderNodes puts hinted nodes first, by cross-axis coordinate, then the
// rest in request order.
func orderNodes(req Request) []Node {
	type ranked struct {
		Node
		pos   int
		cross float64
	}
	var hinted, fresh []ranked
	for i, n := range req.Nodes {
		p, ok := req.Hints[n.ID]
		if !ok {
			fresh = append(fresh, ranked{Node: n, pos: i})
			continue
		}
		cross := p.X
		if req.Direction.Horizontal() {
			cross = p.Y
		}
		hinted = append(hinted, ranked{Node: n, pos: i, cross: cross})
	}
	slices.SortStableFunc(hinted, func(a, b ranked) int {
		if c := cmp.Compare(a.cross, b.cross); c != 0 {
			return c
		}
		return cmp.Compare(a.pos, b.pos)
	})

	out := make([]Node, 0, len(req.Nodes))
	for _, r := range hinted {
		out = append(out, r.Node)
	}
	for _, r := range fresh {
		out = append(out, r.Node)
	}
	return out
}

func inches(px float64) string {
	return strconv.FormatFloat(px/pointsPerInch, 'f', 4, 64)
}
