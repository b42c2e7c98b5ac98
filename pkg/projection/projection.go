// Package projection derives the renderable node/edge list of a learning map.
//
// [Project] turns a graph view, current positions and transient UI state
// (active id, pending generations) into a [Visualization]. Every Article and
// every Question is one node; every Question contributes an edge from its
// source Article and, once answered, a second edge to its destination. The
// Article -> Question -> Article path is never collapsed into one edge.
//
// Node order follows the graph's insertion order, so two projections of the
// same id set list nodes identically.
package projection

import (
	"strings"
	"unicode/utf8"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/learnmap"
)

// NodeType distinguishes article nodes from question nodes.
type NodeType string

const (
	NodeArticle  NodeType = "article"
	NodeQuestion NodeType = "question"
)

// Node is one renderable node.
type Node struct {
	ID        string             `json:"id"`
	Type      NodeType           `json:"type"`
	Label     string             `json:"label"`
	Position  *learnmap.Position `json:"position,omitempty"`
	IsRoot    bool               `json:"is_root,omitempty"`
	IsActive  bool               `json:"is_active,omitempty"`
	IsLoading bool               `json:"is_loading,omitempty"`
	HasError  bool               `json:"has_error,omitempty"`
}

// Edge is one directed renderable edge. ID is "source->target".
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Visualization is the projector output consumed by renderers.
type Visualization struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// UIState is the transient state that affects rendering. Pending holds the
// ids of nodes whose content is being generated.
type UIState struct {
	ActiveID string          `json:"active_id"`
	Pending  map[string]bool `json:"pending,omitempty"`
}

// Source provides a consistent read of a learning map.
// *learnmap.Graph implements it.
type Source interface {
	View() learnmap.View
}

const maxLabelRunes = 80

// Project builds the visualization. A non-nil positions map overrides the
// positions stored on the entities; ids absent from it keep their stored
// position.
func Project(src Source, positions map[string]learnmap.Position, ui UIState) Visualization {
	v := src.View()
	vis := Visualization{
		Nodes: make([]Node, 0, len(v.Entries)),
		Edges: make([]Edge, 0, 2*len(v.Questions)),
	}

	for _, e := range v.Entries {
		var n Node
		switch e.Kind {
		case learnmap.EntryArticle:
			a := v.Articles[e.ID]
			n = Node{
				ID:       a.ID,
				Type:     NodeArticle,
				Label:    articleLabel(a),
				Position: a.Position,
				IsRoot:   a.IsRoot,
				HasError: a.Failed(),
			}
		case learnmap.EntryQuestion:
			q := v.Questions[e.ID]
			n = Node{
				ID:       q.ID,
				Type:     NodeQuestion,
				Label:    truncate(q.Text),
				Position: q.Position,
			}
			vis.Edges = append(vis.Edges, edge(q.ArticleID, q.ID))
			if q.Answered() {
				vis.Edges = append(vis.Edges, edge(q.ID, q.DestinationArticleID))
			}
		}
		if p, ok := positions[n.ID]; ok {
			n.Position = &p
		}
		n.IsActive = n.ID == ui.ActiveID
		n.IsLoading = ui.Pending[n.ID]
		vis.Nodes = append(vis.Nodes, n)
	}
	return vis
}

func edge(source, target string) Edge {
	return Edge{ID: source + "->" + target, Source: source, Target: target}
}

// articleLabel prefers the summary, then the first non-blank content line.
func articleLabel(a learnmap.Article) string {
	if a.Summary != "" {
		return truncate(a.Summary)
	}
	for _, line := range strings.Split(a.Content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "# "))
		if line != "" {
			return truncate(line)
		}
	}
	return ""
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= maxLabelRunes {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:maxLabelRunes-1])) + "…"
}

// Node returns the node with id, if present.
func (v Visualization) Node(id string) (Node, bool) {
	for _, n := range v.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
