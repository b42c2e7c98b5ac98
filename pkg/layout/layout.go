// Package layout computes 2-D positions for learning-map nodes.
//
// An [Engine] turns measured node sizes plus directed edges into top-left
// pixel positions. [GraphvizEngine] runs the Graphviz "dot" layered layout
// in-process; [CachedEngine] memoizes any engine in a [cache.Cache]; and
// [Scheduler] runs computations asynchronously with last-requested-wins
// delivery.
//
// Layout cannot run on unmeasured nodes: when any node has a non-positive
// width or height, Compute returns a [Result] with Incomplete set and the
// offending ids in Missing, and no positions.
//
// Layered layout is not locally incremental, so every topology change is a
// full re-submission. Prior positions passed as [Request.Hints] keep the
// relative order of stable subgraphs where Graphviz allows it.
package layout

import (
	"context"
	"slices"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/errors"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/learnmap"
)

// Direction is the rank direction of the layered layout.
type Direction string

const (
	TopToBottom Direction = "TB"
	LeftToRight Direction = "LR"
	BottomToTop Direction = "BT"
	RightToLeft Direction = "RL"
)

// ParseDirection validates s; the empty string means TopToBottom.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case "":
		return TopToBottom, nil
	case TopToBottom, LeftToRight, BottomToTop, RightToLeft:
		return d, nil
	}
	return "", errors.New(errors.ErrCodeLayout, "unknown layout direction %q (want TB, LR, BT or RL)", s)
}

// Horizontal reports whether ranks advance along the x axis.
func (d Direction) Horizontal() bool { return d == LeftToRight || d == RightToLeft }

// Node is a measured node. Width and Height are renderer pixels.
type Node struct {
	ID     string  `json:"id"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Edge is a directed edge between two node ids.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Spacing is the gap between nodes in pixels. Zero values use the defaults.
type Spacing struct {
	Node float64 `json:"node"`
	Rank float64 `json:"rank"`
}

const (
	DefaultNodeSpacing = 40.0
	DefaultRankSpacing = 60.0
)

func (s Spacing) withDefaults() Spacing {
	if s.Node <= 0 {
		s.Node = DefaultNodeSpacing
	}
	if s.Rank <= 0 {
		s.Rank = DefaultRankSpacing
	}
	return s
}

// Request is one layout computation.
type Request struct {
	Nodes     []Node                       `json:"nodes"`
	Edges     []Edge                       `json:"edges"`
	Direction Direction                    `json:"direction"`
	Hints     map[string]learnmap.Position `json:"hints,omitempty"`
	Spacing   Spacing                      `json:"spacing"`
}

// Result holds the computed top-left positions, or Incomplete with the ids
// of unmeasured nodes.
type Result struct {
	Positions  map[string]learnmap.Position `json:"positions,omitempty"`
	Incomplete bool                         `json:"incomplete,omitempty"`
	Missing    []string                     `json:"missing,omitempty"`
	Width      float64                      `json:"width"`
	Height     float64                      `json:"height"`
}

// Engine computes layouts.
type Engine interface {
	Compute(ctx context.Context, req Request) (Result, error)
}

// Unmeasured returns the ids of nodes without a positive width and height,
// in request order.
func Unmeasured(nodes []Node) []string {
	var missing []string
	for _, n := range nodes {
		if n.Width <= 0 || n.Height <= 0 {
			missing = append(missing, n.ID)
		}
	}
	return missing
}

// validate rejects requests Graphviz cannot lay out meaningfully.
func (r Request) validate() error {
	if _, err := ParseDirection(string(r.Direction)); err != nil {
		return err
	}
	seen := make(map[string]bool, len(r.Nodes))
	for _, n := range r.Nodes {
		if n.ID == "" {
			return errors.New(errors.ErrCodeLayout, "node with empty id")
		}
		if seen[n.ID] {
			return errors.New(errors.ErrCodeLayout, "duplicate node %s", n.ID)
		}
		seen[n.ID] = true
	}
	for _, e := range r.Edges {
		if !seen[e.Source] || !seen[e.Target] {
			return errors.New(errors.ErrCodeLayout, "edge %s references unknown node", e.ID)
		}
	}
	return nil
}

// incomplete builds the Result for a request with unmeasured nodes.
func incomplete(missing []string) Result {
	return Result{Incomplete: true, Missing: slices.Clone(missing)}
}
