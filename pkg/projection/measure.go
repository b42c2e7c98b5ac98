package projection

import (
	"math"
	"unicode/utf8"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/layout"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/learnmap"
)

// Size is a measured node size in renderer pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Measured reports whether both dimensions are known.
func (s Size) Measured() bool { return s.Width > 0 && s.Height > 0 }

// Measurer sizes nodes for renderers that cannot measure off-screen.
type Measurer interface {
	Measure(n Node) Size
}

// Estimator is a Measurer that wraps the label at a fixed character width.
// It is used by headless renderers (CLI, SVG export) that have no text
// metrics of their own.
type Estimator struct {
	CharWidth  float64
	LineHeight float64
	Padding    float64
	MaxWidth   float64
	MinWidth   float64
}

// DefaultEstimator approximates a 14px sans-serif label.
var DefaultEstimator = Estimator{
	CharWidth:  7.5,
	LineHeight: 20,
	Padding:    16,
	MaxWidth:   280,
	MinWidth:   120,
}

// Measure estimates the size of n's label box.
func (e Estimator) Measure(n Node) Size {
	chars := float64(max(utf8.RuneCountInString(n.Label), 1))
	inner := e.MaxWidth - 2*e.Padding
	perLine := math.Max(math.Floor(inner/e.CharWidth), 1)
	lines := math.Ceil(chars / perLine)

	w := math.Min(chars*e.CharWidth+2*e.Padding, e.MaxWidth)
	w = math.Max(w, e.MinWidth)
	h := lines*e.LineHeight + 2*e.Padding
	if n.Type == NodeArticle {
		h += e.LineHeight
	}
	return Size{Width: math.Round(w), Height: math.Round(h)}
}

// EstimateSize measures n with DefaultEstimator.
func EstimateSize(n Node) Size { return DefaultEstimator.Measure(n) }

// ToLayoutRequest builds a layout request from a visualization. Nodes missing
// from sizes are sent unmeasured, so the engine reports the request
// incomplete. Current node positions become layout hints.
func ToLayoutRequest(vis Visualization, sizes map[string]Size, dir layout.Direction, spacing layout.Spacing) layout.Request {
	req := layout.Request{
		Nodes:     make([]layout.Node, len(vis.Nodes)),
		Edges:     make([]layout.Edge, len(vis.Edges)),
		Direction: dir,
		Spacing:   spacing,
	}
	for i, n := range vis.Nodes {
		s := sizes[n.ID]
		req.Nodes[i] = layout.Node{ID: n.ID, Width: s.Width, Height: s.Height}
		if n.Position != nil {
			if req.Hints == nil {
				req.Hints = make(map[string]learnmap.Position)
			}
			req.Hints[n.ID] = *n.Position
		}
	}
	for i, e := range vis.Edges {
		req.Edges[i] = layout.Edge{ID: e.ID, Source: e.Source, Target: e.Target}
	}
	return req
}

// FillSizes returns sizes completed with m for every node that lacks a
// measured size. The input map is not modified.
func FillSizes(vis Visualization, sizes map[string]Size, m Measurer) map[string]Size {
	out := make(map[string]Size, len(vis.Nodes))
	for _, n := range vis.Nodes {
		if s, ok := sizes[n.ID]; ok && s.Measured() {
			out[n.ID] = s
			continue
		}
		if m != nil {
			out[n.ID] = m.Measure(n)
		}
	}
	return out
}
