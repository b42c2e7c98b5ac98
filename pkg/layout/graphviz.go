package layout

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/errors"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/learnmap"
)

// GraphvizEngine lays out graphs with the Graphviz "dot" engine, compiled to
// WebAssembly and run in-process by go-graphviz.
type GraphvizEngine struct{}

// NewGraphvizEngine returns a Graphviz-backed engine.
func NewGraphvizEngine() *GraphvizEngine { return &GraphvizEngine{} }

// Compute lays out req. Identical requests produce identical results.
func (e *GraphvizEngine) Compute(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	if missing := Unmeasured(req.Nodes); len(missing) > 0 {
		return incomplete(missing), nil
	}
	if len(req.Nodes) == 0 {
		return Result{Positions: map[string]learnmap.Position{}}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeLayout, err, "layout cancelled")
	}

	dot, order := ToDOT(req)
	out, err := runDot(ctx, dot)
	if err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeLayout, err, "graphviz layout of %d nodes", len(req.Nodes))
	}
	res, err := parseLayout(out, req, order)
	if err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeLayout, err, "read graphviz output")
	}
	return res, nil
}

// runDot renders dot back to DOT text annotated with pos and bb attributes.
func runDot(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.XDOT, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	nodeStmtRe = regexp.MustCompile(`(?m)^\s*n(\d+)\s*\[([^\]]*)\]`)
	posRe      = regexp.MustCompile(`\bpos="([-+0-9.eE]+),([-+0-9.eE]+)"`)
	bbRe       = regexp.MustCompile(`\bbb="([-+0-9.eE]+),([-+0-9.eE]+),([-+0-9.eE]+),([-+0-9.eE]+)"`)
)

// parseLayout reads node centers and the bounding box from Graphviz output
// and converts them to top-left screen coordinates (y grows downwards).
func parseLayout(out []byte, req Request, order []string) (Result, error) {
	text := strings.ReplaceAll(string(out), "\\\n", "")

	bb := bbRe.FindStringSubmatch(text)
	if bb == nil {
		return Result{}, fmt.Errorf("no bounding box in output")
	}
	box, err := floats(bb[1:])
	if err != nil {
		return Result{}, fmt.Errorf("bounding box: %w", err)
	}
	llx, lly, urx, ury := box[0], box[1], box[2], box[3]

	sizes := make(map[string]Node, len(req.Nodes))
	for _, n := range req.Nodes {
		sizes[n.ID] = n
	}

	res := Result{
		Positions: make(map[string]learnmap.Position, len(order)),
		Width:     pixel(urx - llx),
		Height:    pixel(ury - lly),
	}
	for _, m := range nodeStmtRe.FindAllStringSubmatch(text, -1) {
		i, err := strconv.Atoi(m[1])
		if err != nil || i >= len(order) {
			continue
		}
		pm := posRe.FindStringSubmatch(m[2])
		if pm == nil {
			continue
		}
		c, err := floats(pm[1:])
		if err != nil {
			return Result{}, fmt.Errorf("node %s: %w", order[i], err)
		}
		n := sizes[order[i]]
		res.Positions[n.ID] = learnmap.Position{
			X: pixel(c[0] - llx - n.Width/2),
			Y: pixel(ury - c[1] - n.Height/2),
		}
	}

	if len(res.Positions) != len(order) {
		return Result{}, fmt.Errorf("graphviz positioned %d of %d nodes", len(res.Positions), len(order))
	}
	return res, nil
}

// pixel rounds v to a whole pixel. Sizes pass through Graphviz as inches
// with limited precision, so raw coordinates carry sub-pixel noise.
func pixel(v float64) float64 {
	r := math.Round(v)
	if r == 0 {
		return 0 // no negative zero
	}
	return r
}

func floats(ss []string) ([]float64, error) {
	out := make([]float64, len(ss))
	for i, s := range ss {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

var _ Engine = (*GraphvizEngine)(nil)
