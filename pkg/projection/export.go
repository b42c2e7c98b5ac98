package projection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/layout"
)

// WriteJSON writes vis as indented JSON.
func WriteJSON(w io.Writer, vis Visualization) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(vis)
}

// DOTOptions configures static node-link export.
type DOTOptions struct {
	// Direction is the Graphviz rankdir; empty means top to bottom.
	Direction layout.Direction
}

// ToDOT converts a visualization to Graphviz DOT for static export.
// Articles are rounded boxes, questions are ellipses; the active node is
// drawn bold, pending nodes dashed and failed ones red.
func ToDOT(vis Visualization, opts DOTOptions) string {
	dir := opts.Direction
	if dir == "" {
		dir = layout.TopToBottom
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", dir)
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [fontname=\"Helvetica\", fontsize=12, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [color=\"#888888\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, n := range vis.Nodes {
		fmt.Fprintf(&buf, "  %s [%s];\n", dotID(n.ID), strings.Join(nodeAttrs(n), ", "))
	}
	buf.WriteString("\n")
	for _, e := range vis.Edges {
		fmt.Fprintf(&buf, "  %s -> %s;\n", dotID(e.Source), dotID(e.Target))
	}
	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(n Node) []string {
	label := n.Label
	if label == "" && n.IsLoading {
		label = "generating…"
	}
	attrs := []string{"label=" + strings.ReplaceAll(dotID(wrap(label, 28)), "\n", `\n`)}

	style := []string{"filled"}
	switch n.Type {
	case NodeArticle:
		attrs = append(attrs, "shape=box", "fillcolor=white")
		style = append(style, "rounded")
	case NodeQuestion:
		attrs = append(attrs, "shape=ellipse", "fillcolor=\"#eef4ff\"")
	}
	if n.IsActive {
		style = append(style, "bold")
	}
	if n.IsLoading {
		style = append(style, "dashed")
	}
	if n.HasError {
		attrs = append(attrs, "color=red", "fontcolor=red")
	}
	if n.IsRoot {
		attrs = append(attrs, "peripheries=2")
	}
	return append(attrs, fmt.Sprintf("style=%q", strings.Join(style, ",")))
}

// dotID quotes s as a DOT string; only the double quote and backslash need
// escaping there.
func dotID(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// wrap breaks text into lines of at most width runes at spaces.
func wrap(text string, width int) string {
	words := strings.Fields(text)
	var lines []string
	var line []rune
	for _, w := range words {
		r := []rune(w)
		if len(line) > 0 && len(line)+1+len(r) > width {
			lines = append(lines, string(line))
			line = nil
		}
		if len(line) > 0 {
			line = append(line, ' ')
		}
		line = append(line, r...)
	}
	if len(line) > 0 {
		lines = append(lines, string(line))
	}
	return strings.Join(lines, "\n")
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
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
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root tag so the SVG scales from its
// viewBox instead of Graphviz's fixed pt dimensions.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
