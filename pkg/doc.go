// Package pkg holds the libraries behind learnmap, a learning assistant that
// grows a graph of generated articles from the questions a learner picks.
//
// # Overview
//
// A learning map belongs to one subject. Its root Article introduces the
// subject; every Article surfaces Questions, and selecting a Question
// generates the Article that answers it. The packages are layered:
//
//  1. [learnmap] - the graph of Articles and Questions and its change events
//  2. [navigation] - the active Article and per-question generation state
//  3. [generate] - content generation, offline or over HTTP
//  4. [projection] - nodes and edges for renderers, DOT and SVG export
//  5. [layout] - Graphviz layout, last-wins scheduling and caching
//  6. [store] - persistence in memory, files, Redis or MongoDB
//  7. [session] - one open map wiring all of the above together
//
// Supporting packages: [cache], [errors], [httputil], [observability] and
// [buildinfo].
//
// # Data Flow
//
//	learner selects a Question
//	         ↓
//	    [navigation] adds a placeholder Article and starts generation
//	         ↓
//	    [learnmap] emits events → [store] saves, [session] re-lays out
//	         ↓
//	    [projection] + [layout] produce positioned nodes for the renderer
//
// # Quick Start
//
//	sess, err := session.Open(ctx, session.Options{
//	    Subject:   "golang",
//	    Store:     store.NewMemory(),
//	    Generator: generate.Offline{},
//	    Measurer:  projection.DefaultEstimator,
//	})
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
//	q := sess.Graph().QuestionsForArticle(sess.Controller().Active())[0]
//	err = sess.Controller().SelectQuestion(ctx, q.ID)
//	sess.Wait()
//	projection.WriteJSON(os.Stdout, sess.Visualization())
//
// The cmd/learnmap binary exposes the same operations as a terminal
// explorer, batch commands and an HTTP server (internal/cli, internal/server).
package pkg
