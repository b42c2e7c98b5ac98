// Package learnmap holds the canonical in-memory graph of a learning map.
//
// # Overview
//
// A learning map is a per-subject directed graph that grows while the learner
// explores. It has two entity types:
//
//   - [Article]: a lesson text node. Exactly one Article per map is the root.
//   - [Question]: a branch point attached to a source Article. Once the learner
//     follows it, the Question is linked to a destination Article, and that
//     link never changes again.
//
// The resulting relation Article -> Question -> Article is acyclic.
//
// # Arena
//
// [Graph] stores entities in id-keyed maps and expresses every reference as an
// id. There are no pointers between entities, which keeps ownership flat and
// gives each node a stable identity for the projection layer. The Graph also
// keeps the global insertion order of all entities, so consumers that list
// nodes see a stable order across calls.
//
// # Mutations and notifications
//
// All mutations validate the map invariants and fail with a structured error
// from [github.com/Liggi/ai-learning-assistant-sub003/pkg/errors]:
//
//	VALIDATION     malformed snapshot, second root, cycle
//	CONFLICT       duplicate id
//	NOT_FOUND      unknown id
//	INVALID_STATE  re-linking an already linked Question
//
// Every accepted mutation marks the graph dirty for layout and is published as
// an [Event] to subscribers registered with [Graph.Subscribe]. Subscribers run
// synchronously after the mutation, outside the graph lock, so they may read
// the graph freely.
//
//	g := learnmap.New()
//	unsubscribe := g.Subscribe(func(ev learnmap.Event) {
//	    fmt.Println(ev.Kind, ev.IDs)
//	})
//	defer unsubscribe()
//
//	if err := g.Initialize(snapshot); err != nil {
//	    return err
//	}
package learnmap
