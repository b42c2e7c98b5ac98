// Package store persists learning maps.
//
// A [Store] loads the whole [learnmap.Snapshot] of a subject, creating an
// empty map the first time a subject is visited, and saves single Articles
// and Questions as they change, along with the map header. Stores own their consistency; callers add no
// retry or transaction logic.
//
// Implementations:
//
//   - [Memory]: in-process maps, for tests and ephemeral servers
//   - [File]: one JSON file per entity under a directory, for the CLI
//   - [Redis]: hashes in Redis, for shared deployments
//   - [Mongo]: one collection per entity kind in MongoDB
//
// [Persist] connects a [learnmap.Graph] to a Store so every accepted mutation
// is saved.
package store

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/errors"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/learnmap"
)

// Store loads and saves learning maps.
type Store interface {
	// Load returns the snapshot of subjectID, creating an empty map when the
	// subject has none. Articles and Questions are ordered by CreatedAt.
	Load(ctx context.Context, subjectID string) (learnmap.Snapshot, error)

	// SaveArticle inserts or replaces an Article of an existing map.
	SaveArticle(ctx context.Context, a learnmap.Article) error

	// SaveQuestion inserts or replaces a Question of an existing map.
	SaveQuestion(ctx context.Context, q learnmap.Question) error

	// SaveMap replaces the header of an existing map. Derived id lists are
	// not stored.
	SaveMap(ctx context.Context, lm learnmap.LearningMap) error

	Close() error
}

func newMap(subjectID string) learnmap.LearningMap {
	now := time.Now().UTC()
	return learnmap.LearningMap{
		ID:        learnmap.NewID(),
		SubjectID: subjectID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// header strips the fields a Graph derives on load.
func header(lm learnmap.LearningMap) learnmap.LearningMap {
	lm.ArticleIDs, lm.QuestionIDs = nil, nil
	return lm
}

func unknownMap(id string) error {
	return errors.New(errors.ErrCodeNotFound, "learning map %s not found", id)
}

// sortSnapshot orders entities by creation time, then id, so stores without
// a natural order (hashes, directories) load deterministically.
func sortSnapshot(s *learnmap.Snapshot) {
	slices.SortStableFunc(s.Articles, func(a, b learnmap.Article) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	slices.SortStableFunc(s.Questions, func(a, b learnmap.Question) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
}
