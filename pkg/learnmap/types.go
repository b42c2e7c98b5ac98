package learnmap

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Position is a 2-D coordinate in renderer pixels (top-left of the node).
type Position struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// LearningMap is the per-subject container of Articles and Questions.
// ArticleIDs and QuestionIDs are derived from the Graph in insertion order.
type LearningMap struct {
	ID          string    `json:"id" bson:"_id"`
	SubjectID   string    `json:"subject_id" bson:"subject_id"`
	ArticleIDs  []string  `json:"article_ids" bson:"article_ids"`
	QuestionIDs []string  `json:"question_ids" bson:"question_ids"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// Article is a generated lesson-text node.
//
// Content is empty while the Article is a placeholder whose text is still
// being generated. GenerationError is set when generation failed; the Article
// is kept so the learner can retry.
type Article struct {
	ID              string            `json:"id" bson:"_id"`
	LearningMapID   string            `json:"learning_map_id" bson:"learning_map_id"`
	Content         string            `json:"content" bson:"content"`
	Summary         string            `json:"summary,omitempty" bson:"summary,omitempty"`
	Takeaways       []string          `json:"takeaways,omitempty" bson:"takeaways,omitempty"`
	IsRoot          bool              `json:"is_root" bson:"is_root"`
	Position        *Position         `json:"position,omitempty" bson:"position,omitempty"`
	Tooltips        map[string]string `json:"tooltips,omitempty" bson:"tooltips,omitempty"`
	GenerationError string            `json:"generation_error,omitempty" bson:"generation_error,omitempty"`
	CreatedAt       time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" bson:"updated_at"`
}

// IsPlaceholder reports whether the Article has no content yet.
func (a Article) IsPlaceholder() bool { return a.Content == "" }

// Failed reports whether the last generation for this Article failed.
func (a Article) Failed() bool { return a.GenerationError != "" }

func (a Article) clone() Article {
	a.Takeaways = slices.Clone(a.Takeaways)
	a.Tooltips = maps.Clone(a.Tooltips)
	if a.Position != nil {
		p := *a.Position
		a.Position = &p
	}
	return a
}

// Question is a branch point leading from its source Article (ArticleID) to
// an optional destination Article. DestinationArticleID is empty until the
// Question is answered; once set it never changes.
type Question struct {
	ID                   string    `json:"id" bson:"_id"`
	LearningMapID        string    `json:"learning_map_id" bson:"learning_map_id"`
	Text                 string    `json:"text" bson:"text"`
	ArticleID            string    `json:"article_id" bson:"article_id"`
	DestinationArticleID string    `json:"destination_article_id,omitempty" bson:"destination_article_id,omitempty"`
	Position             *Position `json:"position,omitempty" bson:"position,omitempty"`
	CreatedAt            time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" bson:"updated_at"`
}

// Answered reports whether the Question is linked to a destination Article.
func (q Question) Answered() bool { return q.DestinationArticleID != "" }

func (q Question) clone() Question {
	if q.Position != nil {
		p := *q.Position
		q.Position = &p
	}
	return q
}

// Snapshot is the unit of hydration and persistence for one learning map.
type Snapshot struct {
	Map       LearningMap `json:"map"`
	Articles  []Article   `json:"articles"`
	Questions []Question  `json:"questions"`
}

// ArticlePatch lists the Article fields to merge in [Graph.UpdateArticle].
// Nil fields are left unchanged. An empty, non-nil Takeaways slice clears them.
type ArticlePatch struct {
	Content         *string
	Summary         *string
	Takeaways       []string
	Tooltips        map[string]string
	GenerationError *string
}

// StringPtr returns a pointer to s, for building an [ArticlePatch].
func StringPtr(s string) *string { return &s }

// NewID returns a fresh entity id.
func NewID() string { return uuid.NewString() }

// EntryKind distinguishes Articles from Questions in the insertion order.
type EntryKind int

const (
	EntryArticle EntryKind = iota
	EntryQuestion
)

func (k EntryKind) String() string {
	if k == EntryQuestion {
		return "question"
	}
	return "article"
}

// Entry identifies one entity in the graph's insertion order.
type Entry struct {
	Kind EntryKind
	ID   string
}
