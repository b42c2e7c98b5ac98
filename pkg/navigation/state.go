package navigation

import "time"

// QuestionState is the generation state of one generation key: a Question
// id, or the root Article id for initial content. It is either [Idle] or
// [GeneratingFollowUp].
type QuestionState interface {
	isQuestionState()
}

// Idle means no generation is running for the key.
type Idle struct{}

// GeneratingFollowUp means content for ArticleID is being generated.
type GeneratingFollowUp struct {
	ArticleID string
	Since     time.Time
}

func (Idle) isQuestionState()               {}
func (GeneratingFollowUp) isQuestionState() {}

// EventType names a renderer interaction.
type EventType string

const (
	SelectArticleEvent  EventType = "selectArticle"
	SelectQuestionEvent EventType = "selectQuestion"
)

// Event is a renderer interaction forwarded by the embedding layer.
type Event struct {
	Type EventType `json:"type"`
	ID   string    `json:"id"`
}
