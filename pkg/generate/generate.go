// Package generate defines the content generation contract and its
// implementations.
//
// A [Generator] produces the text of an Article: follow-up articles answer a
// Question in the context of the parent Article, initial articles open a
// subject. Failures are reported as GENERATION_FAILED errors (see
// pkg/errors); callers treat them as recoverable.
//
// Two implementations are provided:
//
//   - [Client]: a JSON-over-HTTP generation service
//   - [Offline]: deterministic local text, for demos and tests
package generate

import (
	"context"
	"strings"
)

// FollowUpRequest asks for the Article a Question leads to.
type FollowUpRequest struct {
	Subject                string `json:"subject"`
	ParentArticleContent   string `json:"parent_article_content"`
	TriggeringQuestionText string `json:"triggering_question_text"`
}

// InitialRequest asks for the root Article of a subject.
type InitialRequest struct {
	Subject           string `json:"subject"`
	ModuleTitle       string `json:"module_title"`
	ModuleDescription string `json:"module_description"`
}

// Content is generated Article text. Questions are follow-up questions
// surfaced alongside the article; they are optional.
type Content struct {
	Content   string            `json:"content"`
	Summary   string            `json:"summary"`
	Takeaways []string          `json:"takeaways"`
	Tooltips  map[string]string `json:"tooltips,omitempty"`
	Questions []string          `json:"questions,omitempty"`
}

// Generator produces Article content.
type Generator interface {
	Generate(ctx context.Context, req FollowUpRequest) (Content, error)
	GenerateInitial(ctx context.Context, req InitialRequest) (Content, error)
}

// normalize trims whitespace and drops empty takeaways and questions.
func (c Content) normalize() Content {
	c.Content = strings.TrimSpace(c.Content)
	c.Summary = strings.TrimSpace(c.Summary)
	c.Takeaways = compact(c.Takeaways)
	c.Questions = compact(c.Questions)
	return c
}

func compact(ss []string) []string {
	var out []string
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
