package generate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Offline generates deterministic placeholder lessons without any network
// access. Output depends only on the request, so repeated runs of the
// explorer produce the same map.
type Offline struct {
	// Delay simulates generation latency. It honours ctx cancellation.
	Delay time.Duration
}

// Generate writes a short article answering the triggering question.
func (o Offline) Generate(ctx context.Context, req FollowUpRequest) (Content, error) {
	if err := o.wait(ctx); err != nil {
		return Content{}, err
	}
	q := strings.TrimSpace(req.TriggeringQuestionText)
	topic := strings.TrimRight(q, "?")
	parent := firstLine(req.ParentArticleContent)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", q)
	fmt.Fprintf(&b, "This follows on from %q in %s. ", parent, req.Subject)
	fmt.Fprintf(&b, "It looks at %s step by step, starting from what you already know.\n\n", lower(topic))
	b.WriteString("Work through a small example, then try changing one thing at a time.\n")

	return Content{
		Content: b.String(),
		Summary: topic,
		Takeaways: []string{
			fmt.Sprintf("%s builds on %s", topic, parent),
			"Small experiments make the idea concrete",
		},
		Tooltips: map[string]string{
			req.Subject: fmt.Sprintf("The subject you are exploring: %s", req.Subject),
		},
		Questions: []string{
			fmt.Sprintf("Can you show an example of %s?", lower(topic)),
			fmt.Sprintf("What are common mistakes with %s?", lower(topic)),
		},
	}, nil
}

// GenerateInitial writes the opening article of a subject.
func (o Offline) GenerateInitial(ctx context.Context, req InitialRequest) (Content, error) {
	if err := o.wait(ctx); err != nil {
		return Content{}, err
	}
	title := req.ModuleTitle
	if title == "" {
		title = req.Subject
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	if req.ModuleDescription != "" {
		fmt.Fprintf(&b, "%s\n\n", req.ModuleDescription)
	}
	fmt.Fprintf(&b, "This is the starting point for learning %s. ", req.Subject)
	b.WriteString("Pick a question below to branch into a topic.\n")

	return Content{
		Content:   b.String(),
		Summary:   "Introduction to " + title,
		Takeaways: []string{fmt.Sprintf("%s is the starting point", title)},
		Questions: []string{
			fmt.Sprintf("What is %s used for?", req.Subject),
			fmt.Sprintf("What are the core ideas of %s?", req.Subject),
			fmt.Sprintf("How do I get started with %s?", req.Subject),
		},
	}, nil
}

func (o Offline) wait(ctx context.Context) error {
	if o.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(o.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(strings.TrimLeft(line, "# ")); line != "" {
			return line
		}
	}
	return "the previous article"
}

func lower(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

var _ Generator = Offline{}
