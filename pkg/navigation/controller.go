// Package navigation turns learner intent into learning-map mutations and
// content generation requests.
//
// The [Controller] owns the active Article and, per generation key, an
// explicit [QuestionState]. Selecting an unanswered Question synchronously
// creates and links a placeholder Article, makes it active and starts
// generation in the background. At most one generation runs per key;
// generations for different keys are independent and may resolve in any
// order. Navigating away never cancels a generation, and a late result never
// changes the active Article.
package navigation

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/errors"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/generate"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/learnmap"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/observability"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/projection"
)

// Options configures a Controller.
type Options struct {
	Subject           string
	ModuleTitle       string
	ModuleDescription string
	Generator         generate.Generator
	Logger            *log.Logger
}

// Controller is safe for concurrent use. Its lock only guards selection and
// generation state; graph calls and subscriber callbacks happen outside it.
type Controller struct {
	graph *learnmap.Graph
	gen   generate.Generator
	opts  Options
	log   *log.Logger

	mu     sync.Mutex
	active string
	states map[string]GeneratingFollowUp

	subsMu sync.Mutex
	nextID int
	subs   map[int]func(projection.UIState)

	wg sync.WaitGroup
}

// New creates a controller over g. The root Article, if any, starts active.
func New(g *learnmap.Graph, opts Options) *Controller {
	if opts.Generator == nil {
		opts.Generator = generate.Offline{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	c := &Controller{
		graph:  g,
		gen:    opts.Generator,
		opts:   opts,
		log:    opts.Logger,
		states: make(map[string]GeneratingFollowUp),
		subs:   make(map[int]func(projection.UIState)),
	}
	if root, ok := g.RootArticle(); ok {
		c.active = root.ID
	}
	return c
}

// Active returns the active Article id.
func (c *Controller) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// State returns the generation state of key (a Question id, or the root
// Article id for initial content).
func (c *Controller) State(key string) QuestionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.states[key]; ok {
		return s
	}
	return Idle{}
}

// UIState returns the active id and the pending set: the key and the target
// Article id of every running generation.
func (c *Controller) UIState() projection.UIState {
	c.mu.Lock()
	defer c.mu.Unlock()
	ui := projection.UIState{ActiveID: c.active, Pending: make(map[string]bool, 2*len(c.states))}
	for key, s := range c.states {
		ui.Pending[key] = true
		ui.Pending[s.ArticleID] = true
	}
	return ui
}

// Subscribe registers fn to receive the UI state after every selection or
// generation state change. The returned function unsubscribes.
func (c *Controller) Subscribe(fn func(projection.UIState)) func() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.nextID++
	id := c.nextID
	c.subs[id] = fn
	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

func (c *Controller) notify() {
	ui := c.UIState()
	c.subsMu.Lock()
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	fns := make([]func(projection.UIState), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, c.subs[id])
	}
	c.subsMu.Unlock()

	for _, fn := range fns {
		fn(ui)
	}
}

// Wait blocks until every running generation has been applied.
func (c *Controller) Wait() { c.wg.Wait() }

// SelectArticle makes id active. Unknown ids are ignored, since a renderer
// may race ahead of the data.
func (c *Controller) SelectArticle(id string) {
	if _, ok := c.graph.Article(id); !ok {
		c.log.Debug("ignoring selection of unknown article", "id", id)
		return
	}
	c.mu.Lock()
	changed := c.active != id
	c.active = id
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// SelectQuestion navigates through a Question.
//
// An answered Question selects its destination. An unanswered one gets a
// placeholder Article, linked as its destination and made active, and its
// content is generated in the background. Selecting a Question whose
// generation is already running, or an unknown Question, does nothing.
//
// Generation runs on a context detached from ctx's cancellation.
func (c *Controller) SelectQuestion(ctx context.Context, questionID string) error {
	q, ok := c.graph.Question(questionID)
	if !ok {
		c.log.Debug("ignoring selection of unknown question", "id", questionID)
		return nil
	}
	if q.Answered() {
		c.SelectArticle(q.DestinationArticleID)
		return nil
	}

	placeholderID := learnmap.NewID()
	if !c.begin(questionID, placeholderID) {
		return nil
	}
	// Another selection may have answered q between the read above and begin.
	if q, _ = c.graph.Question(questionID); q.Answered() {
		c.end(questionID)
		c.SelectArticle(q.DestinationArticleID)
		return nil
	}

	err := c.graph.AddArticle(learnmap.Article{ID: placeholderID})
	if err == nil {
		err = c.graph.LinkQuestionDestination(questionID, placeholderID)
	}
	if err != nil {
		c.end(questionID)
		c.log.Error("could not create placeholder article", "question", questionID, "error", err)
		return err
	}

	c.mu.Lock()
	c.active = placeholderID
	c.mu.Unlock()
	c.notify()

	c.followUp(ctx, questionID, placeholderID, q)
	return nil
}

// AskQuestion adds a learner-authored Question to an Article and selects it.
// It returns the new Question id.
func (c *Controller) AskQuestion(ctx context.Context, articleID, text string) (string, error) {
	id := learnmap.NewID()
	if err := c.graph.AddQuestion(learnmap.Question{ID: id, Text: text, ArticleID: articleID}); err != nil {
		c.log.Error("could not add question", "article", articleID, "error", err)
		return "", err
	}
	return id, c.SelectQuestion(ctx, id)
}

// StartRoot generates the content of the root Article when it is still a
// placeholder or its last generation failed. Otherwise it does nothing.
func (c *Controller) StartRoot(ctx context.Context) error {
	root, ok := c.graph.RootArticle()
	if !ok {
		return errors.New(errors.ErrCodeInvalidState, "learning map has no root article")
	}
	if !root.IsPlaceholder() && !root.Failed() {
		return nil
	}
	if !c.begin(root.ID, root.ID) {
		return nil
	}
	c.clearError(root)
	c.notify()

	req := generate.InitialRequest{
		Subject:           c.opts.Subject,
		ModuleTitle:       c.opts.ModuleTitle,
		ModuleDescription: c.opts.ModuleDescription,
	}
	c.run(ctx, observability.GenerationInitial, root.ID, root.ID, func(ctx context.Context) (generate.Content, error) {
		return c.gen.GenerateInitial(ctx, req)
	})
	return nil
}

// Retry re-runs the generation of an Article that failed or that is still an
// empty placeholder with nothing generating it, as left behind when a process
// stops mid-generation. Returns NOT_FOUND for unknown Articles and
// INVALID_STATE when the Article already has content.
func (c *Controller) Retry(ctx context.Context, articleID string) error {
	a, ok := c.graph.Article(articleID)
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "article %s not found", articleID)
	}
	if !a.Failed() && !a.IsPlaceholder() {
		return errors.New(errors.ErrCodeInvalidState, "article %s has no failed generation", articleID)
	}
	if a.IsRoot {
		return c.StartRoot(ctx)
	}

	q, ok := c.graph.QuestionLeadingTo(articleID)
	if !ok {
		return errors.New(errors.ErrCodeInvalidState, "article %s has no question to regenerate from", articleID)
	}
	if !c.begin(q.ID, articleID) {
		return nil
	}
	c.clearError(a)
	c.notify()
	c.followUp(ctx, q.ID, articleID, q)
	return nil
}

// Dispatch forwards a renderer event.
func (c *Controller) Dispatch(ctx context.Context, ev Event) error {
	switch ev.Type {
	case SelectArticleEvent:
		c.SelectArticle(ev.ID)
		return nil
	case SelectQuestionEvent:
		return c.SelectQuestion(ctx, ev.ID)
	}
	return errors.New(errors.ErrCodeInvalidInput, "unknown event type %q", ev.Type)
}

// begin marks key as generating articleID. It reports false when a
// generation for key is already running.
func (c *Controller) begin(key, articleID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, pending := c.states[key]; pending {
		return false
	}
	c.states[key] = GeneratingFollowUp{ArticleID: articleID, Since: time.Now()}
	return true
}

func (c *Controller) end(key string) {
	c.mu.Lock()
	delete(c.states, key)
	c.mu.Unlock()
}

func (c *Controller) clearError(a learnmap.Article) {
	if !a.Failed() {
		return
	}
	if err := c.graph.UpdateArticle(a.ID, learnmap.ArticlePatch{GenerationError: learnmap.StringPtr("")}); err != nil {
		c.log.Error("could not clear generation error", "article", a.ID, "error", err)
	}
}

func (c *Controller) followUp(ctx context.Context, key, articleID string, q learnmap.Question) {
	parent, _ := c.graph.Article(q.ArticleID)
	req := generate.FollowUpRequest{
		Subject:                c.opts.Subject,
		ParentArticleContent:   parent.Content,
		TriggeringQuestionText: q.Text,
	}
	c.run(ctx, observability.GenerationFollowUp, key, articleID, func(ctx context.Context) (generate.Content, error) {
		return c.gen.Generate(ctx, req)
	})
}

// run generates in the background and applies the outcome to articleID.
func (c *Controller) run(ctx context.Context, kind observability.GenerationKind, key, articleID string, gen func(context.Context) (generate.Content, error)) {
	ctx = context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.notify()
		defer c.end(key)

		hooks := observability.Generation()
		hooks.OnGenerationStart(ctx, kind, c.opts.Subject)
		start := time.Now()
		content, err := gen(ctx)
		hooks.OnGenerationComplete(ctx, kind, c.opts.Subject, time.Since(start), err)

		if err != nil {
			if !errors.Is(err, errors.ErrCodeGeneration) {
				err = errors.Wrap(errors.ErrCodeGeneration, err, "generate article %s", articleID)
			}
			c.log.Warn("generation failed", "article", articleID, "key", key, "error", err)
			msg := errors.UserMessage(err)
			if uerr := c.graph.UpdateArticle(articleID, learnmap.ArticlePatch{GenerationError: &msg}); uerr != nil {
				c.log.Error("could not record generation error", "article", articleID, "error", uerr)
			}
			return
		}
		c.apply(articleID, content)
	}()
}

func (c *Controller) apply(articleID string, content generate.Content) {
	patch := learnmap.ArticlePatch{
		Content:         &content.Content,
		Summary:         &content.Summary,
		Takeaways:       content.Takeaways,
		Tooltips:        content.Tooltips,
		GenerationError: learnmap.StringPtr(""),
	}
	if patch.Takeaways == nil {
		patch.Takeaways = []string{}
	}
	if err := c.graph.UpdateArticle(articleID, patch); err != nil {
		c.log.Error("could not apply generated content", "article", articleID, "error", err)
		return
	}

	existing := make(map[string]bool)
	for _, q := range c.graph.QuestionsForArticle(articleID) {
		existing[q.Text] = true
	}
	for _, text := range content.Questions {
		if existing[text] {
			continue
		}
		existing[text] = true
		q := learnmap.Question{ID: learnmap.NewID(), Text: text, ArticleID: articleID}
		if err := c.graph.AddQuestion(q); err != nil {
			c.log.Error("could not add surfaced question", "article", articleID, "error", err)
		}
	}
	c.log.Debug("generated article applied", "article", articleID, "questions", len(content.Questions))
}
