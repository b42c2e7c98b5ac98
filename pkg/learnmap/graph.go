package learnmap

import (
	"slices"
	"sync"
	"time"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/errors"
)

// Graph is the canonical read/write store for one learning map.
//
// The zero value is not usable - use New. Graph is safe for concurrent use;
// mutations are serialized and each one is published to subscribers after the
// lock is released. Entities returned by lookups are copies.
type Graph struct {
	mu        sync.RWMutex
	lm        LearningMap
	articles  map[string]*Article
	questions map[string]*Question
	order     []Entry
	outgoing  map[string][]string // articleID -> question IDs, insertion order
	rootID    string
	dirty     bool

	events hub
}

// New creates an empty Graph. Call Initialize before use.
func New() *Graph {
	return &Graph{
		articles:  make(map[string]*Article),
		questions: make(map[string]*Question),
		outgoing:  make(map[string][]string),
	}
}

// Subscribe registers fn to receive an Event after every accepted mutation.
// The returned function removes the subscription; calling it twice is safe.
func (g *Graph) Subscribe(fn Subscriber) func() {
	return g.events.subscribe(fn)
}

// Dirty reports whether the graph changed since the last ClearDirty.
func (g *Graph) Dirty() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dirty
}

// ClearDirty resets the layout dirty flag, typically right before a layout
// request is built from the current state.
func (g *Graph) ClearDirty() {
	g.mu.Lock()
	g.dirty = false
	g.mu.Unlock()
}

// Initialize replaces the graph state wholesale with snapshot.
//
// It returns a VALIDATION error, and leaves the current state untouched, when
// the snapshot violates the map invariants: missing map id, empty or duplicate
// ids, not exactly one root Article, foreign learning map ids, Questions that
// reference missing Articles, or a cycle through Article -> Question -> Article.
//
// Entities are ordered by CreatedAt (stable); on ties Articles come first,
// then snapshot order.
func (g *Graph) Initialize(s Snapshot) error {
	state, err := buildState(s)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.lm = state.lm
	g.articles = state.articles
	g.questions = state.questions
	g.order = state.order
	g.outgoing = state.outgoing
	g.rootID = state.rootID
	g.dirty = true
	ids := entryIDs(g.order)
	g.mu.Unlock()

	g.events.publish(Event{Kind: EventInitialized, IDs: ids})
	return nil
}

// AddArticle inserts a new Article.
//
// Returns CONFLICT if the id is taken by any entity, VALIDATION if the id is
// empty, the Article belongs to another map, or it would be a second root.
// An empty LearningMapID is filled in; zero timestamps are set to now.
func (g *Graph) AddArticle(a Article) error {
	if err := errors.ValidateEntityID(a.ID); err != nil {
		return err
	}

	g.mu.Lock()
	if g.exists(a.ID) {
		g.mu.Unlock()
		return errors.New(errors.ErrCodeConflict, "entity %s already exists", a.ID)
	}
	if err := g.claimMap(&a.LearningMapID); err != nil {
		g.mu.Unlock()
		return err
	}
	if a.IsRoot && g.rootID != "" {
		g.mu.Unlock()
		return errors.New(errors.ErrCodeValidation, "map %s already has root article %s", g.lm.ID, g.rootID)
	}
	stamp(&a.CreatedAt, &a.UpdatedAt)

	stored := a.clone()
	g.articles[a.ID] = &stored
	g.order = append(g.order, Entry{Kind: EntryArticle, ID: a.ID})
	if a.IsRoot {
		g.rootID = a.ID
	}
	g.touch()
	g.mu.Unlock()

	g.events.publish(Event{Kind: EventArticleAdded, IDs: []string{a.ID}})
	return nil
}

// UpdateArticle merges the non-nil fields of patch into the Article.
// Returns NOT_FOUND if the id is absent.
func (g *Graph) UpdateArticle(id string, patch ArticlePatch) error {
	g.mu.Lock()
	a, ok := g.articles[id]
	if !ok {
		g.mu.Unlock()
		return errors.New(errors.ErrCodeNotFound, "article %s not found", id)
	}
	if patch.Content != nil {
		a.Content = *patch.Content
	}
	if patch.Summary != nil {
		a.Summary = *patch.Summary
	}
	if patch.Takeaways != nil {
		a.Takeaways = slices.Clone(patch.Takeaways)
	}
	if patch.Tooltips != nil {
		a.Tooltips = make(map[string]string, len(patch.Tooltips))
		for k, v := range patch.Tooltips {
			a.Tooltips[k] = v
		}
	}
	if patch.GenerationError != nil {
		a.GenerationError = *patch.GenerationError
	}
	a.UpdatedAt = now()
	g.touch()
	g.mu.Unlock()

	g.events.publish(Event{Kind: EventArticleUpdated, IDs: []string{id}})
	return nil
}

// AddQuestion inserts a new Question attached to an existing Article.
//
// Returns CONFLICT on a duplicate id, NOT_FOUND if the source Article is
// absent, and VALIDATION for an empty id or text, a foreign map id, or a
// pre-set destination that is missing or would close a cycle.
func (g *Graph) AddQuestion(q Question) error {
	if err := errors.ValidateEntityID(q.ID); err != nil {
		return err
	}
	if q.Text == "" {
		return errors.New(errors.ErrCodeValidation, "question %s has no text", q.ID)
	}

	g.mu.Lock()
	if g.exists(q.ID) {
		g.mu.Unlock()
		return errors.New(errors.ErrCodeConflict, "entity %s already exists", q.ID)
	}
	if _, ok := g.articles[q.ArticleID]; !ok {
		g.mu.Unlock()
		return errors.New(errors.ErrCodeNotFound, "source article %s not found", q.ArticleID)
	}
	if err := g.claimMap(&q.LearningMapID); err != nil {
		g.mu.Unlock()
		return err
	}
	if q.DestinationArticleID != "" {
		if _, ok := g.articles[q.DestinationArticleID]; !ok {
			g.mu.Unlock()
			return errors.New(errors.ErrCodeValidation, "question %s links to missing article %s", q.ID, q.DestinationArticleID)
		}
		if g.reaches(q.DestinationArticleID, q.ArticleID) {
			g.mu.Unlock()
			return errors.New(errors.ErrCodeValidation, "question %s would create a cycle", q.ID)
		}
	}
	stamp(&q.CreatedAt, &q.UpdatedAt)

	stored := q.clone()
	g.questions[q.ID] = &stored
	g.outgoing[q.ArticleID] = append(g.outgoing[q.ArticleID], q.ID)
	g.order = append(g.order, Entry{Kind: EntryQuestion, ID: q.ID})
	g.touch()
	g.mu.Unlock()

	g.events.publish(Event{Kind: EventQuestionAdded, IDs: []string{q.ID}})
	return nil
}

// LinkQuestionDestination sets the destination Article of a Question.
//
// The transition from unlinked to linked happens exactly once: a second call
// returns INVALID_STATE and leaves the destination unchanged. Unknown ids
// return NOT_FOUND; a link that would close a cycle returns VALIDATION.
func (g *Graph) LinkQuestionDestination(questionID, articleID string) error {
	g.mu.Lock()
	q, ok := g.questions[questionID]
	if !ok {
		g.mu.Unlock()
		return errors.New(errors.ErrCodeNotFound, "question %s not found", questionID)
	}
	if q.DestinationArticleID != "" {
		dest := q.DestinationArticleID
		g.mu.Unlock()
		return errors.New(errors.ErrCodeInvalidState, "question %s already leads to article %s", questionID, dest)
	}
	if _, ok := g.articles[articleID]; !ok {
		g.mu.Unlock()
		return errors.New(errors.ErrCodeNotFound, "article %s not found", articleID)
	}
	if g.reaches(articleID, q.ArticleID) {
		g.mu.Unlock()
		return errors.New(errors.ErrCodeValidation, "linking question %s to article %s would create a cycle", questionID, articleID)
	}
	q.DestinationArticleID = articleID
	q.UpdatedAt = now()
	g.touch()
	g.mu.Unlock()

	g.events.publish(Event{Kind: EventQuestionLinked, IDs: []string{questionID, articleID}})
	return nil
}

// ApplyPositions writes accepted layout positions back onto Articles and
// Questions. Only ids present in positions are touched and unknown ids are
// ignored, so a partial result never erases existing positions. It returns
// the ids whose position changed, in insertion order.
//
// ApplyPositions publishes EventPositionsApplied when anything changed, but
// it does not mark the graph dirty: positions are layout output, not input.
func (g *Graph) ApplyPositions(positions map[string]Position) []string {
	g.mu.Lock()
	var changed []string
	for _, e := range g.order {
		p, ok := positions[e.ID]
		if !ok {
			continue
		}
		var cur **Position
		switch e.Kind {
		case EntryArticle:
			cur = &g.articles[e.ID].Position
		case EntryQuestion:
			cur = &g.questions[e.ID].Position
		}
		if *cur != nil && **cur == p {
			continue
		}
		np := p
		*cur = &np
		changed = append(changed, e.ID)
	}
	g.mu.Unlock()

	if len(changed) > 0 {
		g.events.publish(Event{Kind: EventPositionsApplied, IDs: changed})
	}
	return changed
}

// Map returns the learning map header with ids derived from the graph.
func (g *Graph) Map() LearningMap {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mapLocked()
}

// Article returns the Article with the given id.
func (g *Graph) Article(id string) (Article, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.articles[id]
	if !ok {
		return Article{}, false
	}
	return a.clone(), true
}

// RootArticle returns the map's root Article, or false before Initialize.
func (g *Graph) RootArticle() (Article, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.articles[g.rootID]
	if !ok {
		return Article{}, false
	}
	return a.clone(), true
}

// Question returns the Question with the given id.
func (g *Graph) Question(id string) (Question, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	q, ok := g.questions[id]
	if !ok {
		return Question{}, false
	}
	return q.clone(), true
}

// QuestionsForArticle returns the Questions attached to an Article, in
// insertion order. Returns nil for unknown ids.
func (g *Graph) QuestionsForArticle(articleID string) []Question {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.outgoing[articleID]
	if len(ids) == 0 {
		return nil
	}
	out := make([]Question, len(ids))
	for i, id := range ids {
		out[i] = g.questions[id].clone()
	}
	return out
}

// QuestionLeadingTo returns the first Question (in insertion order) whose
// destination is articleID. The root Article has none.
func (g *Graph) QuestionLeadingTo(articleID string) (Question, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, e := range g.order {
		if e.Kind != EntryQuestion {
			continue
		}
		if q := g.questions[e.ID]; q.DestinationArticleID == articleID {
			return q.clone(), true
		}
	}
	return Question{}, false
}

// Articles returns all Articles in insertion order.
func (g *Graph) Articles() []Article {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Article, 0, len(g.articles))
	for _, e := range g.order {
		if e.Kind == EntryArticle {
			out = append(out, g.articles[e.ID].clone())
		}
	}
	return out
}

// Questions returns all Questions in insertion order.
func (g *Graph) Questions() []Question {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Question, 0, len(g.questions))
	for _, e := range g.order {
		if e.Kind == EntryQuestion {
			out = append(out, g.questions[e.ID].clone())
		}
	}
	return out
}

// Entries returns the insertion order of all entities.
func (g *Graph) Entries() []Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.order)
}

// View is a consistent copy of the whole graph taken under one read lock.
type View struct {
	Map       LearningMap
	Entries   []Entry
	Articles  map[string]Article
	Questions map[string]Question
	RootID    string
}

// View returns the current state for projection.
func (g *Graph) View() View {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v := View{
		Map:       g.mapLocked(),
		Entries:   slices.Clone(g.order),
		Articles:  make(map[string]Article, len(g.articles)),
		Questions: make(map[string]Question, len(g.questions)),
		RootID:    g.rootID,
	}
	for id, a := range g.articles {
		v.Articles[id] = a.clone()
	}
	for id, q := range g.questions {
		v.Questions[id] = q.clone()
	}
	return v
}

// Snapshot returns a deep copy of the whole map, suitable for persistence or
// for initializing another Graph.
func (g *Graph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := Snapshot{
		Map:       g.mapLocked(),
		Articles:  make([]Article, 0, len(g.articles)),
		Questions: make([]Question, 0, len(g.questions)),
	}
	for _, e := range g.order {
		switch e.Kind {
		case EntryArticle:
			s.Articles = append(s.Articles, g.articles[e.ID].clone())
		case EntryQuestion:
			s.Questions = append(s.Questions, g.questions[e.ID].clone())
		}
	}
	return s
}

func (g *Graph) mapLocked() LearningMap {
	lm := g.lm
	lm.ArticleIDs = make([]string, 0, len(g.articles))
	lm.QuestionIDs = make([]string, 0, len(g.questions))
	for _, e := range g.order {
		if e.Kind == EntryArticle {
			lm.ArticleIDs = append(lm.ArticleIDs, e.ID)
		} else {
			lm.QuestionIDs = append(lm.QuestionIDs, e.ID)
		}
	}
	return lm
}

func (g *Graph) exists(id string) bool {
	_, a := g.articles[id]
	_, q := g.questions[id]
	return a || q
}

// claimMap fills an empty learning map id or rejects a foreign one.
func (g *Graph) claimMap(id *string) error {
	if *id == "" {
		*id = g.lm.ID
		return nil
	}
	if *id != g.lm.ID {
		return errors.New(errors.ErrCodeValidation, "entity belongs to map %s, not %s", *id, g.lm.ID)
	}
	return nil
}

// reaches reports whether to is reachable from from following
// Article -> Question -> destination Article links (from == to counts).
func (g *Graph) reaches(from, to string) bool {
	seen := make(map[string]bool)
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == to {
			return true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		for _, qid := range g.outgoing[id] {
			if dest := g.questions[qid].DestinationArticleID; dest != "" {
				stack = append(stack, dest)
			}
		}
	}
	return false
}

func (g *Graph) touch() {
	g.dirty = true
	g.lm.UpdatedAt = now()
}

func stamp(created, updated *time.Time) {
	t := now()
	if created.IsZero() {
		*created = t
	}
	if updated.IsZero() {
		*updated = *created
	}
}

func now() time.Time { return time.Now().UTC() }

func entryIDs(order []Entry) []string {
	ids := make([]string, len(order))
	for i, e := range order {
		ids[i] = e.ID
	}
	return ids
}
