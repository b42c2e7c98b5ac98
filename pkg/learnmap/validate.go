package learnmap

import (
	"cmp"
	"slices"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/errors"
)

type state struct {
	lm        LearningMap
	articles  map[string]*Article
	questions map[string]*Question
	order     []Entry
	outgoing  map[string][]string
	rootID    string
}

// buildState validates a snapshot and indexes it. Nothing is shared with
// the snapshot's slices or maps.
func buildState(s Snapshot) (*state, error) {
	if s.Map.ID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "snapshot has no learning map id")
	}

	st := &state{
		lm:        s.Map,
		articles:  make(map[string]*Article, len(s.Articles)),
		questions: make(map[string]*Question, len(s.Questions)),
		outgoing:  make(map[string][]string),
	}
	st.lm.ArticleIDs = nil
	st.lm.QuestionIDs = nil

	for _, a := range s.Articles {
		if err := errors.ValidateEntityID(a.ID); err != nil {
			return nil, errors.Wrap(errors.ErrCodeValidation, err, "invalid article")
		}
		if _, dup := st.articles[a.ID]; dup {
			return nil, errors.New(errors.ErrCodeValidation, "duplicate article id %s", a.ID)
		}
		if a.LearningMapID == "" {
			a.LearningMapID = s.Map.ID
		} else if a.LearningMapID != s.Map.ID {
			return nil, errors.New(errors.ErrCodeValidation, "article %s belongs to map %s, not %s", a.ID, a.LearningMapID, s.Map.ID)
		}
		if a.IsRoot {
			if st.rootID != "" {
				return nil, errors.New(errors.ErrCodeValidation, "map %s has more than one root article (%s, %s)", s.Map.ID, st.rootID, a.ID)
			}
			st.rootID = a.ID
		}
		c := a.clone()
		st.articles[a.ID] = &c
	}
	if st.rootID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "map %s has no root article", s.Map.ID)
	}

	for _, q := range s.Questions {
		if err := errors.ValidateEntityID(q.ID); err != nil {
			return nil, errors.Wrap(errors.ErrCodeValidation, err, "invalid question")
		}
		if _, dup := st.questions[q.ID]; dup {
			return nil, errors.New(errors.ErrCodeValidation, "duplicate question id %s", q.ID)
		}
		if _, clash := st.articles[q.ID]; clash {
			return nil, errors.New(errors.ErrCodeValidation, "id %s is used by an article and a question", q.ID)
		}
		if q.Text == "" {
			return nil, errors.New(errors.ErrCodeValidation, "question %s has no text", q.ID)
		}
		if q.LearningMapID == "" {
			q.LearningMapID = s.Map.ID
		} else if q.LearningMapID != s.Map.ID {
			return nil, errors.New(errors.ErrCodeValidation, "question %s belongs to map %s, not %s", q.ID, q.LearningMapID, s.Map.ID)
		}
		if _, ok := st.articles[q.ArticleID]; !ok {
			return nil, errors.New(errors.ErrCodeValidation, "question %s references missing article %s", q.ID, q.ArticleID)
		}
		if q.DestinationArticleID != "" {
			if _, ok := st.articles[q.DestinationArticleID]; !ok {
				return nil, errors.New(errors.ErrCodeValidation, "question %s leads to missing article %s", q.ID, q.DestinationArticleID)
			}
		}
		c := q.clone()
		st.questions[q.ID] = &c
	}

	st.order = orderEntries(s)
	for _, e := range st.order {
		if e.Kind == EntryQuestion {
			q := st.questions[e.ID]
			st.outgoing[q.ArticleID] = append(st.outgoing[q.ArticleID], q.ID)
		}
	}

	if err := st.detectCycles(); err != nil {
		return nil, err
	}
	return st, nil
}

// orderEntries sorts entities by creation time. SortStableFunc keeps
// Articles ahead of Questions and snapshot order on ties.
func orderEntries(s Snapshot) []Entry {
	type timed struct {
		Entry
		at int64
	}
	all := make([]timed, 0, len(s.Articles)+len(s.Questions))
	for _, a := range s.Articles {
		all = append(all, timed{Entry{EntryArticle, a.ID}, a.CreatedAt.UnixNano()})
	}
	for _, q := range s.Questions {
		all = append(all, timed{Entry{EntryQuestion, q.ID}, q.CreatedAt.UnixNano()})
	}
	slices.SortStableFunc(all, func(a, b timed) int { return cmp.Compare(a.at, b.at) })

	out := make([]Entry, len(all))
	for i, t := range all {
		out[i] = t.Entry
	}
	return out
}

// detectCycles runs a white/gray/black depth-first search over the
// Article -> Question -> Article relation.
func (st *state) detectCycles() error {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(st.articles))
	var cycleAt string

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, qid := range st.outgoing[id] {
			child := st.questions[qid].DestinationArticleID
			if child == "" {
				continue
			}
			switch color[child] {
			case white:
				dfs(child)
				if cycleAt != "" {
					return
				}
			case gray:
				cycleAt = child
				return
			}
		}
		color[id] = black
	}

	for _, e := range st.order {
		if e.Kind != EntryArticle || color[e.ID] != white {
			continue
		}
		dfs(e.ID)
		if cycleAt != "" {
			return errors.New(errors.ErrCodeValidation, "map %s contains a cycle through article %s", st.lm.ID, cycleAt)
		}
	}
	return nil
}
