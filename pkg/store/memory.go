package store

import (
	"context"
	"slices"
	"sync"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/errors"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/learnmap"
)

// Memory is an in-process Store. Entities keep their first-save order.
type Memory struct {
	mu        sync.RWMutex
	bySubject map[string]string
	maps      map[string]*memoryMap
}

type memoryMap struct {
	header    learnmap.LearningMap
	articles  []learnmap.Article
	questions []learnmap.Question
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		bySubject: make(map[string]string),
		maps:      make(map[string]*memoryMap),
	}
}

func (m *Memory) Load(ctx context.Context, subjectID string) (learnmap.Snapshot, error) {
	if err := errors.ValidateSubjectID(subjectID); err != nil {
		return learnmap.Snapshot{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.bySubject[subjectID]
	if !ok {
		lm := newMap(subjectID)
		id = lm.ID
		m.bySubject[subjectID] = id
		m.maps[id] = &memoryMap{header: lm}
	}
	mm := m.maps[id]
	s := learnmap.Snapshot{
		Map:       mm.header,
		Articles:  slices.Clone(mm.articles),
		Questions: slices.Clone(mm.questions),
	}
	sortSnapshot(&s)
	return s, nil
}

func (m *Memory) SaveArticle(ctx context.Context, a learnmap.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mm, ok := m.maps[a.LearningMapID]
	if !ok {
		return unknownMap(a.LearningMapID)
	}
	if i := slices.IndexFunc(mm.articles, func(x learnmap.Article) bool { return x.ID == a.ID }); i >= 0 {
		mm.articles[i] = a
	} else {
		mm.articles = append(mm.articles, a)
	}
	return nil
}

func (m *Memory) SaveQuestion(ctx context.Context, q learnmap.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mm, ok := m.maps[q.LearningMapID]
	if !ok {
		return unknownMap(q.LearningMapID)
	}
	if i := slices.IndexFunc(mm.questions, func(x learnmap.Question) bool { return x.ID == q.ID }); i >= 0 {
		mm.questions[i] = q
	} else {
		mm.questions = append(mm.questions, q)
	}
	return nil
}

func (m *Memory) SaveMap(ctx context.Context, lm learnmap.LearningMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mm, ok := m.maps[lm.ID]
	if !ok {
		return unknownMap(lm.ID)
	}
	mm.header = header(lm)
	return nil
}

func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
