package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/errors"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/learnmap"
)

// File is a Store backed by JSON files:
//
//	<dir>/subjects/<subject>.json         {"map_id": "..."}
//	<dir>/maps/<map>/map.json             map header
//	<dir>/maps/<map>/articles/<id>.json
//	<dir>/maps/<map>/questions/<id>.json
type File struct {
	mu  sync.RWMutex
	dir string
}

type subjectIndex struct {
	MapID string `json:"map_id"`
}

// NewFile creates a file store rooted at dir.
// If dir is empty, defaults to ~/.local/share/learnmap/maps/
func NewFile(dir string) (*File, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		dir = filepath.Join(home, ".local", "share", "learnmap", "maps")
	}
	for _, sub := range []string{"subjects", "maps"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o700); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	return &File{dir: dir}, nil
}

// Path returns the store root directory.
func (f *File) Path() string { return f.dir }

func (f *File) Load(ctx context.Context, subjectID string) (learnmap.Snapshot, error) {
	if err := errors.ValidateSubjectID(subjectID); err != nil {
		return learnmap.Snapshot{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var idx subjectIndex
	found, err := readJSON(f.subjectPath(subjectID), &idx)
	if err != nil {
		return learnmap.Snapshot{}, err
	}
	if !found {
		lm := newMap(subjectID)
		if err := writeJSON(f.mapPath(lm.ID, "map.json"), lm); err != nil {
			return learnmap.Snapshot{}, err
		}
		if err := writeJSON(f.subjectPath(subjectID), subjectIndex{MapID: lm.ID}); err != nil {
			return learnmap.Snapshot{}, err
		}
		return learnmap.Snapshot{Map: lm}, nil
	}

	var s learnmap.Snapshot
	if ok, err := readJSON(f.mapPath(idx.MapID, "map.json"), &s.Map); err != nil {
		return learnmap.Snapshot{}, err
	} else if !ok {
		return learnmap.Snapshot{}, unknownMap(idx.MapID)
	}
	if s.Articles, err = readAll[learnmap.Article](f.mapPath(idx.MapID, "articles")); err != nil {
		return learnmap.Snapshot{}, err
	}
	if s.Questions, err = readAll[learnmap.Question](f.mapPath(idx.MapID, "questions")); err != nil {
		return learnmap.Snapshot{}, err
	}
	sortSnapshot(&s)
	return s, nil
}

func (f *File) SaveArticle(ctx context.Context, a learnmap.Article) error {
	return f.save(a.LearningMapID, "articles", a.ID, a)
}

func (f *File) SaveQuestion(ctx context.Context, q learnmap.Question) error {
	return f.save(q.LearningMapID, "questions", q.ID, q)
}

func (f *File) SaveMap(ctx context.Context, lm learnmap.LearningMap) error {
	if err := errors.ValidateSubjectID(lm.ID); err != nil {
		return unknownMap(lm.ID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	path := f.mapPath(lm.ID, "map.json")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return unknownMap(lm.ID)
	}
	return writeJSON(path, header(lm))
}

func (f *File) save(mapID, kind, id string, v any) error {
	if err := errors.ValidateSubjectID(id); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "entity id %q cannot be stored in a file", id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := errors.ValidateSubjectID(mapID); err != nil {
		return unknownMap(mapID)
	}
	if _, err := os.Stat(f.mapPath(mapID, "map.json")); os.IsNotExist(err) {
		return unknownMap(mapID)
	}
	return writeJSON(f.mapPath(mapID, kind, id+".json"), v)
}

func (f *File) Close() error { return nil }

func (f *File) subjectPath(subjectID string) string {
	return filepath.Join(f.dir, "subjects", subjectID+".json")
}

func (f *File) mapPath(mapID string, elem ...string) string {
	return filepath.Join(append([]string{f.dir, "maps", mapID}, elem...)...)
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

func readAll[T any](dir string) ([]T, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var out []T
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		var v T
		if _, err := readJSON(filepath.Join(dir, entry.Name()), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

var _ Store = (*File)(nil)
