package store

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/errors"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/learnmap"
)

// RedisConfig configures a Redis store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key; defaults to "learnmap:".
	Prefix string
}

// Redis stores each map as a header string plus one hash per entity kind:
//
//	<prefix>subject:<subject>        -> map id
//	<prefix>map:<id>                 -> map header JSON
//	<prefix>map:<id>:articles        hash: article id -> JSON
//	<prefix>map:<id>:questions       hash: question id -> JSON
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisFromClient(client, cfg.Prefix), nil
}

// NewRedisFromClient wraps an existing client. Close closes the client.
func NewRedisFromClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "learnmap:"
	}
	return &Redis{client: client, prefix: prefix}
}

// Client returns the underlying client, e.g. to share it with a cache.
func (r *Redis) Client() *redis.Client { return r.client }

func (r *Redis) Load(ctx context.Context, subjectID string) (learnmap.Snapshot, error) {
	if err := errors.ValidateSubjectID(subjectID); err != nil {
		return learnmap.Snapshot{}, err
	}

	subjectKey := r.prefix + "subject:" + subjectID
	id, err := r.client.Get(ctx, subjectKey).Result()
	if goerrors.Is(err, redis.Nil) {
		id, err = r.create(ctx, subjectKey, subjectID)
	}
	if err != nil {
		return learnmap.Snapshot{}, fmt.Errorf("load subject %s: %w", subjectID, err)
	}

	var s learnmap.Snapshot
	raw, err := r.client.Get(ctx, r.mapKey(id)).Bytes()
	if goerrors.Is(err, redis.Nil) {
		return learnmap.Snapshot{}, unknownMap(id)
	}
	if err != nil {
		return learnmap.Snapshot{}, fmt.Errorf("load map %s: %w", id, err)
	}
	if err := json.Unmarshal(raw, &s.Map); err != nil {
		return learnmap.Snapshot{}, fmt.Errorf("parse map %s: %w", id, err)
	}
	if s.Articles, err = hashValues[learnmap.Article](ctx, r.client, r.mapKey(id)+":articles"); err != nil {
		return learnmap.Snapshot{}, err
	}
	if s.Questions, err = hashValues[learnmap.Question](ctx, r.client, r.mapKey(id)+":questions"); err != nil {
		return learnmap.Snapshot{}, err
	}
	sortSnapshot(&s)
	return s, nil
}

// create writes a fresh map header and claims the subject with SETNX. When
// another writer won the race, its map id is returned instead.
func (r *Redis) create(ctx context.Context, subjectKey, subjectID string) (string, error) {
	lm := newMap(subjectID)
	data, err := json.Marshal(lm)
	if err != nil {
		return "", err
	}
	if err := r.client.Set(ctx, r.mapKey(lm.ID), data, 0).Err(); err != nil {
		return "", err
	}
	ok, err := r.client.SetNX(ctx, subjectKey, lm.ID, 0).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		r.client.Del(ctx, r.mapKey(lm.ID))
		return r.client.Get(ctx, subjectKey).Result()
	}
	return lm.ID, nil
}

func (r *Redis) SaveArticle(ctx context.Context, a learnmap.Article) error {
	return r.save(ctx, a.LearningMapID, "articles", a.ID, a)
}

func (r *Redis) SaveQuestion(ctx context.Context, q learnmap.Question) error {
	return r.save(ctx, q.LearningMapID, "questions", q.ID, q)
}

func (r *Redis) SaveMap(ctx context.Context, lm learnmap.LearningMap) error {
	data, err := json.Marshal(header(lm))
	if err != nil {
		return err
	}
	ok, err := r.client.SetXX(ctx, r.mapKey(lm.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("save map %s: %w", lm.ID, err)
	}
	if !ok {
		return unknownMap(lm.ID)
	}
	return nil
}

func (r *Redis) save(ctx context.Context, mapID, kind, id string, v any) error {
	n, err := r.client.Exists(ctx, r.mapKey(mapID)).Result()
	if err != nil {
		return fmt.Errorf("check map %s: %w", mapID, err)
	}
	if n == 0 {
		return unknownMap(mapID)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := r.client.HSet(ctx, r.mapKey(mapID)+":"+kind, id, data).Err(); err != nil {
		return fmt.Errorf("save %s %s: %w", kind, id, err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) mapKey(id string) string { return r.prefix + "map:" + id }

func hashValues[T any](ctx context.Context, client *redis.Client, key string) ([]T, error) {
	fields, err := client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	out := make([]T, 0, len(fields))
	for field, raw := range fields {
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("parse %s[%s]: %w", key, field, err)
		}
		out = append(out, v)
	}
	return out, nil
}

var _ Store = (*Redis)(nil)
