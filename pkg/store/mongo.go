package store

import (
	"context"
	goerrors "errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/errors"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/learnmap"
)

// Mongo keeps maps, articles and questions in three collections of one
// database. A unique index on maps.subject_id makes map creation race-free.
type Mongo struct {
	client    *mongo.Client
	maps      *mongo.Collection
	articles  *mongo.Collection
	questions *mongo.Collection
}

// NewMongo connects to uri and ensures the indexes exist.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	if database == "" {
		database = "learnmap"
	}
	db := client.Database(database)
	m := &Mongo{
		client:    client,
		maps:      db.Collection("maps"),
		articles:  db.Collection("articles"),
		questions: db.Collection("questions"),
	}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	if _, err := m.maps.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "subject_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create maps index: %w", err)
	}
	byMap := mongo.IndexModel{Keys: bson.D{{Key: "learning_map_id", Value: 1}, {Key: "created_at", Value: 1}}}
	if _, err := m.articles.Indexes().CreateOne(ctx, byMap); err != nil {
		return fmt.Errorf("create articles index: %w", err)
	}
	if _, err := m.questions.Indexes().CreateOne(ctx, byMap); err != nil {
		return fmt.Errorf("create questions index: %w", err)
	}
	return nil
}

func (m *Mongo) Load(ctx context.Context, subjectID string) (learnmap.Snapshot, error) {
	if err := errors.ValidateSubjectID(subjectID); err != nil {
		return learnmap.Snapshot{}, err
	}

	lm, err := m.findOrCreate(ctx, subjectID)
	if err != nil {
		return learnmap.Snapshot{}, err
	}

	s := learnmap.Snapshot{Map: lm}
	if s.Articles, err = findAll[learnmap.Article](ctx, m.articles, lm.ID); err != nil {
		return learnmap.Snapshot{}, err
	}
	if s.Questions, err = findAll[learnmap.Question](ctx, m.questions, lm.ID); err != nil {
		return learnmap.Snapshot{}, err
	}
	sortSnapshot(&s)
	return s, nil
}

func (m *Mongo) findOrCreate(ctx context.Context, subjectID string) (learnmap.LearningMap, error) {
	var lm learnmap.LearningMap
	err := m.maps.FindOne(ctx, bson.M{"subject_id": subjectID}).Decode(&lm)
	if err == nil {
		return lm, nil
	}
	if !goerrors.Is(err, mongo.ErrNoDocuments) {
		return lm, fmt.Errorf("find map for %s: %w", subjectID, err)
	}

	lm = newMap(subjectID)
	if _, err := m.maps.InsertOne(ctx, lm); err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return lm, fmt.Errorf("create map for %s: %w", subjectID, err)
		}
		// Lost the race to a concurrent Load; use the winner's map.
		if err := m.maps.FindOne(ctx, bson.M{"subject_id": subjectID}).Decode(&lm); err != nil {
			return lm, fmt.Errorf("find map for %s: %w", subjectID, err)
		}
	}
	return lm, nil
}

func (m *Mongo) SaveArticle(ctx context.Context, a learnmap.Article) error {
	return m.save(ctx, m.articles, a.LearningMapID, a.ID, a)
}

func (m *Mongo) SaveQuestion(ctx context.Context, q learnmap.Question) error {
	return m.save(ctx, m.questions, q.LearningMapID, q.ID, q)
}

func (m *Mongo) SaveMap(ctx context.Context, lm learnmap.LearningMap) error {
	res, err := m.maps.ReplaceOne(ctx, bson.M{"_id": lm.ID}, header(lm))
	if err != nil {
		return fmt.Errorf("save map %s: %w", lm.ID, err)
	}
	if res.MatchedCount == 0 {
		return unknownMap(lm.ID)
	}
	return nil
}

func (m *Mongo) save(ctx context.Context, coll *mongo.Collection, mapID, id string, doc any) error {
	n, err := m.maps.CountDocuments(ctx, bson.M{"_id": mapID}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("check map %s: %w", mapID, err)
	}
	if n == 0 {
		return unknownMap(mapID)
	}
	_, err = coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save %s %s: %w", coll.Name(), id, err)
	}
	return nil
}

func (m *Mongo) Close() error {
	return m.client.Disconnect(context.Background())
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, mapID string) ([]T, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := coll.Find(ctx, bson.M{"learning_map_id": mapID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	var out []T
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	return out, nil
}

var _ Store = (*Mongo)(nil)
