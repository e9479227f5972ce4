// mongo предоставляет реализацию storage.Storage на базе MongoDB.
// Целочисленные идентификаторы выдаются коллекцией counters,
// агрегаты списка постов считаются конвейером с $lookup.
package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/pribylovaa/go-forum/internal/storage"
)

const (
	postsCollection       = "posts"
	communitiesCollection = "communities"
	commentsCollection    = "comments"
	votesCollection       = "votes"
	countersCollection    = "counters"
	defaultDBName         = "forum"
)

// Mongo — адаптер MongoDB для постов, сообществ, комментариев и голосов.
type Mongo struct {
	client      *mongodriver.Client
	db          *mongodriver.Database
	posts       *mongodriver.Collection
	communities *mongodriver.Collection
	comments    *mongodriver.Collection
	votes       *mongodriver.Collection
	counters    *mongodriver.Collection
}

// New подключается к MongoDB, проверяет соединение, подготавливает коллекции и индексы.
func New(ctx context.Context, dbURL string) (*Mongo, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("mongo: empty db url")
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(dbURL))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := cli.Database(databaseFromURI(dbURL))

	m := &Mongo{
		client:      cli,
		db:          db,
		posts:       db.Collection(postsCollection),
		communities: db.Collection(communitiesCollection),
		comments:    db.Collection(commentsCollection),
		votes:       db.Collection(votesCollection),
		counters:    db.Collection(countersCollection),
	}

	if err := m.ensureIndexes(ctx); err != nil {
		m.Close()
		return nil, err
	}

	return m, nil
}

// Close отключает клиента.
func (m *Mongo) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = m.client.Disconnect(ctx)
}

// ensureIndexes создает индексы:
// - уникальное имя сообщества;
// - посты: created_at(desc) и community_id + created_at(desc);
// - комментарии поста: post_id + created_at(asc);
// - голоса: post_id + user_id.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	sets := []struct {
		coll   *mongodriver.Collection
		models []mongodriver.IndexModel
	}{
		{m.communities, []mongodriver.IndexModel{{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("name_unique").SetUnique(true),
		}}},
		{m.posts, []mongodriver.IndexModel{
			{
				Keys:    bson.D{{Key: "created_at", Value: -1}},
				Options: options.Index().SetName("created_desc"),
			},
			{
				Keys:    bson.D{{Key: "community_id", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("community_created_desc"),
			},
		}},
		{m.comments, []mongodriver.IndexModel{{
			Keys:    bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("post_created_asc"),
		}}},
		{m.votes, []mongodriver.IndexModel{{
			Keys:    bson.D{{Key: "post_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetName("post_user"),
		}}},
	}

	for _, s := range sets {
		if _, err := s.coll.Indexes().CreateMany(ctx, s.models); err != nil {
			return fmt.Errorf("mongo ensure indexes %s: %w", s.coll.Name(), err)
		}
	}

	return nil
}

// nextID атомарно выдаёт следующий идентификатор для коллекции name.
func (m *Mongo) nextID(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}

	err := m.counters.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: name}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next id %s: %w", name, err)
	}

	return counter.Seq, nil
}

// exists проверяет наличие документа с _id = id.
func exists(ctx context.Context, coll *mongodriver.Collection, id int64) (bool, error) {
	n, err := coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// toMS — MongoDB DateTime хранит миллисекунды.
func toMS(t time.Time) time.Time { return t.UTC().Truncate(time.Millisecond) }

// databaseFromURI извлекает имя базы данных из пути mongodb-URI.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultDBName
}

// Проверка выполнения контракта верхнего уровня.
var _ storage.Storage = (*Mongo)(nil)
