package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/storage"
)

// postDoc — BSON-представление поста.
type postDoc struct {
	ID            int64     `bson:"_id"`
	Title         string    `bson:"title"`
	Content       string    `bson:"content"`
	CreatedAt     time.Time `bson:"created_at"`
	ImageURL      string    `bson:"image_url"`
	AvatarURL     string    `bson:"avatar_url,omitempty"`
	CommunityID   *int64    `bson:"community_id,omitempty"`
	CommunityName string    `bson:"community_name,omitempty"`
	LikeCount     int64     `bson:"like_count,omitempty"`
	CommentCount  int64     `bson:"comment_count,omitempty"`
}

func (d postDoc) model() models.Post {
	return models.Post{
		ID:            d.ID,
		Title:         d.Title,
		Content:       d.Content,
		CreatedAt:     d.CreatedAt,
		ImageURL:      d.ImageURL,
		AvatarURL:     d.AvatarURL,
		CommunityID:   d.CommunityID,
		CommunityName: d.CommunityName,
		LikeCount:     d.LikeCount,
		CommentCount:  d.CommentCount,
	}
}

// decodePosts читает курсор целиком; документ, не прошедший разбор, — storage.ErrInvalidRecord.
func decodePosts(ctx context.Context, cur *mongodriver.Cursor) ([]models.Post, error) {
	defer cur.Close(ctx)

	posts := make([]models.Post, 0)
	for cur.Next(ctx) {
		var d postDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrInvalidRecord, err)
		}
		posts = append(posts, d.model())
	}

	if err := cur.Err(); err != nil {
		return nil, err
	}

	return posts, nil
}

// PostsWithCounts — аналог RPC get_posts_with_counts: сначала новые,
// like_count — число голосов +1, comment_count — число комментариев.
func (m *Mongo) PostsWithCounts(ctx context.Context) ([]models.Post, error) {
	const op = "storage/mongo/posts/PostsWithCounts"

	pipeline := mongodriver.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: votesCollection},
			{Key: "let", Value: bson.D{{Key: "pid", Value: "$_id"}}},
			{Key: "pipeline", Value: bson.A{
				bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{{Key: "$and", Value: bson.A{
					bson.D{{Key: "$eq", Value: bson.A{"$post_id", "$$pid"}}},
					bson.D{{Key: "$eq", Value: bson.A{"$vote", models.VoteLike}}},
				}}}}}}},
			}},
			{Key: "as", Value: "likes"},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: commentsCollection},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "post_id"},
			{Key: "as", Value: "comments"},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "like_count", Value: bson.D{{Key: "$toLong", Value: bson.D{{Key: "$size", Value: "$likes"}}}}},
			{Key: "comment_count", Value: bson.D{{Key: "$toLong", Value: bson.D{{Key: "$size", Value: "$comments"}}}}},
		}}},
		{{Key: "$project", Value: bson.D{{Key: "likes", Value: 0}, {Key: "comments", Value: 0}}}},
	}

	cur, err := m.posts.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	posts, err := decodePosts(ctx, cur)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return posts, nil
}

// PostByID возвращает пост по id; нет документа — storage.ErrNotFound.
func (m *Mongo) PostByID(ctx context.Context, id int64) (*models.Post, error) {
	const op = "storage/mongo/posts/PostByID"

	var d postDoc
	if err := m.posts.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&d); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	post := d.model()
	return &post, nil
}

// PostsByCommunity возвращает посты сообщества с его именем, сначала новые.
func (m *Mongo) PostsByCommunity(ctx context.Context, communityID int64) ([]models.Post, error) {
	const op = "storage/mongo/posts/PostsByCommunity"

	pipeline := mongodriver.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "community_id", Value: communityID}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: communitiesCollection},
			{Key: "localField", Value: "community_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "community"},
		}}},
		{{Key: "$unwind", Value: "$community"}},
		{{Key: "$addFields", Value: bson.D{{Key: "community_name", Value: "$community.name"}}}},
		{{Key: "$project", Value: bson.D{{Key: "community", Value: 0}}}},
	}

	cur, err := m.posts.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	posts, err := decodePosts(ctx, cur)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return posts, nil
}

// CreatePost вставляет пост. Ссылка на несуществующее сообщество — storage.ErrNotFound.
func (m *Mongo) CreatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	const op = "storage/mongo/posts/CreatePost"

	if post.CommunityID != nil {
		ok, err := exists(ctx, m.communities, *post.CommunityID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
	}

	id, err := m.nextID(ctx, postsCollection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	d := postDoc{
		ID:          id,
		Title:       post.Title,
		Content:     post.Content,
		CreatedAt:   toMS(time.Now()),
		ImageURL:    post.ImageURL,
		AvatarURL:   post.AvatarURL,
		CommunityID: post.CommunityID,
	}

	if _, err := m.posts.InsertOne(ctx, d); err != nil {
		return nil, fmt.Errorf("%s: insert: %w", op, err)
	}

	result := d.model()
	return &result, nil
}
