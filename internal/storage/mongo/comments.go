package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/storage"
)

// commentDoc — BSON-представление комментария; user_id хранится строкой.
type commentDoc struct {
	ID        int64     `bson:"_id"`
	PostID    int64     `bson:"post_id"`
	ParentID  *int64    `bson:"parent_comment_id"`
	Content   string    `bson:"content"`
	UserID    string    `bson:"user_id"`
	Author    string    `bson:"author"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d commentDoc) model() (models.Comment, error) {
	uid, err := uuid.Parse(d.UserID)
	if err != nil {
		return models.Comment{}, fmt.Errorf("%w: comment %d user_id: %w", storage.ErrInvalidRecord, d.ID, err)
	}

	return models.Comment{
		ID:        d.ID,
		PostID:    d.PostID,
		ParentID:  d.ParentID,
		Content:   d.Content,
		UserID:    uid,
		Author:    d.Author,
		CreatedAt: d.CreatedAt,
	}, nil
}

// ListComments возвращает комментарии поста плоским списком, сначала старые.
func (m *Mongo) ListComments(ctx context.Context, postID int64) ([]models.Comment, error) {
	const op = "storage/mongo/comments/ListComments"

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := m.comments.Find(ctx, bson.D{{Key: "post_id", Value: postID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cur.Close(ctx)

	result := make([]models.Comment, 0)
	for cur.Next(ctx) {
		var d commentDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, storage.ErrInvalidRecord, err)
		}

		c, err := d.model()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, c)
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// CreateComment вставляет комментарий.
// Отсутствующий пост или родитель (из другого поста тоже) — storage.ErrNotFound.
func (m *Mongo) CreateComment(ctx context.Context, comment models.Comment) (*models.Comment, error) {
	const op = "storage/mongo/comments/CreateComment"

	ok, err := exists(ctx, m.posts, comment.PostID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: post: %w", op, storage.ErrNotFound)
	}

	if comment.ParentID != nil {
		n, err := m.comments.CountDocuments(ctx, bson.D{
			{Key: "_id", Value: *comment.ParentID},
			{Key: "post_id", Value: comment.PostID},
		}, options.Count().SetLimit(1))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("%s: parent: %w", op, storage.ErrNotFound)
		}
	}

	id, err := m.nextID(ctx, commentsCollection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	d := commentDoc{
		ID:        id,
		PostID:    comment.PostID,
		ParentID:  comment.ParentID,
		Content:   comment.Content,
		UserID:    comment.UserID.String(),
		Author:    comment.Author,
		CreatedAt: toMS(time.Now()),
	}

	if _, err := m.comments.InsertOne(ctx, d); err != nil {
		return nil, fmt.Errorf("%s: insert: %w", op, err)
	}

	result, err := d.model()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &result, nil
}
