package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/storage"
)

// voteDoc — BSON-представление голоса.
type voteDoc struct {
	ID     int64  `bson:"_id"`
	PostID int64  `bson:"post_id"`
	UserID string `bson:"user_id"`
	Vote   int    `bson:"vote"`
}

// model разбирает документ; значение вне {-1, +1} — storage.ErrInvalidRecord.
func (d voteDoc) model() (models.Vote, error) {
	uid, err := uuid.Parse(d.UserID)
	if err != nil {
		return models.Vote{}, fmt.Errorf("%w: vote %d user_id: %w", storage.ErrInvalidRecord, d.ID, err)
	}

	if d.Vote != models.VoteLike && d.Vote != models.VoteDislike {
		return models.Vote{}, fmt.Errorf("%w: vote %d value %d", storage.ErrInvalidRecord, d.ID, d.Vote)
	}

	return models.Vote{ID: d.ID, PostID: d.PostID, UserID: uid, Value: d.Vote}, nil
}

// ListVotes возвращает все голоса за пост.
func (m *Mongo) ListVotes(ctx context.Context, postID int64) ([]models.Vote, error) {
	const op = "storage/mongo/votes/ListVotes"

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cur, err := m.votes.Find(ctx, bson.D{{Key: "post_id", Value: postID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cur.Close(ctx)

	result := make([]models.Vote, 0)
	for cur.Next(ctx) {
		var d voteDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, storage.ErrInvalidRecord, err)
		}

		v, err := d.model()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, v)
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// VoteByVoter возвращает голос пользователя за пост; нет голоса — storage.ErrNotFound.
func (m *Mongo) VoteByVoter(ctx context.Context, postID int64, userID uuid.UUID) (*models.Vote, error) {
	const op = "storage/mongo/votes/VoteByVoter"

	filter := bson.D{{Key: "post_id", Value: postID}, {Key: "user_id", Value: userID.String()}}
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})

	var d voteDoc
	if err := m.votes.FindOne(ctx, filter, opts).Decode(&d); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	v, err := d.model()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &v, nil
}

// InsertVote вставляет голос; поста нет — storage.ErrNotFound.
func (m *Mongo) InsertVote(ctx context.Context, vote models.Vote) (*models.Vote, error) {
	const op = "storage/mongo/votes/InsertVote"

	ok, err := exists(ctx, m.posts, vote.PostID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	id, err := m.nextID(ctx, votesCollection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	d := voteDoc{ID: id, PostID: vote.PostID, UserID: vote.UserID.String(), Vote: vote.Value}
	if _, err := m.votes.InsertOne(ctx, d); err != nil {
		return nil, fmt.Errorf("%s: insert: %w", op, err)
	}

	v, err := d.model()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &v, nil
}

// UpdateVote меняет значение голоса; нет записи — storage.ErrNotFound.
func (m *Mongo) UpdateVote(ctx context.Context, id int64, value int) error {
	const op = "storage/mongo/votes/UpdateVote"

	res, err := m.votes.UpdateByID(ctx, id, bson.D{{Key: "$set", Value: bson.D{{Key: "vote", Value: value}}}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// DeleteVote удаляет голос; нет записи — storage.ErrNotFound.
func (m *Mongo) DeleteVote(ctx context.Context, id int64) error {
	const op = "storage/mongo/votes/DeleteVote"

	res, err := m.votes.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}
