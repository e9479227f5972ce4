package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/storage"
)

// ListCommunities возвращает сообщества, сначала новые.
func (m *Mongo) ListCommunities(ctx context.Context) ([]models.Community, error) {
	const op = "storage/mongo/communities/ListCommunities"

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	cur, err := m.communities.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cur.Close(ctx)

	result := make([]models.Community, 0)
	for cur.Next(ctx) {
		var d communityDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, storage.ErrInvalidRecord, err)
		}
		result = append(result, d.model())
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// CreateCommunity вставляет сообщество; занятое имя — storage.ErrConflict.
func (m *Mongo) CreateCommunity(ctx context.Context, community models.Community) (*models.Community, error) {
	const op = "storage/mongo/communities/CreateCommunity"

	id, err := m.nextID(ctx, communitiesCollection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	d := communityDoc{
		ID:          id,
		Name:        community.Name,
		Description: community.Description,
		CreatedAt:   toMS(time.Now()),
	}

	if _, err := m.communities.InsertOne(ctx, d); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrConflict)
		}

		return nil, fmt.Errorf("%s: insert: %w", op, err)
	}

	result := d.model()
	return &result, nil
}

// communityDoc — BSON-представление сообщества.
type communityDoc struct {
	ID          int64     `bson:"_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	CreatedAt   time.Time `bson:"created_at"`
}

func (d communityDoc) model() models.Community {
	return models.Community{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
	}
}
