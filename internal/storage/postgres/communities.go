package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/storage"
)

const communityColumns = `id, name, description, created_at`

func scanCommunity(row pgx.Row) (*models.Community, error) {
	var c models.Community

	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
		return nil, err
	}

	return &c, nil
}

// ListCommunities возвращает сообщества, сначала новые.
func (s *Storage) ListCommunities(ctx context.Context) ([]models.Community, error) {
	const op = "storage/postgres/communities/ListCommunities"

	q := `SELECT ` + communityColumns + ` FROM communities ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]models.Community, 0)
	for rows.Next() {
		c, err := scanCommunity(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, storage.ErrInvalidRecord, err)
		}
		result = append(result, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// CreateCommunity вставляет сообщество.
// Ошибки: storage.ErrConflict при занятом имени.
func (s *Storage) CreateCommunity(ctx context.Context, community models.Community) (*models.Community, error) {
	const op = "storage/postgres/communities/CreateCommunity"

	q := `
	INSERT INTO communities (name, description)
	VALUES ($1, $2)
	RETURNING ` + communityColumns

	result, err := scanCommunity(s.db.QueryRow(ctx, q, community.Name, community.Description))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrConflict)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}
