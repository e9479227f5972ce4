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

const commentColumns = `id, post_id, parent_comment_id, content, user_id, author, created_at`

func scanComment(row pgx.Row) (*models.Comment, error) {
	var c models.Comment

	if err := row.Scan(
		&c.ID,
		&c.PostID,
		&c.ParentID,
		&c.Content,
		&c.UserID,
		&c.Author,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}

	return &c, nil
}

// ListComments возвращает комментарии поста плоским списком, сначала старые.
func (s *Storage) ListComments(ctx context.Context, postID int64) ([]models.Comment, error) {
	const op = "storage/postgres/comments/ListComments"

	q := `SELECT ` + commentColumns + ` FROM comments WHERE post_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := s.db.Query(ctx, q, postID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]models.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
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

// CreateComment вставляет комментарий.
// Ошибки: storage.ErrNotFound, если пост или родитель отсутствуют.
func (s *Storage) CreateComment(ctx context.Context, comment models.Comment) (*models.Comment, error) {
	const op = "storage/postgres/comments/CreateComment"

	q := `
	INSERT INTO comments (post_id, parent_comment_id, content, user_id, author)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING ` + commentColumns

	result, err := scanComment(s.db.QueryRow(ctx, q,
		comment.PostID,
		comment.ParentID,
		comment.Content,
		comment.UserID,
		comment.Author,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}
