package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/storage"
)

const voteColumns = `id, post_id, user_id, vote`

// scanVote сканирует голос и отбрасывает значения вне {-1, +1}.
func scanVote(row pgx.Row) (*models.Vote, error) {
	var v models.Vote
	var value int16

	if err := row.Scan(&v.ID, &v.PostID, &v.UserID, &value); err != nil {
		return nil, err
	}

	if value != models.VoteLike && value != models.VoteDislike {
		return nil, fmt.Errorf("%w: vote value %d", storage.ErrInvalidRecord, value)
	}
	v.Value = int(value)

	return &v, nil
}

// ListVotes возвращает все голоса за пост.
func (s *Storage) ListVotes(ctx context.Context, postID int64) ([]models.Vote, error) {
	const op = "storage/postgres/votes/ListVotes"

	q := `SELECT ` + voteColumns + ` FROM votes WHERE post_id = $1 ORDER BY id ASC`

	rows, err := s.db.Query(ctx, q, postID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]models.Vote, 0)
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			if errors.Is(err, storage.ErrInvalidRecord) {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			return nil, fmt.Errorf("%s: %w: %w", op, storage.ErrInvalidRecord, err)
		}
		result = append(result, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// VoteByVoter возвращает голос пользователя за пост.
// Ошибки: storage.ErrNotFound, если голоса нет.
func (s *Storage) VoteByVoter(ctx context.Context, postID int64, userID uuid.UUID) (*models.Vote, error) {
	const op = "storage/postgres/votes/VoteByVoter"

	q := `SELECT ` + voteColumns + ` FROM votes WHERE post_id = $1 AND user_id = $2 ORDER BY id ASC LIMIT 1`

	v, err := scanVote(s.db.QueryRow(ctx, q, postID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

// InsertVote вставляет голос.
// Ошибки: storage.ErrNotFound, если поста нет.
func (s *Storage) InsertVote(ctx context.Context, vote models.Vote) (*models.Vote, error) {
	const op = "storage/postgres/votes/InsertVote"

	q := `INSERT INTO votes (post_id, user_id, vote) VALUES ($1, $2, $3) RETURNING ` + voteColumns

	v, err := scanVote(s.db.QueryRow(ctx, q, vote.PostID, vote.UserID, int16(vote.Value)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

// UpdateVote меняет значение голоса.
// Ошибки: storage.ErrNotFound, если записи нет.
func (s *Storage) UpdateVote(ctx context.Context, id int64, value int) error {
	const op = "storage/postgres/votes/UpdateVote"

	tag, err := s.db.Exec(ctx, `UPDATE votes SET vote = $2 WHERE id = $1`, id, int16(value))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// DeleteVote удаляет голос.
// Ошибки: storage.ErrNotFound, если записи нет.
func (s *Storage) DeleteVote(ctx context.Context, id int64) error {
	const op = "storage/postgres/votes/DeleteVote"

	tag, err := s.db.Exec(ctx, `DELETE FROM votes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}
