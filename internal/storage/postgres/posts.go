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

// postColumns — колонки таблицы posts в порядке сканирования scanPost.
const postColumns = `id, title, content, created_at, image_url, avatar_url, community_id`

// scanPost сканирует строку поста; NULL в avatar_url превращается в пустую строку.
func scanPost(row pgx.Row, extra ...any) (*models.Post, error) {
	var post models.Post
	var avatar *string

	dest := []any{
		&post.ID,
		&post.Title,
		&post.Content,
		&post.CreatedAt,
		&post.ImageURL,
		&avatar,
		&post.CommunityID,
	}

	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if avatar != nil {
		post.AvatarURL = *avatar
	}

	return &post, nil
}

// collectPosts читает все строки выборки постов.
// Дополнительные колонки после postColumns заполняются через fill.
func collectPosts(rows pgx.Rows, fill func(p *models.Post) []any) ([]models.Post, error) {
	defer rows.Close()

	posts := make([]models.Post, 0)
	for rows.Next() {
		var tmp models.Post
		var extra []any
		if fill != nil {
			extra = fill(&tmp)
		}

		post, err := scanPost(rows, extra...)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrInvalidRecord, err)
		}

		post.LikeCount = tmp.LikeCount
		post.CommentCount = tmp.CommentCount
		post.CommunityName = tmp.CommunityName
		posts = append(posts, *post)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return posts, nil
}

// PostsWithCounts вызывает RPC-функцию get_posts_with_counts(): порядок задаёт база.
func (s *Storage) PostsWithCounts(ctx context.Context) ([]models.Post, error) {
	const op = "storage/postgres/posts/PostsWithCounts"

	q := `SELECT ` + postColumns + `, like_count, comment_count FROM get_posts_with_counts()`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	posts, err := collectPosts(rows, func(p *models.Post) []any {
		return []any{&p.LikeCount, &p.CommentCount}
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return posts, nil
}

// PostByID возвращает пост по id.
// Ошибки: storage.ErrNotFound, либо ошибка выполнения запроса.
func (s *Storage) PostByID(ctx context.Context, id int64) (*models.Post, error) {
	const op = "storage/postgres/posts/PostByID"

	q := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(s.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return post, nil
}

// PostsByCommunity возвращает посты сообщества вместе с его именем (сначала новые).
func (s *Storage) PostsByCommunity(ctx context.Context, communityID int64) ([]models.Post, error) {
	const op = "storage/postgres/posts/PostsByCommunity"

	q := `
	SELECT p.id, p.title, p.content, p.created_at, p.image_url, p.avatar_url, p.community_id, c.name
	FROM posts p
	JOIN communities c ON c.id = p.community_id
	WHERE p.community_id = $1
	ORDER BY p.created_at DESC, p.id DESC`

	rows, err := s.db.Query(ctx, q, communityID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	posts, err := collectPosts(rows, func(p *models.Post) []any {
		return []any{&p.CommunityName}
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return posts, nil
}

// CreatePost вставляет пост; id и created_at назначает база.
// Ссылка на несуществующее сообщество — storage.ErrNotFound.
func (s *Storage) CreatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	const op = "storage/postgres/posts/CreatePost"

	var avatar *string
	if post.AvatarURL != "" {
		avatar = &post.AvatarURL
	}

	q := `
	INSERT INTO posts (title, content, image_url, avatar_url, community_id)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING ` + postColumns

	result, err := scanPost(s.db.QueryRow(ctx, q,
		post.Title,
		post.Content,
		post.ImageURL,
		avatar,
		post.CommunityID,
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
