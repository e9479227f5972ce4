package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/storage"
	"github.com/pribylovaa/go-forum/pkg/log"
)

// ImageFile — загружаемое изображение поста.
type ImageFile struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// CreatePostInput — создание поста.
// Правила:
//   - Title и Content нормализуются (TrimSpace) и не должны быть пустыми;
//   - Image обязателен, его тип и размер проверяются по конфигу;
//   - CommunityID опционален; AvatarURL по умолчанию берётся из сессии.
type CreatePostInput struct {
	Title       string `json:"title" validate:"required"`
	Content     string `json:"content" validate:"required"`
	CommunityID *int64 `json:"community_id" validate:"omitempty,gt=0"`
	AvatarURL   string `json:"avatar_url"`
	Image       *ImageFile
}

// PostDetail — пост вместе с живым подсчётом голосов.
type PostDetail struct {
	Post  models.Post  `json:"post"`
	Tally models.Tally `json:"tally"`
}

// ListPosts возвращает посты с агрегатами в порядке, заданном шлюзом.
func (s *Service) ListPosts(ctx context.Context) ([]models.Post, error) {
	const op = "service/posts/ListPosts"

	posts, err := s.storage.PostsWithCounts(ctx)
	if err != nil {
		log.From(ctx).Error("storage error on PostsWithCounts", "op", op, "err", err)
		return nil, gatewayErr(op, err)
	}

	return posts, nil
}

// PostsByCommunity возвращает посты сообщества, сначала новые.
func (s *Service) PostsByCommunity(ctx context.Context, communityID int64) ([]models.Post, error) {
	const op = "service/posts/PostsByCommunity"

	lg := log.From(ctx).With("op", op, "community_id", communityID)

	if communityID <= 0 {
		lg.Warn("invalid argument: community_id")
		return nil, fmt.Errorf("%s: %w", op, &ValidationError{Field: "community_id", Reason: "must be positive"})
	}

	posts, err := s.storage.PostsByCommunity(ctx, communityID)
	if err != nil {
		lg.Error("storage error on PostsByCommunity", "err", err)
		return nil, gatewayErr(op, err)
	}

	return posts, nil
}

// PostByID возвращает пост; found == false, если его нет (это не ошибка).
func (s *Service) PostByID(ctx context.Context, id int64) (*models.Post, bool, error) {
	const op = "service/posts/PostByID"

	lg := log.From(ctx).With("op", op, "post_id", id)

	if id <= 0 {
		lg.Warn("invalid argument: post_id")
		return nil, false, fmt.Errorf("%s: %w", op, &ValidationError{Field: "post_id", Reason: "must be positive"})
	}

	post, err := s.storage.PostByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Debug("post not found")
			return nil, false, nil
		}

		lg.Error("storage error on PostByID", "err", err)
		return nil, false, gatewayErr(op, err)
	}

	return post, true, nil
}

// PostDetail параллельно читает пост и его голоса и считает голоса с точки зрения
// текущего пользователя. found == false, если поста нет.
func (s *Service) PostDetail(ctx context.Context, id int64) (*PostDetail, bool, error) {
	const op = "service/posts/PostDetail"

	lg := log.From(ctx).With("op", op, "post_id", id)

	if id <= 0 {
		lg.Warn("invalid argument: post_id")
		return nil, false, fmt.Errorf("%s: %w", op, &ValidationError{Field: "post_id", Reason: "must be positive"})
	}

	var (
		post  *models.Post
		votes []models.Vote
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.storage.PostByID(gctx, id)
		if err != nil {
			return err
		}
		post = p
		return nil
	})
	g.Go(func() error {
		v, err := s.storage.ListVotes(gctx, id)
		if err != nil {
			return err
		}
		votes = v
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Debug("post not found")
			return nil, false, nil
		}

		lg.Error("storage error on PostDetail", "err", err)
		return nil, false, gatewayErr(op, err)
	}

	return &PostDetail{Post: *post, Tally: TallyVotes(votes, s.viewer())}, true, nil
}

// CreatePost загружает изображение в бакет и сохраняет пост со ссылкой на него.
//
// Поведение/ошибки:
//   - ErrNotAuthenticated — нет сессии (проверяется до обращения к шлюзу);
//   - ErrInvalidArgument — нет файла, пустые поля, недопустимый тип или размер;
//   - ErrGateway — сбой загрузки (пост не создаётся) или вставки
//     (загруженный файл остаётся в бакете, ключ пишется в лог);
//   - ErrNotFound — указанное сообщество не существует.
func (s *Service) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	const op = "service/posts/CreatePost"

	lg := log.From(ctx).With("op", op)

	sess, err := s.currentSession(op)
	if err != nil {
		lg.Warn("create post without session")
		return nil, err
	}
	lg = lg.With("user_id", sess.UserID.String())

	if in.Image == nil || in.Image.Body == nil {
		lg.Warn("invalid argument: image is required")
		return nil, fmt.Errorf("%s: %w", op, &ValidationError{Field: "image", Reason: "is required"})
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if err := s.check(in); err != nil {
		lg.Warn("invalid argument", "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.checkImage(in.Image); err != nil {
		lg.Warn("invalid image", "err", err, "content_type", in.Image.ContentType, "size", in.Image.Size)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	key := fmt.Sprintf("%s-%d-%s", in.Title, s.now().UnixMilli(), filepath.Base(in.Image.Name))
	lg = lg.With("key", key)

	if err := s.images.Upload(ctx, key, in.Image.Body, in.Image.Size, in.Image.ContentType); err != nil {
		lg.Error("image upload failed", "err", err)
		return nil, gatewayErr(op, err)
	}

	avatar := in.AvatarURL
	if avatar == "" {
		avatar = sess.AvatarURL
	}

	post, err := s.storage.CreatePost(ctx, models.Post{
		Title:       in.Title,
		Content:     in.Content,
		ImageURL:    s.images.PublicURL(key),
		AvatarURL:   avatar,
		CommunityID: in.CommunityID,
	})
	if err != nil {
		// Загруженный файл (key) остаётся в бакете.
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("community not found, uploaded image left in bucket", "err", err)
			return nil, fmt.Errorf("%s: community: %w", op, ErrNotFound)
		}

		lg.Error("storage error on CreatePost, uploaded image left in bucket", "err", err)
		return nil, gatewayErr(op, err)
	}

	lg.Info("post created", "post_id", post.ID)

	return post, nil
}

// checkImage проверяет тип и размер изображения по конфигу.
func (s *Service) checkImage(img *ImageFile) error {
	if strings.TrimSpace(img.Name) == "" {
		return &ValidationError{Field: "image", Reason: "must have a file name"}
	}

	if !slices.Contains(s.cfg.AllowedContentTypes, img.ContentType) {
		return &ValidationError{Field: "image", Reason: fmt.Sprintf("content type %q is not allowed", img.ContentType)}
	}

	if img.Size <= 0 || img.Size > s.cfg.MaxSizeBytes {
		return &ValidationError{Field: "image", Reason: fmt.Sprintf("size must be in (0, %d] bytes", s.cfg.MaxSizeBytes)}
	}

	return nil
}

// viewer возвращает id текущего пользователя или nil.
func (s *Service) viewer() *uuid.UUID {
	if s.session == nil {
		return nil
	}

	if sess := s.session.Current(); sess != nil {
		id := sess.UserID
		return &id
	}

	return nil
}
