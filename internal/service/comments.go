package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/storage"
	"github.com/pribylovaa/go-forum/pkg/log"
)

// CreateCommentInput — комментарий к посту или ответ (ParentID != nil).
type CreateCommentInput struct {
	PostID   int64  `json:"post_id" validate:"gt=0"`
	ParentID *int64 `json:"parent_comment_id" validate:"omitempty,gt=0"`
	Content  string `json:"content" validate:"required"`
}

// ListComments возвращает комментарии поста плоским списком, сначала старые.
func (s *Service) ListComments(ctx context.Context, postID int64) ([]models.Comment, error) {
	const op = "service/comments/ListComments"

	lg := log.From(ctx).With("op", op, "post_id", postID)

	if postID <= 0 {
		lg.Warn("invalid argument: post_id")
		return nil, fmt.Errorf("%s: %w", op, &ValidationError{Field: "post_id", Reason: "must be positive"})
	}

	list, err := s.storage.ListComments(ctx, postID)
	if err != nil {
		lg.Error("storage error on ListComments", "err", err)
		return nil, gatewayErr(op, err)
	}

	return list, nil
}

// CommentThread возвращает комментарии поста деревом (см. BuildTree).
func (s *Service) CommentThread(ctx context.Context, postID int64) ([]*models.CommentNode, error) {
	const op = "service/comments/CommentThread"

	list, err := s.ListComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return BuildTree(list), nil
}

// CreateComment добавляет комментарий от имени текущего пользователя.
// Автор — имя пользователя из сессии, при его отсутствии — user_id.
//
// Поведение/ошибки:
//   - ErrNotAuthenticated — нет сессии;
//   - ErrInvalidArgument — пустой текст или неположительные id;
//   - ErrNotFound — поста или родителя нет;
//   - ErrGateway — прочие ошибки шлюза.
func (s *Service) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	const op = "service/comments/CreateComment"

	lg := log.From(ctx).With("op", op, "post_id", in.PostID)

	sess, err := s.currentSession(op)
	if err != nil {
		lg.Warn("comment without session")
		return nil, err
	}
	lg = lg.With("user_id", sess.UserID.String())

	in.Content = strings.TrimSpace(in.Content)
	if err := s.check(in); err != nil {
		lg.Warn("invalid argument", "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	author := strings.TrimSpace(sess.UserName)
	if author == "" {
		author = sess.UserID.String()
	}

	c, err := s.storage.CreateComment(ctx, models.Comment{
		PostID:   in.PostID,
		ParentID: in.ParentID,
		Content:  in.Content,
		UserID:   sess.UserID,
		Author:   author,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("post or parent comment not found")
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		lg.Error("storage error on CreateComment", "err", err)
		return nil, gatewayErr(op, err)
	}

	return c, nil
}
