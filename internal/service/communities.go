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

// CreateCommunityInput — создание сообщества; поля проверяются после TrimSpace.
type CreateCommunityInput struct {
	Name        string `json:"name" validate:"min=3"`
	Description string `json:"description" validate:"min=5"`
}

// ListCommunities возвращает сообщества, сначала новые.
func (s *Service) ListCommunities(ctx context.Context) ([]models.Community, error) {
	const op = "service/communities/ListCommunities"

	list, err := s.storage.ListCommunities(ctx)
	if err != nil {
		log.From(ctx).Error("storage error on ListCommunities", "op", op, "err", err)
		return nil, gatewayErr(op, err)
	}

	return list, nil
}

// CreateCommunity создаёт сообщество.
//
// Поведение/ошибки:
//   - ErrNotAuthenticated — нет сессии;
//   - ErrInvalidArgument — имя короче 3 или описание короче 5 символов;
//   - ErrConflict — имя уже занято;
//   - ErrGateway — прочие ошибки шлюза.
func (s *Service) CreateCommunity(ctx context.Context, in CreateCommunityInput) (*models.Community, error) {
	const op = "service/communities/CreateCommunity"

	lg := log.From(ctx).With("op", op)

	sess, err := s.currentSession(op)
	if err != nil {
		lg.Warn("create community without session")
		return nil, err
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	lg = lg.With("user_id", sess.UserID.String(), "name", in.Name)

	if err := s.check(in); err != nil {
		lg.Warn("invalid argument", "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c, err := s.storage.CreateCommunity(ctx, models.Community{Name: in.Name, Description: in.Description})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			lg.Warn("community name taken")
			return nil, fmt.Errorf("%s: %w", op, ErrConflict)
		}

		lg.Error("storage error on CreateCommunity", "err", err)
		return nil, gatewayErr(op, err)
	}

	lg.Info("community created", "community_id", c.ID)

	return c, nil
}
