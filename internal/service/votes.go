package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/storage"
	"github.com/pribylovaa/go-forum/pkg/log"
)

// ListVotes возвращает все голоса за пост.
func (s *Service) ListVotes(ctx context.Context, postID int64) ([]models.Vote, error) {
	const op = "service/votes/ListVotes"

	lg := log.From(ctx).With("op", op, "post_id", postID)

	if postID <= 0 {
		lg.Warn("invalid argument: post_id")
		return nil, fmt.Errorf("%s: %w", op, &ValidationError{Field: "post_id", Reason: "must be positive"})
	}

	votes, err := s.storage.ListVotes(ctx, postID)
	if err != nil {
		lg.Error("storage error on ListVotes", "err", err)
		return nil, gatewayErr(op, err)
	}

	return votes, nil
}

// VoteTally возвращает подсчёт голосов поста с точки зрения текущего пользователя.
func (s *Service) VoteTally(ctx context.Context, postID int64) (models.Tally, error) {
	const op = "service/votes/VoteTally"

	votes, err := s.ListVotes(ctx, postID)
	if err != nil {
		return models.Tally{}, fmt.Errorf("%s: %w", op, err)
	}

	return TallyVotes(votes, s.viewer()), nil
}

// Vote применяет голос value (+1/-1) текущего пользователя к посту и
// возвращает новое состояние (см. NextVoteState).
//
// Выполняет ровно одно чтение и ровно одну запись: вставку, если голоса не было,
// удаление при повторе того же значения, обновление при противоположном.
// Чтение и запись не атомарны: два конкурентных голоса одного пользователя
// могут оставить две записи (учитываются обе).
//
// Поведение/ошибки:
//   - ErrNotAuthenticated, ErrInvalidArgument — до любого обращения к шлюзу;
//   - ErrNotFound — поста нет;
//   - ErrGateway — ошибки шлюза.
func (s *Service) Vote(ctx context.Context, postID int64, value int) (models.VoteState, error) {
	const op = "service/votes/Vote"

	lg := log.From(ctx).With("op", op, "post_id", postID, "value", value)

	sess, err := s.currentSession(op)
	if err != nil {
		lg.Warn("vote without session")
		return models.NoVote, err
	}
	lg = lg.With("user_id", sess.UserID.String())

	if value != models.VoteLike && value != models.VoteDislike {
		lg.Warn("invalid argument: vote value")
		return models.NoVote, fmt.Errorf("%s: %w", op, &ValidationError{Field: "vote", Reason: "must be 1 or -1"})
	}

	if postID <= 0 {
		lg.Warn("invalid argument: post_id")
		return models.NoVote, fmt.Errorf("%s: %w", op, &ValidationError{Field: "post_id", Reason: "must be positive"})
	}

	existing, err := s.storage.VoteByVoter(ctx, postID, sess.UserID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		lg.Error("storage error on VoteByVoter", "err", err)
		return models.NoVote, gatewayErr(op, err)
	}

	current := models.NoVote
	if existing != nil {
		current = StateOf(existing.Value)
	}
	next := NextVoteState(current, value)

	switch {
	case existing == nil:
		_, err = s.storage.InsertVote(ctx, models.Vote{PostID: postID, UserID: sess.UserID, Value: value})
	case existing.Value == value:
		err = s.storage.DeleteVote(ctx, existing.ID)
	default:
		err = s.storage.UpdateVote(ctx, existing.ID, value)
	}

	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("post or vote vanished", "err", err)
			return current, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		lg.Error("storage error on vote write", "err", err)
		return current, gatewayErr(op, err)
	}

	lg.Debug("vote applied", "from", current.String(), "to", next.String())

	return next, nil
}
