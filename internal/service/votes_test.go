package service

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/storage"
)

func TestService_VoteTally(t *testing.T) {
	t.Parallel()
	env := newServiceWithMocks(t)
	sess := env.signedIn("alice")
	ctx := context.Background()

	env.storage.EXPECT().ListVotes(ctx, int64(1)).Return([]models.Vote{
		{ID: 1, UserID: sess.UserID, Value: models.VoteDislike},
		{ID: 2, UserID: uuid.New(), Value: models.VoteLike},
		{ID: 3, UserID: uuid.New(), Value: models.VoteLike},
	}, nil)

	tally, err := env.svc.VoteTally(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, models.Tally{Likes: 2, Dislikes: 1, Own: models.VoteDislike}, tally)
}

func TestService_VoteTally_SignedOut(t *testing.T) {
	t.Parallel()
	env := newServiceWithMocks(t)
	env.signedOut()
	ctx := context.Background()

	env.storage.EXPECT().ListVotes(ctx, int64(1)).Return([]models.Vote{{ID: 1, Value: models.VoteLike}}, nil)

	tally, err := env.svc.VoteTally(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, models.VoteNone, tally.Own)
	require.Equal(t, 1, tally.Likes)
}

// Предусловия проверяются до обращения к шлюзу: моки стораджа не ожидают вызовов.
func TestService_Vote_Preconditions(t *testing.T) {
	t.Parallel()

	t.Run("no_session", func(t *testing.T) {
		env := newServiceWithMocks(t)
		env.signedOut()

		state, err := env.svc.Vote(context.Background(), 1, models.VoteLike)
		require.ErrorIs(t, err, ErrNotAuthenticated)
		require.Equal(t, models.NoVote, state)
	})

	t.Run("bad_value", func(t *testing.T) {
		env := newServiceWithMocks(t)
		env.signedIn("alice")

		_, err := env.svc.Vote(context.Background(), 1, 2)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("bad_post", func(t *testing.T) {
		env := newServiceWithMocks(t)
		env.signedIn("alice")

		_, err := env.svc.Vote(context.Background(), 0, models.VoteLike)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestService_Vote_Insert(t *testing.T) {
	t.Parallel()
	env := newServiceWithMocks(t)
	sess := env.signedIn("alice")
	ctx := context.Background()

	gomock.InOrder(
		env.storage.EXPECT().VoteByVoter(ctx, int64(1), sess.UserID).Return(nil, storage.ErrNotFound),
		env.storage.EXPECT().
			InsertVote(ctx, models.Vote{PostID: 1, UserID: sess.UserID, Value: models.VoteLike}).
			Return(&models.Vote{ID: 5, PostID: 1, UserID: sess.UserID, Value: models.VoteLike}, nil),
	)

	state, err := env.svc.Vote(ctx, 1, models.VoteLike)
	require.NoError(t, err)
	require.Equal(t, models.Liked, state)
}

// Повтор того же голоса снимает его.
func TestService_Vote_SameValueDeletes(t *testing.T) {
	t.Parallel()
	env := newServiceWithMocks(t)
	sess := env.signedIn("alice")
	ctx := context.Background()

	env.storage.EXPECT().VoteByVoter(ctx, int64(1), sess.UserID).
		Return(&models.Vote{ID: 5, PostID: 1, UserID: sess.UserID, Value: models.VoteDislike}, nil)
	env.storage.EXPECT().DeleteVote(ctx, int64(5)).Return(nil)

	state, err := env.svc.Vote(ctx, 1, models.VoteDislike)
	require.NoError(t, err)
	require.Equal(t, models.NoVote, state)
}

func TestService_Vote_OppositeValueUpdates(t *testing.T) {
	t.Parallel()
	env := newServiceWithMocks(t)
	sess := env.signedIn("alice")
	ctx := context.Background()

	env.storage.EXPECT().VoteByVoter(ctx, int64(1), sess.UserID).
		Return(&models.Vote{ID: 5, PostID: 1, UserID: sess.UserID, Value: models.VoteLike}, nil)
	env.storage.EXPECT().UpdateVote(ctx, int64(5), models.VoteDislike).Return(nil)

	state, err := env.svc.Vote(ctx, 1, models.VoteDislike)
	require.NoError(t, err)
	require.Equal(t, models.Disliked, state)
}

func TestService_Vote_StorageErrors(t *testing.T) {
	t.Parallel()

	t.Run("read_failed", func(t *testing.T) {
		env := newServiceWithMocks(t)
		env.signedIn("alice")

		env.storage.EXPECT().VoteByVoter(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errBoom)

		state, err := env.svc.Vote(context.Background(), 1, models.VoteLike)
		require.ErrorIs(t, err, ErrGateway)
		require.Equal(t, models.NoVote, state)
	})

	t.Run("missing_post", func(t *testing.T) {
		env := newServiceWithMocks(t)
		env.signedIn("alice")

		env.storage.EXPECT().VoteByVoter(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, storage.ErrNotFound)
		env.storage.EXPECT().InsertVote(gomock.Any(), gomock.Any()).Return(nil, storage.ErrNotFound)

		_, err := env.svc.Vote(context.Background(), 1, models.VoteLike)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("write_failed_keeps_state", func(t *testing.T) {
		env := newServiceWithMocks(t)
		env.signedIn("alice")

		env.storage.EXPECT().VoteByVoter(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&models.Vote{ID: 5, Value: models.VoteLike}, nil)
		env.storage.EXPECT().DeleteVote(gomock.Any(), int64(5)).Return(errBoom)

		state, err := env.svc.Vote(context.Background(), 1, models.VoteLike)
		require.ErrorIs(t, err, ErrGateway)
		require.Equal(t, models.Liked, state)
	})
}
