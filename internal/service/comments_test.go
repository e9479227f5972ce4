package service

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/storage"
)

func TestService_ListComments(t *testing.T) {
	t.Parallel()
	env := newServiceWithMocks(t)
	ctx := context.Background()

	_, err := env.svc.ListComments(ctx, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)

	list := []models.Comment{comment(1, nil), comment(2, ptr(1))}
	env.storage.EXPECT().ListComments(ctx, int64(1)).Return(list, nil)

	got, err := env.svc.ListComments(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, list, got)
}

func TestService_CommentThread(t *testing.T) {
	t.Parallel()
	env := newServiceWithMocks(t)
	ctx := context.Background()

	env.storage.EXPECT().ListComments(ctx, int64(1)).Return([]models.Comment{
		comment(1, nil), comment(2, ptr(1)), comment(3, ptr(404)),
	}, nil)

	roots, err := env.svc.CommentThread(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, ids(roots))
	require.Len(t, roots, 2)

	env.storage.EXPECT().ListComments(ctx, int64(2)).Return(nil, errBoom)
	_, err = env.svc.CommentThread(ctx, 2)
	require.ErrorIs(t, err, ErrGateway)
}

func TestService_CreateComment_Preconditions(t *testing.T) {
	t.Parallel()

	t.Run("no_session", func(t *testing.T) {
		env := newServiceWithMocks(t)
		env.signedOut()

		_, err := env.svc.CreateComment(context.Background(), CreateCommentInput{PostID: 1, Content: "hi"})
		require.ErrorIs(t, err, ErrNotAuthenticated)
	})

	cases := map[string]CreateCommentInput{
		"blank_content": {PostID: 1, Content: "  "},
		"bad_post":      {PostID: 0, Content: "hi"},
		"bad_parent":    {PostID: 1, ParentID: new(int64), Content: "hi"},
	}

	for name, in := range cases {
		in := in
		t.Run(name, func(t *testing.T) {
			env := newServiceWithMocks(t)
			env.signedIn("alice")

			_, err := env.svc.CreateComment(context.Background(), in)
			require.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestService_CreateComment_OK(t *testing.T) {
	t.Parallel()
	env := newServiceWithMocks(t)
	sess := env.signedIn("alice")
	ctx := context.Background()

	parent := int64(4)
	want := models.Comment{PostID: 1, ParentID: &parent, Content: "reply", UserID: sess.UserID, Author: "alice"}
	env.storage.EXPECT().CreateComment(ctx, want).DoAndReturn(func(_ context.Context, c models.Comment) (*models.Comment, error) {
		c.ID = 9
		return &c, nil
	})

	c, err := env.svc.CreateComment(ctx, CreateCommentInput{PostID: 1, ParentID: &parent, Content: " reply "})
	require.NoError(t, err)
	require.Equal(t, int64(9), c.ID)
	require.Equal(t, "alice", c.Author)
}

// Без имени пользователя автором становится его id.
func TestService_CreateComment_AuthorFallback(t *testing.T) {
	t.Parallel()
	env := newServiceWithMocks(t)
	sess := env.signedIn("")
	ctx := context.Background()

	env.storage.EXPECT().CreateComment(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, c models.Comment) (*models.Comment, error) {
		require.Equal(t, sess.UserID.String(), c.Author)
		return &c, nil
	})

	_, err := env.svc.CreateComment(ctx, CreateCommentInput{PostID: 1, Content: "hi"})
	require.NoError(t, err)
}

func TestService_CreateComment_StorageErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		storeErr error
		want     error
	}{
		"missing_post": {storeErr: storage.ErrNotFound, want: ErrNotFound},
		"gateway":      {storeErr: errBoom, want: ErrGateway},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			env := newServiceWithMocks(t)
			env.signedIn("alice")

			env.storage.EXPECT().CreateComment(gomock.Any(), gomock.Any()).Return(nil, tc.storeErr)

			_, err := env.svc.CreateComment(context.Background(), CreateCommentInput{PostID: 1, Content: "hi"})
			require.ErrorIs(t, err, tc.want)
		})
	}
}
