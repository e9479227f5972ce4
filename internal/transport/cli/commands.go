package cli

import (
	"context"
	"fmt"

	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/query"
	"github.com/pribylovaa/go-forum/internal/service"
)

// Виды ключей кэша запросов.
const (
	kindPosts          = "posts"
	kindCommunityPosts = "community_posts"
	kindPost           = "post"
	kindCommunities    = "communities"
	kindComments       = "comments"
	kindTally          = "tally"
)

type postResult struct {
	Detail *service.PostDetail
	Found  bool
}

func (a *App) fetchPosts(ctx context.Context) ([]models.Post, error) {
	return query.Fetch(ctx, a.Cache, query.NewKey(kindPosts), a.Service.ListPosts)
}

func (a *App) fetchCommunityPosts(ctx context.Context, id int64) ([]models.Post, error) {
	return query.Fetch(ctx, a.Cache, query.NewKey(kindCommunityPosts, id), func(ctx context.Context) ([]models.Post, error) {
		return a.Service.PostsByCommunity(ctx, id)
	})
}

func (a *App) fetchPost(ctx context.Context, id int64) (postResult, error) {
	return query.Fetch(ctx, a.Cache, query.NewKey(kindPost, id), func(ctx context.Context) (postResult, error) {
		d, found, err := a.Service.PostDetail(ctx, id)
		return postResult{Detail: d, Found: found}, err
	})
}

func (a *App) fetchCommunities(ctx context.Context) ([]models.Community, error) {
	return query.Fetch(ctx, a.Cache, query.NewKey(kindCommunities), a.Service.ListCommunities)
}

func (a *App) fetchThread(ctx context.Context, postID int64) ([]*models.CommentNode, error) {
	return query.Fetch(ctx, a.Cache, query.NewKey(kindComments, postID), func(ctx context.Context) ([]*models.CommentNode, error) {
		return a.Service.CommentThread(ctx, postID)
	})
}

func (a *App) fetchTally(ctx context.Context, postID int64) (models.Tally, error) {
	return query.Fetch(ctx, a.Cache, query.NewKey(kindTally, postID), func(ctx context.Context) (models.Tally, error) {
		return a.Service.VoteTally(ctx, postID)
	})
}

func (a *App) posts(ctx context.Context, args []string) error {
	fs := newFlags("posts")
	community := fs.Int64("community", 0, "only posts of this community")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	id, err := optionalID("community", *community)
	if err != nil {
		return err
	}

	var posts []models.Post
	if id != nil {
		posts, err = a.fetchCommunityPosts(ctx, *id)
	} else {
		posts, err = a.fetchPosts(ctx)
	}
	if err != nil {
		return err
	}

	if a.json {
		return writeJSON(a.Out, posts)
	}
	return renderPosts(a.Out, posts)
}

func (a *App) community(ctx context.Context, args []string) error {
	pos, err := parse(newFlags("community"), args, 1)
	if err != nil {
		return err
	}

	id, err := parseID("community id", pos[0])
	if err != nil {
		return err
	}

	posts, err := a.fetchCommunityPosts(ctx, id)
	if err != nil {
		return err
	}

	if a.json {
		return writeJSON(a.Out, posts)
	}
	return renderPosts(a.Out, posts)
}

// post печатает пост с голосами; отсутствие поста — не ошибка.
func (a *App) post(ctx context.Context, args []string) error {
	pos, err := parse(newFlags("post"), args, 1)
	if err != nil {
		return err
	}

	id, err := parseID("post id", pos[0])
	if err != nil {
		return err
	}

	res, err := a.fetchPost(ctx, id)
	if err != nil {
		return err
	}

	if !res.Found {
		if a.json {
			return writeJSON(a.Out, nil)
		}
		_, err := fmt.Fprintln(a.Out, "post not found")
		return err
	}

	if a.json {
		return writeJSON(a.Out, res.Detail)
	}
	renderPost(a.Out, res.Detail)
	return nil
}

func (a *App) communities(ctx context.Context, args []string) error {
	if _, err := parse(newFlags("communities"), args, 0); err != nil {
		return err
	}

	list, err := a.fetchCommunities(ctx)
	if err != nil {
		return err
	}

	if a.json {
		return writeJSON(a.Out, list)
	}
	return renderCommunities(a.Out, list)
}

func (a *App) comments(ctx context.Context, args []string) error {
	pos, err := parse(newFlags("comments"), args, 1)
	if err != nil {
		return err
	}

	id, err := parseID("post id", pos[0])
	if err != nil {
		return err
	}

	roots, err := a.fetchThread(ctx, id)
	if err != nil {
		return err
	}

	if a.json {
		return writeJSON(a.Out, roots)
	}
	renderThread(a.Out, roots)
	return nil
}
