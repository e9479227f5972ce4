package cli

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/query"
	"github.com/pribylovaa/go-forum/internal/service"
)

func (a *App) createCommunity(ctx context.Context, args []string) error {
	fs := newFlags("create-community")
	name := fs.String("name", "", "community name (3+ characters)")
	description := fs.String("description", "", "community description (5+ characters)")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	c, err := a.Service.CreateCommunity(ctx, service.CreateCommunityInput{Name: *name, Description: *description})
	if err != nil {
		return err
	}
	a.Cache.Invalidate(query.NewKey(kindCommunities))

	if a.json {
		return writeJSON(a.Out, c)
	}
	_, err = fmt.Fprintf(a.Out, "community #%d %q created\n", c.ID, c.Name)
	return err
}

func (a *App) createPost(ctx context.Context, args []string) error {
	fs := newFlags("create-post")
	title := fs.String("title", "", "post title")
	content := fs.String("content", "", "post text")
	imagePath := fs.String("image", "", "path to the image file")
	community := fs.Int64("community", 0, "community id")
	avatar := fs.String("avatar", "", "avatar URL (defaults to the signed-in user's)")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	communityID, err := optionalID("community", *community)
	if err != nil {
		return err
	}

	in := service.CreatePostInput{
		Title:       *title,
		Content:     *content,
		CommunityID: communityID,
		AvatarURL:   *avatar,
	}

	if *imagePath != "" {
		f, img, err := openImage(*imagePath)
		if err != nil {
			return err
		}
		defer f.Close()
		in.Image = img
	}

	p, err := a.Service.CreatePost(ctx, in)
	if err != nil {
		return err
	}
	a.Cache.InvalidateKind(kindPosts)
	a.Cache.InvalidateKind(kindCommunityPosts)

	if a.json {
		return writeJSON(a.Out, p)
	}
	_, err = fmt.Fprintf(a.Out, "post #%d created\nimage: %s\n", p.ID, p.ImageURL)
	return err
}

// openImage открывает файл изображения и определяет его тип: по расширению,
// иначе по первым байтам содержимого.
func openImage(path string) (*os.File, *service.ImageFile, error) {
	const op = "cli/openImage"

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		head := make([]byte, 512)
		n, _ := io.ReadFull(f, head)
		contentType = http.DetectContentType(head[:n])
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	}

	return f, &service.ImageFile{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Size:        info.Size(),
		Body:        f,
	}, nil
}

func (a *App) comment(ctx context.Context, args []string) error {
	fs := newFlags("comment")
	text := fs.String("text", "", "comment text")
	parent := fs.Int64("parent", 0, "id of the comment to reply to")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}

	postID, err := parseID("post id", pos[0])
	if err != nil {
		return err
	}

	parentID, err := optionalID("parent", *parent)
	if err != nil {
		return err
	}

	c, err := a.addComment(ctx, postID, parentID, *text)
	if err != nil {
		return err
	}

	if a.json {
		return writeJSON(a.Out, c)
	}
	_, err = fmt.Fprintf(a.Out, "comment #%d added\n", c.ID)
	return err
}

func (a *App) addComment(ctx context.Context, postID int64, parentID *int64, text string) (*models.Comment, error) {
	c, err := a.Service.CreateComment(ctx, service.CreateCommentInput{PostID: postID, ParentID: parentID, Content: text})
	if err != nil {
		return nil, err
	}

	a.Cache.Invalidate(query.NewKey(kindComments, postID))
	a.Cache.InvalidateKind(kindPosts)
	a.Cache.InvalidateKind(kindCommunityPosts)

	return c, nil
}

func (a *App) vote(ctx context.Context, args []string) error {
	pos, err := parse(newFlags("vote"), args, 2)
	if err != nil {
		return err
	}

	postID, err := parseID("post id", pos[0])
	if err != nil {
		return err
	}

	var value int
	switch pos[1] {
	case "up", "like":
		value = models.VoteLike
	case "down", "dislike":
		value = models.VoteDislike
	default:
		return fmt.Errorf("%w: vote must be up or down, got %q", errUsage, pos[1])
	}

	state, err := a.castVote(ctx, postID, value)
	if err != nil {
		return err
	}

	if a.json {
		return writeJSON(a.Out, map[string]any{"post_id": postID, "state": state.String()})
	}
	_, err = fmt.Fprintf(a.Out, "post #%d: %s\n", postID, stateLabel(state))
	return err
}

func (a *App) castVote(ctx context.Context, postID int64, value int) (models.VoteState, error) {
	state, err := a.Service.Vote(ctx, postID, value)
	if err != nil {
		return state, err
	}

	a.Cache.Invalidate(query.NewKey(kindTally, postID), query.NewKey(kindPost, postID))
	a.Cache.InvalidateKind(kindPosts)
	a.Cache.InvalidateKind(kindCommunityPosts)

	return state, nil
}
