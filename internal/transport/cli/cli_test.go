package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-forum/internal/auth"
	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/query"
	"github.com/pribylovaa/go-forum/internal/service"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// fakeService — подменяемые реализации операций; вызов незаданной паникует.
type fakeService struct {
	mu    sync.Mutex
	calls []string

	listPosts        func(ctx context.Context) ([]models.Post, error)
	postsByCommunity func(ctx context.Context, id int64) ([]models.Post, error)
	postDetail       func(ctx context.Context, id int64) (*service.PostDetail, bool, error)
	createPost       func(ctx context.Context, in service.CreatePostInput) (*models.Post, error)
	listCommunities  func(ctx context.Context) ([]models.Community, error)
	createCommunity  func(ctx context.Context, in service.CreateCommunityInput) (*models.Community, error)
	commentThread    func(ctx context.Context, postID int64) ([]*models.CommentNode, error)
	createComment    func(ctx context.Context, in service.CreateCommentInput) (*models.Comment, error)
	voteTally        func(ctx context.Context, postID int64) (models.Tally, error)
	vote             func(ctx context.Context, postID int64, value int) (models.VoteState, error)
}

func (f *fakeService) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeService) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeService) ListPosts(ctx context.Context) ([]models.Post, error) {
	f.record("ListPosts")
	return f.listPosts(ctx)
}

func (f *fakeService) PostsByCommunity(ctx context.Context, id int64) ([]models.Post, error) {
	f.record("PostsByCommunity")
	return f.postsByCommunity(ctx, id)
}

func (f *fakeService) PostDetail(ctx context.Context, id int64) (*service.PostDetail, bool, error) {
	f.record("PostDetail")
	return f.postDetail(ctx, id)
}

func (f *fakeService) CreatePost(ctx context.Context, in service.CreatePostInput) (*models.Post, error) {
	f.record("CreatePost")
	return f.createPost(ctx, in)
}

func (f *fakeService) ListCommunities(ctx context.Context) ([]models.Community, error) {
	f.record("ListCommunities")
	return f.listCommunities(ctx)
}

func (f *fakeService) CreateCommunity(ctx context.Context, in service.CreateCommunityInput) (*models.Community, error) {
	f.record("CreateCommunity")
	return f.createCommunity(ctx, in)
}

func (f *fakeService) CommentThread(ctx context.Context, postID int64) ([]*models.CommentNode, error) {
	f.record("CommentThread")
	return f.commentThread(ctx, postID)
}

func (f *fakeService) CreateComment(ctx context.Context, in service.CreateCommentInput) (*models.Comment, error) {
	f.record("CreateComment")
	return f.createComment(ctx, in)
}

func (f *fakeService) VoteTally(ctx context.Context, postID int64) (models.Tally, error) {
	f.record("VoteTally")
	return f.voteTally(ctx, postID)
}

func (f *fakeService) Vote(ctx context.Context, postID int64, value int) (models.VoteState, error) {
	f.record("Vote")
	return f.vote(ctx, postID, value)
}

type fakeSession struct{ sess *models.Session }

func (f fakeSession) Current() *models.Session { return f.sess }

// syncBuffer — bytes.Buffer, безопасный для записи из нескольких горутин.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	app *App
	svc *fakeService
	out *syncBuffer
	err *syncBuffer
}

func newHarness(t *testing.T, svc *fakeService, asJSON bool) *harness {
	t.Helper()

	h := &harness{svc: svc, out: &syncBuffer{}, err: &syncBuffer{}}
	h.app = New(Deps{
		Service:         svc,
		Session:         fakeSession{},
		Cache:           query.New(time.Minute),
		RefreshInterval: time.Second,
		In:              strings.NewReader(""),
		Out:             h.out,
		Err:             h.err,
	}, asJSON)

	return h
}

func (h *harness) run(args ...string) int {
	return h.app.Run(context.Background(), args)
}

func TestParseGlobal(t *testing.T) {
	t.Parallel()

	g, rest, err := ParseGlobal([]string{"--config", "c.yaml", "--json", "post", "5"}, &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, "c.yaml", g.ConfigPath)
	require.True(t, g.JSON)
	require.Equal(t, []string{"post", "5"}, rest)

	_, _, err = ParseGlobal([]string{"--nope"}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestRun_Usage(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeService{}, false)

	require.Equal(t, ExitUsage, h.run())
	require.Contains(t, h.err.String(), "usage: forum")

	require.Equal(t, ExitUsage, h.run("frobnicate"))
	require.Contains(t, h.err.String(), `unknown command "frobnicate"`)

	require.Equal(t, ExitUsage, h.run("post", "abc"))
	require.Contains(t, h.err.String(), "usage: forum post <id>")

	require.Equal(t, ExitUsage, h.run("post"))
	require.Equal(t, ExitOK, h.run("post", "-h"))
}

func TestRun_Posts_Table(t *testing.T) {
	t.Parallel()

	community := int64(2)
	svc := &fakeService{listPosts: func(context.Context) ([]models.Post, error) {
		return []models.Post{
			{ID: 2, Title: "Second", LikeCount: 3, CommentCount: 1, CommunityID: &community},
			{ID: 1, Title: "First"},
		}, nil
	}}
	h := newHarness(t, svc, false)

	require.Equal(t, ExitOK, h.run("posts"))
	out := h.out.String()
	require.Contains(t, out, "TITLE")
	require.Contains(t, out, "Second")
	require.Contains(t, out, "#2")
	require.Less(t, strings.Index(out, "Second"), strings.Index(out, "First"))

	// Повторный вызов обслуживается кэшем.
	require.Equal(t, ExitOK, h.run("posts"))
	require.Equal(t, 1, svc.count("ListPosts"))
}

func TestRun_Posts_JSON(t *testing.T) {
	t.Parallel()

	svc := &fakeService{postsByCommunity: func(_ context.Context, id int64) ([]models.Post, error) {
		require.Equal(t, int64(3), id)
		return []models.Post{{ID: 7, Title: "Go", CommunityName: "golang"}}, nil
	}}
	h := newHarness(t, svc, true)

	require.Equal(t, ExitOK, h.run("posts", "--community", "3"))

	var got []models.Post
	require.NoError(t, json.Unmarshal([]byte(h.out.String()), &got))
	require.Len(t, got, 1)
	require.Equal(t, "golang", got[0].CommunityName)
}

// Отсутствующий пост — сообщение и код 0, а не ошибка.
func TestRun_Post_NotFound(t *testing.T) {
	t.Parallel()

	svc := &fakeService{postDetail: func(context.Context, int64) (*service.PostDetail, bool, error) {
		return nil, false, nil
	}}
	h := newHarness(t, svc, false)

	require.Equal(t, ExitOK, h.run("post", "404"))
	require.Equal(t, "post not found\n", h.out.String())
}

func TestRun_Post_Detail(t *testing.T) {
	t.Parallel()

	svc := &fakeService{postDetail: func(_ context.Context, id int64) (*service.PostDetail, bool, error) {
		return &service.PostDetail{
			Post:  models.Post{ID: id, Title: "Hello", Content: "body", ImageURL: "http://cdn/x.png"},
			Tally: models.Tally{Likes: 2, Dislikes: 1, Own: models.VoteLike},
		}, true, nil
	}}
	h := newHarness(t, svc, false)

	require.Equal(t, ExitOK, h.run("post", "9"))
	out := h.out.String()
	require.Contains(t, out, "#9 Hello")
	require.Contains(t, out, "http://cdn/x.png")
	require.Contains(t, out, "▲ 2")
	require.Contains(t, out, "▼ 1")
	require.Contains(t, out, "you: liked")
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		err  error
		want string
	}{
		"gateway":         {err: errors.New("op: gateway: connection refused"), want: "connection refused"},
		"not_signed_in":   {err: service.ErrNotAuthenticated, want: "forum login"},
		"validation":      {err: &service.ValidationError{Field: "name", Reason: "must be at least 3 characters"}, want: "name must be at least 3"},
		"conflict":        {err: service.ErrConflict, want: "already exists"},
		"missing_related": {err: service.ErrNotFound, want: "does not exist"},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeService{createCommunity: func(context.Context, service.CreateCommunityInput) (*models.Community, error) {
				return nil, tc.err
			}}
			h := newHarness(t, svc, false)

			require.Equal(t, ExitError, h.run("create-community", "--name", "go", "--description", "gophers"))
			require.Contains(t, h.err.String(), tc.want)
		})
	}
}

func TestRun_CreateCommunity_InvalidatesList(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		listCommunities: func(context.Context) ([]models.Community, error) {
			return []models.Community{{ID: 1, Name: "golang", Description: "gophers"}}, nil
		},
		createCommunity: func(_ context.Context, in service.CreateCommunityInput) (*models.Community, error) {
			require.Equal(t, "rustaceans", in.Name)
			return &models.Community{ID: 2, Name: in.Name}, nil
		},
	}
	h := newHarness(t, svc, false)

	require.Equal(t, ExitOK, h.run("communities"))
	require.Equal(t, ExitOK, h.run("create-community", "--name", "rustaceans", "--description", "crabs"))
	require.Contains(t, h.out.String(), `community #2 "rustaceans" created`)
	require.Equal(t, ExitOK, h.run("communities"))
	require.Equal(t, 2, svc.count("ListCommunities"))
}

func TestRun_Comment_Interspersed(t *testing.T) {
	t.Parallel()

	svc := &fakeService{createComment: func(_ context.Context, in service.CreateCommentInput) (*models.Comment, error) {
		require.Equal(t, int64(5), in.PostID)
		require.NotNil(t, in.ParentID)
		require.Equal(t, int64(2), *in.ParentID)
		require.Equal(t, "hi there", in.Content)
		return &models.Comment{ID: 11}, nil
	}}
	h := newHarness(t, svc, false)

	require.Equal(t, ExitOK, h.run("comment", "5", "--text", "hi there", "--parent", "2"))
	require.Contains(t, h.out.String(), "comment #11 added")
}

func TestRun_Comments_Tree(t *testing.T) {
	t.Parallel()

	svc := &fakeService{commentThread: func(context.Context, int64) ([]*models.CommentNode, error) {
		child := &models.CommentNode{Comment: models.Comment{ID: 2, Author: "bob", Content: "reply"}, Children: []*models.CommentNode{}}
		root := &models.CommentNode{Comment: models.Comment{ID: 1, Author: "alice", Content: "root"}, Children: []*models.CommentNode{child}}
		return []*models.CommentNode{root}, nil
	}}
	h := newHarness(t, svc, false)

	require.Equal(t, ExitOK, h.run("comments", "1"))
	out := h.out.String()
	require.Contains(t, out, "[1] alice")
	require.Contains(t, out, "\n  [2] bob")
	require.Contains(t, out, "\n    reply")
}

func TestRun_Vote(t *testing.T) {
	t.Parallel()

	svc := &fakeService{vote: func(_ context.Context, postID int64, value int) (models.VoteState, error) {
		require.Equal(t, int64(4), postID)
		require.Equal(t, models.VoteDislike, value)
		return models.Disliked, nil
	}}
	h := newHarness(t, svc, false)

	require.Equal(t, ExitOK, h.run("vote", "4", "down"))
	require.Contains(t, h.out.String(), "post #4: disliked")

	require.Equal(t, ExitUsage, h.run("vote", "4", "sideways"))
	require.Equal(t, 1, svc.count("Vote"))
}

func TestRun_CreatePost_ReadsImage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nrest"), 0o600))

	svc := &fakeService{createPost: func(_ context.Context, in service.CreatePostInput) (*models.Post, error) {
		require.Equal(t, "Cat", in.Title)
		require.NotNil(t, in.Image)
		require.Equal(t, "cat.png", in.Image.Name)
		require.Equal(t, "image/png", in.Image.ContentType)
		require.EqualValues(t, 12, in.Image.Size)
		require.NotNil(t, in.CommunityID)
		return &models.Post{ID: 3, ImageURL: "http://cdn/cat.png"}, nil
	}}
	h := newHarness(t, svc, false)

	code := h.run("create-post", "--title", "Cat", "--content", "meow", "--image", path, "--community", "1")
	require.Equal(t, ExitOK, code, h.err.String())
	require.Contains(t, h.out.String(), "post #3 created")
}

func TestOpenImage_SniffsUnknownExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "upload.bin.noext")
	require.NoError(t, os.WriteFile(path, []byte("GIF89a......"), 0o600))

	f, img, err := openImage(path)
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, "image/gif", img.ContentType)

	_, _, err = openImage(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
}

func TestRun_Whoami(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeService{}, false)
	require.Equal(t, ExitOK, h.run("whoami"))
	require.Equal(t, "not signed in\n", h.out.String())

	id := uuid.New()
	h = newHarness(t, &fakeService{}, false)
	h.app.Session = fakeSession{sess: &models.Session{UserID: id, UserName: "alice"}}
	require.Equal(t, ExitOK, h.run("whoami"))
	require.Contains(t, h.out.String(), "alice ("+id.String()+")")
}

type fakeAuth struct {
	code     string
	verifier string
	signOut  int

	mu       sync.Mutex
	session  *models.Session
	sessions int
}

func (f *fakeAuth) SignInWithOAuth(_ context.Context, provider string) (*auth.Authorization, error) {
	return &auth.Authorization{URL: "https://auth.example.org/authorize?provider=" + provider, Verifier: "ver"}, nil
}

func (f *fakeAuth) ExchangeCode(_ context.Context, code, verifier string) (*models.Session, error) {
	f.code, f.verifier = code, verifier
	return &models.Session{UserID: uuid.New(), UserName: "alice"}, nil
}

func (f *fakeAuth) SignOut(context.Context) error {
	f.signOut++
	return nil
}

func (f *fakeAuth) Session(context.Context) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	return f.session, nil
}

type fakeListener struct {
	code   string
	closed bool
}

func (l *fakeListener) Wait(context.Context) (string, error) { return l.code, nil }
func (l *fakeListener) Close() error                         { l.closed = true; return nil }

func TestRun_LoginLogout(t *testing.T) {
	t.Parallel()

	fa := &fakeAuth{}
	ln := &fakeListener{code: "the-code"}
	var opened string

	h := newHarness(t, &fakeService{}, false)
	h.app.Auth = fa
	h.app.Provider = "github"
	h.app.Listen = func() (CallbackListener, error) { return ln, nil }
	h.app.OpenBrowser = func(url string) error { opened = url; return nil }

	require.Equal(t, ExitOK, h.run("login"), h.err.String())
	require.Equal(t, "https://auth.example.org/authorize?provider=github", opened)
	require.Equal(t, "the-code", fa.code)
	require.Equal(t, "ver", fa.verifier)
	require.True(t, ln.closed)
	require.Contains(t, h.out.String(), "signed in as alice")

	require.Equal(t, ExitOK, h.run("logout"))
	require.Equal(t, 1, fa.signOut)
	require.Contains(t, h.out.String(), "signed out")
}

func TestRun_Login_NoListener(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeService{}, false)
	h.app.Auth = &fakeAuth{}

	require.Equal(t, ExitError, h.run("login"))
	require.Contains(t, h.err.String(), errNoListener.Error())
}

func TestRun_Watch(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		likes int
	)
	svc := &fakeService{
		postDetail: func(_ context.Context, id int64) (*service.PostDetail, bool, error) {
			return &service.PostDetail{Post: models.Post{ID: id, Title: "Live"}}, true, nil
		},
		commentThread: func(context.Context, int64) ([]*models.CommentNode, error) {
			return []*models.CommentNode{}, nil
		},
		voteTally: func(context.Context, int64) (models.Tally, error) {
			mu.Lock()
			defer mu.Unlock()
			return models.Tally{Likes: likes, Own: likes}, nil
		},
		vote: func(_ context.Context, _ int64, value int) (models.VoteState, error) {
			mu.Lock()
			likes = value
			mu.Unlock()
			return models.Liked, nil
		},
	}
	h := newHarness(t, svc, false)
	h.app.In = strings.NewReader("help\nlike\nreply x\nquit\n")

	require.Equal(t, ExitOK, h.run("watch", "1"), h.err.String())

	out := h.out.String()
	require.Contains(t, out, "#1 Live")
	require.Contains(t, out, "your vote: liked")
	require.Contains(t, out, "▲ 1")
	require.Contains(t, out, "usage: reply <comment-id> <text>")
	require.Equal(t, 1, svc.count("Vote"))
	require.GreaterOrEqual(t, svc.count("VoteTally"), 1)
}

func TestRun_Watch_NotFound(t *testing.T) {
	t.Parallel()

	svc := &fakeService{postDetail: func(context.Context, int64) (*service.PostDetail, bool, error) {
		return nil, false, nil
	}}
	h := newHarness(t, svc, false)

	require.Equal(t, ExitOK, h.run("watch", "1"))
	require.Equal(t, "post not found\n", h.out.String())
}

func newWatchView(h *harness) *watchView {
	return &watchView{
		app:    h.app,
		postID: 1,
		post:   &service.PostDetail{Post: models.Post{ID: 1, Title: "Live"}},
	}
}

func TestWatch_SessionExpiryShownInline(t *testing.T) {
	t.Parallel()

	fa := &fakeAuth{session: &models.Session{UserID: uuid.New(), UserName: "alice"}}
	h := newHarness(t, &fakeService{}, false)
	h.app.Auth = fa

	v := newWatchView(h)
	v.signedIn = true

	// Сессия ещё жива: экран не трогаем.
	require.NoError(t, v.pollSession(context.Background()))
	require.Empty(t, h.out.String())

	// Провайдер отклонил обновление: сессии больше нет.
	fa.mu.Lock()
	fa.session = nil
	fa.mu.Unlock()

	require.NoError(t, v.pollSession(context.Background()))
	require.Contains(t, h.out.String(), "session expired, run `forum login`")

	// Повторно об истечении не сообщаем.
	before := h.out.String()
	require.NoError(t, v.pollSession(context.Background()))
	require.Equal(t, before, h.out.String())
	require.Equal(t, 3, fa.sessions)
}

func TestWatch_PollErrorShownInline(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		commentThread: func(context.Context, int64) ([]*models.CommentNode, error) {
			return nil, errors.New("comments down")
		},
		voteTally: func(context.Context, int64) (models.Tally, error) {
			return models.Tally{}, errors.New("votes down")
		},
	}
	h := newHarness(t, svc, false)
	v := newWatchView(h)

	require.Error(t, v.pollComments(context.Background()))
	require.Contains(t, h.out.String(), "error: comments down")

	require.Error(t, v.pollVotes(context.Background()))
	require.Contains(t, h.out.String(), "error: votes down")
}
