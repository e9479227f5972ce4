// cli — терминальный интерфейс форума: разбор команд, вызов сервисного слоя
// через кэш запросов и вывод таблицей или JSON.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pribylovaa/go-forum/internal/auth"
	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/query"
	"github.com/pribylovaa/go-forum/internal/service"
	"github.com/pribylovaa/go-forum/pkg/log"
)

// Коды завершения.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// errUsage — неверный вызов команды; печатается справка, код ExitUsage.
var errUsage = errors.New("usage")

// Service — операции форума, которые использует CLI.
type Service interface {
	ListPosts(ctx context.Context) ([]models.Post, error)
	PostsByCommunity(ctx context.Context, communityID int64) ([]models.Post, error)
	PostDetail(ctx context.Context, id int64) (*service.PostDetail, bool, error)
	CreatePost(ctx context.Context, in service.CreatePostInput) (*models.Post, error)
	ListCommunities(ctx context.Context) ([]models.Community, error)
	CreateCommunity(ctx context.Context, in service.CreateCommunityInput) (*models.Community, error)
	CommentThread(ctx context.Context, postID int64) ([]*models.CommentNode, error)
	CreateComment(ctx context.Context, in service.CreateCommentInput) (*models.Comment, error)
	VoteTally(ctx context.Context, postID int64) (models.Tally, error)
	Vote(ctx context.Context, postID int64, value int) (models.VoteState, error)
}

// Authenticator — вход и выход через хостовый провайдер.
type Authenticator interface {
	SignInWithOAuth(ctx context.Context, provider string) (*auth.Authorization, error)
	ExchangeCode(ctx context.Context, code, verifier string) (*models.Session, error)
	SignOut(ctx context.Context) error
	// Session обновляет истекающую сессию; nil — сессии больше нет.
	Session(ctx context.Context) (*models.Session, error)
}

// CallbackListener принимает OAuth-редирект на loopback-адресе.
type CallbackListener interface {
	Wait(ctx context.Context) (string, error)
	Close() error
}

// Deps — зависимости App.
type Deps struct {
	Service Service
	Auth    Authenticator
	Session service.SessionSource
	Cache   *query.Cache
	Logger  *slog.Logger

	// Listen начинает слушать loopback-адрес колбэка до открытия браузера.
	Listen func() (CallbackListener, error)
	// OpenBrowser открывает ссылку авторизации; nil — ссылка только печатается.
	OpenBrowser func(url string) error

	Provider        string
	RefreshInterval time.Duration
	LoginTimeout    time.Duration
	// RequestTimeout — дедлайн одной команды (для watch — одного опроса); 0 — без дедлайна.
	RequestTimeout time.Duration

	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// App — набор команд CLI.
type App struct {
	Deps
	json bool
}

// Global — глобальные флаги, общие для всех команд.
type Global struct {
	ConfigPath string
	JSON       bool
}

// ParseGlobal разбирает глобальные флаги до имени команды.
func ParseGlobal(args []string, errOut io.Writer) (Global, []string, error) {
	var g Global

	fs := flag.NewFlagSet("forum", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&g.ConfigPath, "config", "", "path to config file")
	fs.BoolVar(&g.JSON, "json", false, "print results as JSON")
	fs.Usage = func() { printUsage(errOut) }

	if err := fs.Parse(args); err != nil {
		return g, nil, err
	}

	return g, fs.Args(), nil
}

// New создаёт App. json — выводить результаты в JSON.
func New(d Deps, json bool) *App {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Cache == nil {
		d.Cache = query.New(d.RefreshInterval)
	}
	if d.LoginTimeout <= 0 {
		d.LoginTimeout = 5 * time.Minute
	}

	return &App{Deps: d, json: json}
}

type command struct {
	usage string
	run   func(a *App, ctx context.Context, args []string) error
	// long — команда живёт дольше одного запроса и сама ограничивает свои вызовы.
	long bool
}

var commands = map[string]command{
	"login":            {"login [--provider name]", (*App).login, true},
	"logout":           {"logout", (*App).logout, false},
	"whoami":           {"whoami", (*App).whoami, false},
	"posts":            {"posts [--community id]", (*App).posts, false},
	"post":             {"post <id>", (*App).post, false},
	"community":        {"community <id>", (*App).community, false},
	"communities":      {"communities", (*App).communities, false},
	"create-community": {"create-community --name n --description d", (*App).createCommunity, false},
	"create-post":      {"create-post --title t --content c --image path [--community id] [--avatar url]", (*App).createPost, false},
	"comment":          {"comment <post-id> --text t [--parent id]", (*App).comment, false},
	"comments":         {"comments <post-id>", (*App).comments, false},
	"vote":             {"vote <post-id> up|down", (*App).vote, false},
	"watch":            {"watch <post-id>", (*App).watch, true},
}

var commandOrder = []string{
	"login", "logout", "whoami",
	"posts", "post", "community", "communities", "comments",
	"create-community", "create-post", "comment", "vote", "watch",
}

// Run выполняет команду args[0] и возвращает код завершения.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		printUsage(a.Err)
		return ExitUsage
	}

	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(a.Err, "unknown command %q\n\n", name)
		printUsage(a.Err)
		return ExitUsage
	}

	ctx = log.Into(ctx, a.Logger.With("cmd", name))

	if !cmd.long {
		var cancel context.CancelFunc
		ctx, cancel = a.withTimeout(ctx)
		defer cancel()
	}

	err := cmd.run(a, ctx, args[1:])
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, flag.ErrHelp):
		fmt.Fprintf(a.Out, "usage: forum %s\n", cmd.usage)
		return ExitOK
	case errors.Is(err, errUsage):
		fmt.Fprintf(a.Err, "%v\nusage: forum %s\n", err, cmd.usage)
		return ExitUsage
	}

	log.From(ctx).Debug("command failed", "err", err)
	fmt.Fprintln(a.Err, "error:", describe(err))

	return ExitError
}

func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.RequestTimeout)
}

// describe переводит ошибку сервисного слоя в сообщение для пользователя.
func describe(err error) string {
	var ve *service.ValidationError
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		return "not signed in, run `forum login` first"
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, service.ErrConflict):
		return "already exists"
	case errors.Is(err, service.ErrNotFound):
		return "referenced post, community or comment does not exist"
	default:
		return err.Error()
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: forum [--config path] [--json] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}
