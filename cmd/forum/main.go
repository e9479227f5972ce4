package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/pribylovaa/go-forum/internal/auth"
	"github.com/pribylovaa/go-forum/internal/config"
	"github.com/pribylovaa/go-forum/internal/metrics"
	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/query"
	"github.com/pribylovaa/go-forum/internal/service"
	"github.com/pribylovaa/go-forum/internal/session"
	"github.com/pribylovaa/go-forum/internal/storage"
	"github.com/pribylovaa/go-forum/internal/storage/minio"
	"github.com/pribylovaa/go-forum/internal/storage/mongo"
	"github.com/pribylovaa/go-forum/internal/storage/postgres"
	"github.com/pribylovaa/go-forum/internal/transport/cli"
	fhttp "github.com/pribylovaa/go-forum/internal/transport/http"
	"github.com/pribylovaa/go-forum/pkg/log"
)

// Константы окружения.
const (
	envLocal = config.EnvLocal
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	os.Exit(run())
}

func run() int {
	g, args, err := cli.ParseGlobal(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cli.ExitOK
		}
		return cli.ExitUsage
	}

	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return cli.ExitError
	}

	lg := setupLogger(cfg.Env)
	slog.SetDefault(lg)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()
	rootCtx = log.Into(rootCtx, lg)

	m := metrics.New()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.Push(ctx, cfg.Metrics.PushURL, cfg.Metrics.Job); err != nil {
			lg.Warn("metrics push failed", "err", err)
		}
	}()

	connectCtx, connectCancel := context.WithTimeout(rootCtx, cfg.Timeouts.Request)
	st, err := openStorage(connectCtx, cfg.DB)
	if err != nil {
		connectCancel()
		lg.Error("storage connect failed", "driver", cfg.DB.Driver, "err", err)
		fmt.Fprintln(os.Stderr, "error: cannot reach the forum database:", err)
		return cli.ExitError
	}
	defer st.Close()

	images, err := minio.New(connectCtx, cfg.S3)
	connectCancel()
	if err != nil {
		lg.Error("bucket connect failed", "err", err)
		fmt.Fprintln(os.Stderr, "error: cannot reach the image bucket:", err)
		return cli.ExitError
	}

	authClient := auth.New(cfg.Auth, cfg.Timeouts.Request)
	tokens := auth.NewFileStore(cfg.Auth.SessionFile)
	unsubscribe := authClient.Subscribe(func(s *models.Session) {
		if err := tokens.Save(s); err != nil {
			lg.Warn("failed to persist session", "err", err)
		}
	})
	defer unsubscribe()

	restoreSession(rootCtx, authClient, tokens, cfg.Auth.RefreshToken)

	state, err := session.New(rootCtx, authClient)
	if err != nil {
		lg.Error("session init failed", "err", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		return cli.ExitError
	}
	defer state.Close()

	svc := service.New(m.WrapStorage(st), m.WrapImages(images), state, cfg.Images)

	app := cli.New(cli.Deps{
		Service: svc,
		Auth:    authClient,
		Session: state,
		Cache:   query.New(cfg.Refresh.Interval),
		Logger:  lg,
		Listen: func() (cli.CallbackListener, error) {
			return fhttp.ListenCallback(cfg.Auth.CallbackAddr(), fhttp.Options{Logger: lg, Timeout: cfg.Timeouts.Request})
		},
		OpenBrowser:     openBrowser,
		Provider:        cfg.Auth.Provider,
		RefreshInterval: cfg.Refresh.Interval,
		RequestTimeout:  cfg.Timeouts.Request,
		In:              os.Stdin,
		Out:             os.Stdout,
		Err:             os.Stderr,
	}, g.JSON)

	return app.Run(rootCtx, args)
}

// openStorage подключает хранилище таблиц по драйверу из конфига.
func openStorage(ctx context.Context, cfg config.DBConfig) (storage.Storage, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		return mongo.New(ctx, cfg.URL)
	default:
		return postgres.New(ctx, cfg.URL)
	}
}

// restoreSession восстанавливает сессию по refresh-токену из конфига
// или из файла сессии. Отклонённый токен удаляется.
func restoreSession(ctx context.Context, c *auth.Client, tokens *auth.FileStore, fromConfig string) {
	lg := log.From(ctx)

	token := fromConfig
	if token == "" {
		t, err := tokens.Load()
		if err != nil {
			lg.Warn("failed to read session file", "err", err)
			return
		}
		token = t
	}

	if token == "" {
		return
	}

	if _, err := c.Restore(ctx, token); err != nil {
		if errors.Is(err, auth.ErrRejected) {
			_ = tokens.Clear()
		}
		lg.Warn("continuing without session", "err", err)
	}
}

// openBrowser открывает ссылку в браузере по умолчанию.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	return cmd.Start()
}

// setupLogger — логи в stderr, чтобы не смешиваться с выводом команд.
func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	default:
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
}
