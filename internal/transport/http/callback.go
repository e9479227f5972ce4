// http — loopback-приёмник OAuth-редиректа: провайдер возвращает браузер на
// 127.0.0.1 с ?code=..., обработчик передаёт код CLI-команде login.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-forum/internal/auth"
	"github.com/pribylovaa/go-forum/internal/transport/http/middleware"
	logctx "github.com/pribylovaa/go-forum/pkg/log"
)

// ErrDenied — провайдер вернул ошибку вместо кода (пользователь отказал и т.п.).
var ErrDenied = errors.New("authorization denied")

// CallbackResult — итог одного редиректа.
type CallbackResult struct {
	Code string
	Err  error
}

// Options — параметры сборки роутера колбэка.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
}

// NewCallbackRouter собирает chi-роутер с обработчиком auth.CallbackPath,
// обёрнутый стеком middleware.Loopback: он покрывает и неизвестные пути.
// Первый результат отправляется в results без блокировки, повторные отбрасываются.
func NewCallbackRouter(results chan<- CallbackResult, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Get(auth.CallbackPath, func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()

		res := CallbackResult{Code: q.Get("code")}
		switch {
		case q.Get("error") != "":
			res = CallbackResult{Err: fmt.Errorf("%w: %s: %s", ErrDenied, q.Get("error"), q.Get("error_description"))}
		case res.Code == "":
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		select {
		case results <- res:
		default:
			logctx.From(req.Context()).Warn("duplicate oauth callback ignored")
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if res.Err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("Sign-in failed. You can close this tab.\n"))
			return
		}
		_, _ = w.Write([]byte("Signed in. You can close this tab and return to the terminal.\n"))
	})

	return middleware.Chain(r, middleware.Loopback(opts.Logger, opts.Timeout)...)
}

// CallbackServer — одноразовый loopback-сервер для приёма OAuth-кода.
type CallbackServer struct {
	ln      net.Listener
	srv     *http.Server
	results chan CallbackResult
	errc    chan error
}

// ListenCallback начинает слушать addr (host:port) до открытия браузера,
// чтобы редирект не ушёл в пустоту.
func ListenCallback(addr string, opts Options) (*CallbackServer, error) {
	const op = "transport/http/ListenCallback"

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	results := make(chan CallbackResult, 1)
	s := &CallbackServer{
		ln:      ln,
		results: results,
		errc:    make(chan error, 1),
		srv: &http.Server{
			Handler:           NewCallbackRouter(results, opts),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errc <- err
		}
	}()

	return s, nil
}

// Addr — фактический адрес слушателя.
func (s *CallbackServer) Addr() string { return s.ln.Addr().String() }

// Wait ждёт код авторизации, ошибку провайдера или отмену ctx и останавливает сервер.
func (s *CallbackServer) Wait(ctx context.Context) (string, error) {
	const op = "transport/http/CallbackServer.Wait"

	defer s.Close()

	select {
	case res := <-s.results:
		if res.Err != nil {
			return "", fmt.Errorf("%s: %w", op, res.Err)
		}
		return res.Code, nil
	case err := <-s.errc:
		return "", fmt.Errorf("%s: serve: %w", op, err)
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	}
}

// Close останавливает сервер.
func (s *CallbackServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return s.srv.Shutdown(ctx)
}
