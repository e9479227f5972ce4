package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/pribylovaa/go-forum/pkg/log"
)

var errNoListener = errors.New("oauth callback listener is not configured")

// login проводит OAuth-вход: слушает loopback-колбэк, печатает (и открывает)
// ссылку провайдера, ждёт код и обменивает его на сессию.
func (a *App) login(ctx context.Context, args []string) error {
	const op = "cli/login"

	fs := newFlags("login")
	provider := fs.String("provider", a.Provider, "OAuth provider")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	if a.Listen == nil {
		return fmt.Errorf("%s: %w", op, errNoListener)
	}

	ln, err := a.Listen()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer ln.Close()

	authz, err := a.Auth.SignInWithOAuth(ctx, *provider)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	fmt.Fprintf(a.Out, "Open this link to sign in with %s:\n  %s\n", *provider, authz.URL)
	if a.OpenBrowser != nil {
		if err := a.OpenBrowser(authz.URL); err != nil {
			log.From(ctx).Warn("failed to open browser", "op", op, "err", err)
		}
	}

	wctx, cancel := context.WithTimeout(ctx, a.LoginTimeout)
	defer cancel()

	code, err := ln.Wait(wctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sess, err := a.Auth.ExchangeCode(ctx, code, authz.Verifier)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	a.forgetViewer()

	if a.json {
		return writeJSON(a.Out, sess)
	}
	_, err = fmt.Fprintf(a.Out, "signed in as %s\n", displayName(sess.UserName, sess.UserID.String()))
	return err
}

func (a *App) logout(ctx context.Context, args []string) error {
	const op = "cli/logout"

	if _, err := parse(newFlags("logout"), args, 0); err != nil {
		return err
	}

	if err := a.Auth.SignOut(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	a.forgetViewer()

	_, err := fmt.Fprintln(a.Out, "signed out")
	return err
}

func (a *App) whoami(_ context.Context, args []string) error {
	if _, err := parse(newFlags("whoami"), args, 0); err != nil {
		return err
	}

	sess := a.Session.Current()
	if a.json {
		return writeJSON(a.Out, sess)
	}

	if sess == nil {
		_, err := fmt.Fprintln(a.Out, "not signed in")
		return err
	}

	fmt.Fprintf(a.Out, "%s (%s)\n", displayName(sess.UserName, sess.UserID.String()), sess.UserID)
	if !sess.ExpiresAt.IsZero() {
		fmt.Fprintf(a.Out, "session expires %s\n", formatTime(sess.ExpiresAt))
	}
	return nil
}

// forgetViewer сбрасывает кэш, зависящий от текущего пользователя (собственный голос).
func (a *App) forgetViewer() {
	a.Cache.InvalidateKind(kindPost)
	a.Cache.InvalidateKind(kindTally)
}

func displayName(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
