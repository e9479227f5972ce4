// auth — клиент хостового провайдера аутентификации:
// OAuth с PKCE, обмен кода на сессию, обновление по refresh-токену,
// выход и подписка на смену сессии.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"github.com/pribylovaa/go-forum/internal/config"
	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/pkg/log"
	"github.com/pribylovaa/go-forum/pkg/redact"
)

var (
	// ErrInvalidToken — access-токен не прошёл проверку.
	ErrInvalidToken = errors.New("invalid token")
	// ErrRejected — провайдер отклонил запрос (4xx).
	ErrRejected = errors.New("rejected by auth provider")
	// ErrUnavailable — провайдер недоступен или ответил 5xx.
	ErrUnavailable = errors.New("auth provider unavailable")
)

// CallbackPath — путь loopback-обработчика, на который провайдер вернёт код.
const CallbackPath = "/callback"

// refreshSkew — сессия обновляется заранее, за это время до истечения.
const refreshSkew = 10 * time.Second

// Authorization — данные для завершения OAuth-входа.
//   - URL: адрес страницы провайдера, который нужно открыть в браузере;
//   - Verifier: PKCE code_verifier для обмена кода;
//   - RedirectTo: loopback-адрес, куда провайдер вернёт ?code=...
type Authorization struct {
	URL        string
	Verifier   string
	RedirectTo string
}

// Client — клиент провайдера аутентификации. Хранит текущую сессию
// и уведомляет подписчиков о каждой её смене. Безопасен для конкурентного использования.
type Client struct {
	cfg    config.AuthConfig
	http   *resty.Client
	secret []byte
	now    func() time.Time

	mu      sync.Mutex
	session *models.Session
	subs    map[int]func(*models.Session)
	nextSub int
}

// New создаёт клиента поверх resty с JSON-кодеком goccy/go-json.
func New(cfg config.AuthConfig, timeout time.Duration) *Client {
	hc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	if cfg.AnonKey != "" {
		hc.SetHeader("apikey", cfg.AnonKey)
	}

	var secret []byte
	if cfg.JWTSecret != "" {
		secret = []byte(cfg.JWTSecret)
	}

	return &Client{
		cfg:    cfg,
		http:   hc,
		secret: secret,
		now:    time.Now,
		subs:   make(map[int]func(*models.Session)),
	}
}

// SignInWithOAuth готовит вход через провайдера: генерирует PKCE-пару
// и собирает адрес страницы авторизации. Пустой provider — провайдер из конфига.
func (c *Client) SignInWithOAuth(ctx context.Context, provider string) (*Authorization, error) {
	const op = "auth/SignInWithOAuth"

	if provider == "" {
		provider = c.cfg.Provider
	}

	verifier, err := newVerifier()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	redirect := "http://" + c.cfg.CallbackAddr() + CallbackPath

	q := url.Values{}
	q.Set("provider", provider)
	q.Set("redirect_to", redirect)
	q.Set("code_challenge", challenge(verifier))
	q.Set("code_challenge_method", "s256")

	log.From(ctx).Debug("oauth authorization prepared", "op", op, "provider", provider, "redirect_to", redirect)

	return &Authorization{
		URL:        strings.TrimRight(c.cfg.URL, "/") + "/auth/v1/authorize?" + q.Encode(),
		Verifier:   verifier,
		RedirectTo: redirect,
	}, nil
}

// ExchangeCode обменивает код авторизации на сессию и делает её текущей.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*models.Session, error) {
	const op = "auth/ExchangeCode"

	if strings.TrimSpace(code) == "" || verifier == "" {
		return nil, fmt.Errorf("%s: %w: empty code or verifier", op, ErrRejected)
	}

	s, err := c.token(ctx, "pkce", map[string]string{
		"auth_code":     code,
		"code_verifier": verifier,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.set(s)
	log.From(ctx).Info("signed in", "op", op, "user_id", s.UserID.String(), "user_name", s.UserName)

	return s, nil
}

// Restore восстанавливает сессию по сохранённому refresh-токену.
func (c *Client) Restore(ctx context.Context, refreshToken string) (*models.Session, error) {
	const op = "auth/Restore"

	if refreshToken == "" {
		return nil, fmt.Errorf("%s: %w: empty refresh token", op, ErrRejected)
	}

	s, err := c.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
	if err != nil {
		log.From(ctx).Warn("session restore failed", "op", op, "refresh_token", redact.Token(refreshToken), "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.set(s)

	return s, nil
}

// Session возвращает текущую сессию; nil — пользователь не вошёл.
// Истёкшая (или почти истёкшая) сессия обновляется; если провайдер отклонил
// refresh-токен, сессия сбрасывается и возвращается nil без ошибки.
func (c *Client) Session(ctx context.Context) (*models.Session, error) {
	const op = "auth/Session"

	c.mu.Lock()
	cur := c.session
	c.mu.Unlock()

	if cur == nil {
		return nil, nil
	}

	if !cur.Expired(c.now().Add(refreshSkew)) {
		cp := *cur
		return &cp, nil
	}

	s, err := c.token(ctx, "refresh_token", map[string]string{"refresh_token": cur.RefreshToken})
	if err != nil {
		if errors.Is(err, ErrRejected) || errors.Is(err, ErrInvalidToken) {
			log.From(ctx).Warn("session expired and refresh rejected", "op", op, "user_id", cur.UserID.String())
			c.set(nil)
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.set(s)

	return s, nil
}

// Subscribe регистрирует обработчик смены сессии (nil — выход).
// Возвращаемая функция отменяет подписку; повторный вызов безопасен.
func (c *Client) Subscribe(fn func(*models.Session)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// SignOut отзывает сессию у провайдера и сбрасывает её локально.
// Локальный сброс выполняется даже при ошибке отзыва.
func (c *Client) SignOut(ctx context.Context) error {
	const op = "auth/SignOut"

	c.mu.Lock()
	cur := c.session
	c.mu.Unlock()

	if cur == nil {
		return nil
	}

	defer c.set(nil)

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(cur.AccessToken).
		SetError(&apiError{}).
		Post("/auth/v1/logout")
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	if err := statusError(resp); err != nil {
		// Уже недействительный токен означает, что выходить не из чего.
		if resp.StatusCode() == http.StatusUnauthorized {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("signed out", "op", op, "user_id", cur.UserID.String())

	return nil
}

// set заменяет текущую сессию и уведомляет подписчиков вне блокировки.
func (c *Client) set(s *models.Session) {
	c.mu.Lock()
	c.session = s
	subs := make([]func(*models.Session), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		if s == nil {
			fn(nil)
			continue
		}
		cp := *s
		fn(&cp)
	}
}

// tokenResponse — ответ /auth/v1/token.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID           string       `json:"id"`
		Email        string       `json:"email"`
		UserMetadata userMetadata `json:"user_metadata"`
	} `json:"user"`
}

type userMetadata struct {
	UserName          string `json:"user_name"`
	PreferredUsername string `json:"preferred_username"`
	FullName          string `json:"full_name"`
	AvatarURL         string `json:"avatar_url"`
}

// apiError — тело ошибки провайдера (встречаются оба формата).
type apiError struct {
	Code             string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
}

func (e *apiError) message() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Code} {
		if s != "" {
			return s
		}
	}
	return ""
}

// statusError переводит статус ответа в ErrRejected/ErrUnavailable.
func statusError(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}

	msg := resp.Status()
	if e, ok := resp.Error().(*apiError); ok && e.message() != "" {
		msg = e.message()
	}

	if resp.StatusCode() >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s", ErrUnavailable, msg)
	}

	return fmt.Errorf("%w: %s", ErrRejected, msg)
}

// token выполняет POST /auth/v1/token с указанным grant_type и собирает сессию.
func (c *Client) token(ctx context.Context, grant string, body map[string]string) (*models.Session, error) {
	var out tokenResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", grant).
		SetBody(body).
		SetResult(&out).
		SetError(&apiError{}).
		Post("/auth/v1/token")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if err := statusError(resp); err != nil {
		return nil, err
	}

	log.From(ctx).Debug("token issued", "op", "auth/token", "grant", grant,
		"email", redact.Email(out.User.Email), "access_token", redact.Token(out.AccessToken))

	return c.sessionFrom(out)
}

// sessionFrom собирает сессию из ответа, проверяя access-токен.
// Идентификатор пользователя берётся из claim sub и должен совпадать с user.id.
func (c *Client) sessionFrom(out tokenResponse) (*models.Session, error) {
	claims, err := c.verify(out.AccessToken)
	if err != nil {
		return nil, err
	}

	uid, err := parseSubject(claims)
	if err != nil {
		return nil, err
	}

	if out.User.ID != "" && out.User.ID != uid.String() {
		return nil, fmt.Errorf("%w: subject does not match user id", ErrInvalidToken)
	}

	md := out.User.UserMetadata
	name := firstNonEmpty(md.UserName, md.PreferredUsername, md.FullName)

	expires := time.Time{}
	switch {
	case claims.ExpiresAt != nil:
		expires = claims.ExpiresAt.Time
	case out.ExpiresAt > 0:
		expires = time.Unix(out.ExpiresAt, 0)
	case out.ExpiresIn > 0:
		expires = c.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}

	return &models.Session{
		UserID:       uid,
		UserName:     name,
		AvatarURL:    md.AvatarURL,
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    expires.UTC(),
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
