package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// accessClaims — claims access-токена провайдера.
type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// verify разбирает access-токен. С секретом проверяются подпись (только HS256)
// и срок действия; без секрета токен разбирается без проверки подписи.
func (c *Client) verify(tokenStr string) (*accessClaims, error) {
	const op = "auth/token/verify"

	if tokenStr == "" {
		return nil, fmt.Errorf("%s: %w: empty access token", op, ErrInvalidToken)
	}

	claims := &accessClaims{}

	if c.secret == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
		}
		return claims, nil
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}

			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w: token expired", op, ErrInvalidToken)
		}

		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

// parseSubject извлекает идентификатор пользователя из claim sub.
func parseSubject(claims *accessClaims) (uuid.UUID, error) {
	uid, err := uuid.Parse(claims.Subject)
	if err != nil || uid == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}

	return uid, nil
}
