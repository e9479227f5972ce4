// session хранит текущую сессию пользователя для сервисного слоя.
// Состояние заполняется один раз при старте и далее обновляется
// по уведомлениям провайдера аутентификации.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/pkg/log"
)

// Source — провайдер сессии с подпиской на её смену.
type Source interface {
	Session(ctx context.Context) (*models.Session, error)
	Subscribe(fn func(*models.Session)) (unsubscribe func())
}

// State — потокобезопасный снимок текущей сессии.
type State struct {
	mu          sync.RWMutex
	current     *models.Session
	notified    bool
	unsubscribe func()
}

// New подписывается на src и заполняет состояние его текущей сессией.
// Подписка оформляется до чтения, чтобы не пропустить смену сессии между ними.
func New(ctx context.Context, src Source) (*State, error) {
	const op = "session/New"

	st := &State{}
	st.unsubscribe = src.Subscribe(st.set)

	s, err := src.Session(ctx)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Уведомление могло прийти раньше; не затираем более свежую сессию.
	st.mu.Lock()
	if !st.notified {
		st.current = s
	}
	st.mu.Unlock()

	lg := log.From(ctx).With("op", op)
	if s != nil {
		lg.Debug("session loaded", "user_id", s.UserID.String())
	} else {
		lg.Debug("no session")
	}

	return st, nil
}

// Current возвращает копию текущей сессии; nil — пользователь не вошёл.
func (st *State) Current() *models.Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if st.current == nil {
		return nil
	}

	cp := *st.current
	return &cp
}

// Close отменяет подписку. Повторный вызов безопасен.
func (st *State) Close() {
	st.mu.Lock()
	unsub := st.unsubscribe
	st.unsubscribe = nil
	st.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (st *State) set(s *models.Session) {
	st.mu.Lock()
	st.current = s
	st.notified = true
	st.mu.Unlock()
}
