// service содержит бизнес-логику форума: чтение постов, сообществ,
// комментариев и голосов, голосование, создание постов, сообществ и комментариев.
package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pribylovaa/go-forum/internal/config"
	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/storage"
)

var (
	// ErrNotAuthenticated — операция требует сессии, а пользователь не вошёл.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidArgument — неверные входные параметры (см. ValidationError).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound — мутация ссылается на отсутствующую сущность (пост, сообщество, родитель).
	ErrNotFound = errors.New("not found")
	// ErrConflict — конфликт уникальности (например, имя сообщества занято).
	ErrConflict = errors.New("conflict")
	// ErrGateway — ошибка удалённого шлюза; исходное сообщение сохраняется в цепочке.
	ErrGateway = errors.New("gateway")
)

// ValidationError — нарушение правила для конкретного поля.
// errors.Is(err, ErrInvalidArgument) == true.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid argument: " + e.Reason
	}
	return "invalid argument: " + e.Field + " " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// SessionSource отдаёт текущую сессию; nil — пользователь не вошёл.
type SessionSource interface {
	Current() *models.Session
}

// Service — бизнес-логика форума поверх шлюза данных.
type Service struct {
	storage  storage.Storage
	images   storage.ImagesStorage
	session  SessionSource
	cfg      config.ImagesConfig
	validate *validator.Validate
	now      func() time.Time
}

// New создает новый экземпляр Service.
func New(st storage.Storage, images storage.ImagesStorage, session SessionSource, cfg config.ImagesConfig) *Service {
	return &Service{
		storage:  st,
		images:   images,
		session:  session,
		cfg:      cfg,
		validate: newValidator(),
		now:      time.Now,
	}
}

// newValidator настраивает validator: имена полей в ошибках берутся из json-тегов.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(f.Name)
		}
		return name
	})

	return v
}

// check валидирует входную структуру и сводит первую ошибку к ValidationError.
func (s *Service) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) && len(vErrs) > 0 {
		fe := vErrs[0]
		return &ValidationError{Field: fe.Field(), Reason: reason(fe)}
	}

	return &ValidationError{Reason: err.Error()}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		return "must be positive"
	default:
		return "failed on " + fe.Tag()
	}
}

// gatewayErr оборачивает ошибку шлюза: "op: gateway: <причина>".
func gatewayErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrGateway, err)
}

// currentSession возвращает сессию или ErrNotAuthenticated.
func (s *Service) currentSession(op string) (*models.Session, error) {
	if s.session == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}

	sess := s.session.Current()
	if sess == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}

	return sess, nil
}
