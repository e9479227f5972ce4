package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pribylovaa/go-forum/internal/models"
)

// FileStore хранит refresh-токен в файле с правами 0600.
// Пустой путь отключает хранение: Load возвращает "", Save/Clear ничего не делают.
type FileStore struct {
	path string
}

// NewFileStore создаёт хранилище для файла path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load читает сохранённый токен; отсутствие файла — не ошибка.
func (s *FileStore) Load() (string, error) {
	const op = "auth/store/Load"

	if s.path == "" {
		return "", nil
	}

	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return strings.TrimSpace(string(b)), nil
}

// Save сохраняет refresh-токен сессии; nil-сессия удаляет файл.
func (s *FileStore) Save(sess *models.Session) error {
	const op = "auth/store/Save"

	if s.path == "" {
		return nil
	}

	if sess == nil || sess.RefreshToken == "" {
		return s.Clear()
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sess.RefreshToken+"\n"), 0o600); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Clear удаляет файл токена.
func (s *FileStore) Clear() error {
	const op = "auth/store/Clear"

	if s.path == "" {
		return nil
	}

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
