package storage

import (
	"context"
	"io"
)

// ImagesStorage — контракт бакета изображений постов.
type ImagesStorage interface {
	// Upload загружает объект под ключом key. size < 0 — размер неизвестен.
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// PublicURL возвращает публичную ссылку на объект по ключу.
	PublicURL(key string) string
}
