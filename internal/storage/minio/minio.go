// minio предоставляет реализацию storage.ImagesStorage на базе MinIO/S3:
// загрузка изображений постов и сборка публичных ссылок.
package minio

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pribylovaa/go-forum/internal/config"
	"github.com/pribylovaa/go-forum/internal/storage"
)

// ImagesStorage — адаптер MinIO для бакета изображений.
type ImagesStorage struct {
	cfg    config.S3Config
	client *mclient.Client
	// baseURL — префикс публичных ссылок без завершающего слэша.
	baseURL string
}

// New создает клиент MinIO: убирает схему из endpoint, подбирает Secure по схеме
// и выполняет fail-fast-проверку наличия бакета.
func New(ctx context.Context, cfg config.S3Config) (*ImagesStorage, error) {
	const op = "storage/minio/New"

	endpoint := cfg.Endpoint
	secure := strings.HasPrefix(endpoint, "https://")
	scheme := "http"

	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
		scheme = u.Scheme
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !exists {
		return nil, fmt.Errorf("%s: bucket %q does not exist", op, cfg.Bucket)
	}

	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = scheme + "://" + endpoint + "/" + cfg.Bucket
	}

	return &ImagesStorage{cfg: cfg, client: client, baseURL: base}, nil
}

// Upload кладёт объект в бакет с указанным Content-Type.
func (s *ImagesStorage) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	const op = "storage/minio/Upload"

	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%s: empty key", op)
	}

	if _, err := s.client.PutObject(ctx, s.cfg.Bucket, key, body, size, mclient.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// PublicURL возвращает публичную ссылку: <public_base_url>/<key>,
// либо <endpoint>/<bucket>/<key>, если префикс не сконфигурирован.
func (s *ImagesStorage) PublicURL(key string) string {
	return s.baseURL + "/" + escapeKey(key)
}

// escapeKey экранирует сегменты ключа, сохраняя разделители "/".
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}

	return strings.Join(parts, "/")
}

// Проверка выполнения контракта верхнего уровня.
var _ storage.ImagesStorage = (*ImagesStorage)(nil)
