// Package storage описывает контракты удалённого шлюза данных форума:
// хостовое хранилище таблиц и бакет изображений.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-forum/internal/models"
)

var (
	// ErrNotFound — сущность отсутствует в хранилище.
	ErrNotFound = errors.New("not found")
	// ErrConflict — конфликт уникальности (например, имя сообщества).
	ErrConflict = errors.New("conflict")
	// ErrInvalidRecord — запись из хранилища не прошла разбор в типизированную модель.
	ErrInvalidRecord = errors.New("invalid record")
)

// Storage описывает операции над постами, сообществами, комментариями и голосами.
type Storage interface {
	// PostsWithCounts возвращает все посты с агрегированными LikeCount/CommentCount.
	// Порядок определяет хранилище (сначала новые).
	PostsWithCounts(ctx context.Context) ([]models.Post, error)

	// PostByID возвращает пост по идентификатору.
	// Если запись не найдена — ErrNotFound.
	PostByID(ctx context.Context, id int64) (*models.Post, error)

	// PostsByCommunity возвращает посты сообщества (created_at DESC) с именем сообщества.
	PostsByCommunity(ctx context.Context, communityID int64) ([]models.Post, error)

	// CreatePost сохраняет пост. ID и CreatedAt назначает хранилище.
	CreatePost(ctx context.Context, post models.Post) (*models.Post, error)

	// ListCommunities возвращает сообщества (created_at DESC).
	ListCommunities(ctx context.Context) ([]models.Community, error)

	// CreateCommunity сохраняет сообщество; занятое имя — ErrConflict.
	CreateCommunity(ctx context.Context, community models.Community) (*models.Community, error)

	// ListComments возвращает комментарии поста плоским списком (created_at ASC).
	ListComments(ctx context.Context, postID int64) ([]models.Comment, error)

	// CreateComment сохраняет комментарий (корневой или ответ).
	CreateComment(ctx context.Context, comment models.Comment) (*models.Comment, error)

	// ListVotes возвращает все голоса за пост.
	ListVotes(ctx context.Context, postID int64) ([]models.Vote, error)

	// VoteByVoter возвращает голос пользователя за пост.
	// Если голоса нет — ErrNotFound.
	VoteByVoter(ctx context.Context, postID int64, userID uuid.UUID) (*models.Vote, error)

	// InsertVote сохраняет новый голос.
	InsertVote(ctx context.Context, vote models.Vote) (*models.Vote, error)

	// UpdateVote меняет значение существующего голоса. Нет записи — ErrNotFound.
	UpdateVote(ctx context.Context, id int64, value int) error

	// DeleteVote удаляет голос. Нет записи — ErrNotFound.
	DeleteVote(ctx context.Context, id int64) error

	// Close закрывает соединения/ресурсы хранилища.
	Close()
}
