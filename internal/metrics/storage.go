package metrics

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/storage"
)

// WrapStorage оборачивает хранилище таблиц: каждый вызов попадает в метрики.
func (m *Metrics) WrapStorage(st storage.Storage) storage.Storage {
	return &instrumentedStorage{next: st, m: m}
}

// WrapImages оборачивает бакет изображений.
func (m *Metrics) WrapImages(img storage.ImagesStorage) storage.ImagesStorage {
	return &instrumentedImages{next: img, m: m}
}

type instrumentedStorage struct {
	next storage.Storage
	m    *Metrics
}

var _ storage.Storage = (*instrumentedStorage)(nil)

func (s *instrumentedStorage) PostsWithCounts(ctx context.Context) ([]models.Post, error) {
	start := time.Now()
	out, err := s.next.PostsWithCounts(ctx)
	s.m.observe("posts_with_counts", start, err)
	return out, err
}

func (s *instrumentedStorage) PostByID(ctx context.Context, id int64) (*models.Post, error) {
	start := time.Now()
	p, err := s.next.PostByID(ctx, id)
	s.m.observe("post_by_id", start, err)
	return p, err
}

func (s *instrumentedStorage) PostsByCommunity(ctx context.Context, communityID int64) ([]models.Post, error) {
	start := time.Now()
	out, err := s.next.PostsByCommunity(ctx, communityID)
	s.m.observe("posts_by_community", start, err)
	return out, err
}

func (s *instrumentedStorage) CreatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	start := time.Now()
	p, err := s.next.CreatePost(ctx, post)
	s.m.observe("create_post", start, err)
	return p, err
}

func (s *instrumentedStorage) ListCommunities(ctx context.Context) ([]models.Community, error) {
	start := time.Now()
	out, err := s.next.ListCommunities(ctx)
	s.m.observe("list_communities", start, err)
	return out, err
}

func (s *instrumentedStorage) CreateCommunity(ctx context.Context, c models.Community) (*models.Community, error) {
	start := time.Now()
	out, err := s.next.CreateCommunity(ctx, c)
	s.m.observe("create_community", start, err)
	return out, err
}

func (s *instrumentedStorage) ListComments(ctx context.Context, postID int64) ([]models.Comment, error) {
	start := time.Now()
	out, err := s.next.ListComments(ctx, postID)
	s.m.observe("list_comments", start, err)
	return out, err
}

func (s *instrumentedStorage) CreateComment(ctx context.Context, c models.Comment) (*models.Comment, error) {
	start := time.Now()
	out, err := s.next.CreateComment(ctx, c)
	s.m.observe("create_comment", start, err)
	return out, err
}

func (s *instrumentedStorage) ListVotes(ctx context.Context, postID int64) ([]models.Vote, error) {
	start := time.Now()
	out, err := s.next.ListVotes(ctx, postID)
	s.m.observe("list_votes", start, err)
	return out, err
}

func (s *instrumentedStorage) VoteByVoter(ctx context.Context, postID int64, userID uuid.UUID) (*models.Vote, error) {
	start := time.Now()
	out, err := s.next.VoteByVoter(ctx, postID, userID)
	s.m.observe("vote_by_voter", start, err)
	return out, err
}

func (s *instrumentedStorage) InsertVote(ctx context.Context, v models.Vote) (*models.Vote, error) {
	start := time.Now()
	out, err := s.next.InsertVote(ctx, v)
	s.m.observe("insert_vote", start, err)
	return out, err
}

func (s *instrumentedStorage) UpdateVote(ctx context.Context, id int64, value int) error {
	start := time.Now()
	err := s.next.UpdateVote(ctx, id, value)
	s.m.observe("update_vote", start, err)
	return err
}

func (s *instrumentedStorage) DeleteVote(ctx context.Context, id int64) error {
	start := time.Now()
	err := s.next.DeleteVote(ctx, id)
	s.m.observe("delete_vote", start, err)
	return err
}

func (s *instrumentedStorage) Close() { s.next.Close() }

type instrumentedImages struct {
	next storage.ImagesStorage
	m    *Metrics
}

var _ storage.ImagesStorage = (*instrumentedImages)(nil)

func (s *instrumentedImages) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	start := time.Now()
	err := s.next.Upload(ctx, key, body, size, contentType)
	s.m.observe("upload_image", start, err)
	return err
}

func (s *instrumentedImages) PublicURL(key string) string { return s.next.PublicURL(key) }
