// Package models содержит доменные сущности форума.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Post — пост сообщества.
// Важно:
//   - ID — целочисленный идентификатор, выдаётся хранилищем;
//   - ImageURL — публичная ссылка на изображение в бакете;
//   - CommunityID — nil, если пост не привязан к сообществу;
//   - LikeCount/CommentCount — только чтение, заполняются агрегирующим запросом
//     списка постов; в остальных выборках равны нулю;
//   - CommunityName — заполняется выборкой постов сообщества (join по communities).
type Post struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
	ImageURL      string    `json:"image_url"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	CommunityID   *int64    `json:"community_id,omitempty"`
	CommunityName string    `json:"community_name,omitempty"`
	LikeCount     int64     `json:"like_count"`
	CommentCount  int64     `json:"comment_count"`
}

// Community — тематическое сообщество.
type Community struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Comment — комментарий к посту.
// ParentID == nil -> корневой комментарий.
// Author — отображаемое имя, денормализовано в момент записи.
type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	ParentID  *int64    `json:"parent_comment_id,omitempty"`
	Content   string    `json:"content"`
	UserID    uuid.UUID `json:"user_id"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentNode — комментарий вместе с упорядоченными ответами.
type CommentNode struct {
	Comment
	Children []*CommentNode `json:"children"`
}

// Vote — голос пользователя за пост; отсутствие строки = «нет голоса».
type Vote struct {
	ID     int64     `json:"id"`
	PostID int64     `json:"post_id"`
	UserID uuid.UUID `json:"user_id"`
	Value  int       `json:"vote"`
}

// Значения голоса.
const (
	VoteNone    = 0
	VoteLike    = 1
	VoteDislike = -1
)

// Tally — агрегированные голоса поста с точки зрения зрителя.
type Tally struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
	// Own — голос текущего пользователя; VoteNone, если его нет.
	Own int `json:"own"`
}

// VoteState — состояние голоса пользователя за один пост.
type VoteState int

const (
	NoVote VoteState = iota
	Liked
	Disliked
)

// String возвращает человекочитаемое имя состояния.
func (s VoteState) String() string {
	switch s {
	case Liked:
		return "liked"
	case Disliked:
		return "disliked"
	default:
		return "none"
	}
}

// Session — аутентифицированная сессия пользователя; отсутствие = nil.
type Session struct {
	UserID       uuid.UUID `json:"user_id"`
	UserName     string    `json:"user_name"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired сообщает, истёк ли access-токен к моменту now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
