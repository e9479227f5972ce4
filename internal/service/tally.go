package service

import (
	"github.com/google/uuid"

	"github.com/pribylovaa/go-forum/internal/models"
)

// TallyVotes считает лайки и дизлайки (повторы учитываются) и голос зрителя:
// значение первой записи с его user_id, VoteNone — если зрителя нет или он не голосовал.
func TallyVotes(votes []models.Vote, viewer *uuid.UUID) models.Tally {
	var t models.Tally
	ownFound := false

	for _, v := range votes {
		switch v.Value {
		case models.VoteLike:
			t.Likes++
		case models.VoteDislike:
			t.Dislikes++
		}

		if viewer != nil && !ownFound && v.UserID == *viewer {
			t.Own = v.Value
			ownFound = true
		}
	}

	return t
}

// StateOf переводит значение голоса в состояние.
func StateOf(value int) models.VoteState {
	switch value {
	case models.VoteLike:
		return models.Liked
	case models.VoteDislike:
		return models.Disliked
	default:
		return models.NoVote
	}
}

// NextVoteState — переход состояния голоса: повтор того же голоса снимает его,
// противоположный голос заменяет текущий. Недопустимое значение состояние не меняет.
func NextVoteState(current models.VoteState, requested int) models.VoteState {
	switch requested {
	case models.VoteLike:
		if current == models.Liked {
			return models.NoVote
		}
		return models.Liked
	case models.VoteDislike:
		if current == models.Disliked {
			return models.NoVote
		}
		return models.Disliked
	default:
		return current
	}
}
