package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Vote values
const (
	VoteUp   = 1
	VoteDown = -1
)

// Vote is one user's current vote on a comment
type Vote struct {
	UserID string `json:"userId"`
	Value  int    `json:"value"`
}

// Comment is a node of a file's discussion thread. Username and
// ProfilePictureURL are a point-in-time snapshot of the author taken when the
// comment was posted; later profile changes are not propagated.
type Comment struct {
	ID                uint                      `gorm:"primaryKey" json:"id"`
	FileID            string                    `gorm:"size:64;not null;index:idx_comments_file_created,priority:1" json:"fileId"`
	UserID            string                    `gorm:"size:64;not null;index" json:"userId"`
	ParentID          *uint                     `gorm:"index" json:"parentId"`
	Content           string                    `gorm:"type:text;not null" json:"content"`
	Deleted           bool                      `gorm:"not null;default:false" json:"deleted"`
	Username          string                    `gorm:"size:100" json:"username"`
	ProfilePictureURL string                    `gorm:"size:500" json:"profilePictureUrl"`
	Votes             datatypes.JSONSlice[Vote] `json:"votes"`
	NetVotes          int                       `gorm:"not null;default:0" json:"netVotes"`
	Version           int                       `gorm:"not null;default:0" json:"-"`
	CreatedAt         time.Time                 `gorm:"index:idx_comments_file_created,priority:2" json:"createdAt"`
	UpdatedAt         time.Time                 `json:"updatedAt"`
}

func (Comment) TableName() string {
	return "comments"
}

// CreateCommentRequest is the body of POST /comment.
// NetVotes is accepted for client compatibility and ignored.
type CreateCommentRequest struct {
	FileID            string `json:"fileId"`
	UserID            string `json:"userId"`
	ParentID          *uint  `json:"parentId"`
	Content           string `json:"content"`
	Username          string `json:"username"`
	ProfilePictureURL string `json:"profilePictureUrl"`
	NetVotes          *int   `json:"netVotes,omitempty"`
}

// UpdateCommentRequest is the body of PUT /comment/:id
type UpdateCommentRequest struct {
	Content  string `json:"content"`
	ParentID *uint  `json:"parentId"`
}

// VoteRequest is the body of POST /comment/:id/vote
type VoteRequest struct {
	VoteType string `json:"voteType" binding:"required,oneof=upvote downvote up down"`
	Nonce    string `json:"nonce,omitempty" binding:"omitempty,max=128"`
}

// VoteResult is returned after a vote is applied
type VoteResult struct {
	NetVotes int    `json:"netVotes"`
	Votes    []Vote `json:"votes"`
}

// VoteValue maps a vote direction to +1 / -1
func VoteValue(direction string) (int, bool) {
	switch direction {
	case "upvote", "up":
		return VoteUp, true
	case "downvote", "down":
		return VoteDown, true
	}
	return 0, false
}

// ApplyVote returns the vote list after userID votes value. It never mutates
// votes:
//   - no vote by userID: the vote is appended
//   - same value: the vote is removed (toggle off)
//   - opposite value: the value is flipped in place
func ApplyVote(votes []Vote, userID string, value int) []Vote {
	out := make([]Vote, 0, len(votes)+1)
	found := false
	for _, v := range votes {
		if v.UserID != userID {
			out = append(out, v)
			continue
		}
		found = true
		if v.Value == value {
			continue
		}
		out = append(out, Vote{UserID: userID, Value: value})
	}
	if !found {
		out = append(out, Vote{UserID: userID, Value: value})
	}
	return out
}

// SumVotes is the net score of votes
func SumVotes(votes []Vote) int {
	net := 0
	for _, v := range votes {
		net += v.Value
	}
	return net
}
