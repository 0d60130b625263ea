package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/studyshare/studyshare-backend/internal/common"
	"github.com/studyshare/studyshare-backend/internal/domain"
	"github.com/studyshare/studyshare-backend/internal/repository"
	"github.com/studyshare/studyshare-backend/pkg/cache"
	pkglogger "github.com/studyshare/studyshare-backend/pkg/logger"
	"gorm.io/datatypes"
)

// maxVoteAttempts bounds the optimistic-lock retries of a single vote
const maxVoteAttempts = 5

// CommentService handles threaded comments and their votes
type CommentService interface {
	PostComment(ctx context.Context, req *domain.CreateCommentRequest) (*domain.Comment, error)
	EditComment(ctx context.Context, actorID string, id uint, req *domain.UpdateCommentRequest) (*domain.Comment, error)
	SoftDeleteComment(ctx context.Context, actorID string, id uint) (*domain.Comment, error)
	ListComments(ctx context.Context, fileID string) ([]*domain.Comment, error)

	// ApplyVote toggles userID's vote. A non-empty nonce makes retries of the
	// same request return the first result.
	ApplyVote(ctx context.Context, commentID uint, userID, direction, nonce string) (*domain.VoteResult, error)
}

type commentService struct {
	repo          repository.CommentRepository
	users         UserDirectory
	notifications NotificationService
	publisher     Publisher
	nonces        cache.Service
	now           func() time.Time
}

// NewCommentService creates a CommentService. nonces may be nil, which turns
// vote request deduplication off.
func NewCommentService(
	repo repository.CommentRepository,
	users UserDirectory,
	notifications NotificationService,
	publisher Publisher,
	nonces cache.Service,
) CommentService {
	return &commentService{
		repo:          repo,
		users:         users,
		notifications: notifications,
		publisher:     publisherOrNop(publisher),
		nonces:        nonces,
		now:           utcNow,
	}
}

func (s *commentService) PostComment(ctx context.Context, req *domain.CreateCommentRequest) (*domain.Comment, error) {
	fileID := strings.TrimSpace(req.FileID)
	userID := strings.TrimSpace(req.UserID)
	content := common.SanitizeText(req.Content)
	if fileID == "" || userID == "" || content == "" {
		return nil, common.NewValidationError("fileId, userId, and content are required", missingFields(
			"fileId", fileID, "userId", userID, "content", content)...)
	}

	author, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	var parent *domain.Comment
	if req.ParentID != nil {
		if parent, err = s.findParent(ctx, *req.ParentID, fileID); err != nil {
			return nil, err
		}
	}

	comment := &domain.Comment{
		FileID:            fileID,
		UserID:            userID,
		ParentID:          req.ParentID,
		Content:           content,
		Username:          strings.TrimSpace(req.Username),
		ProfilePictureURL: strings.TrimSpace(req.ProfilePictureURL),
		Votes:             datatypes.JSONSlice[domain.Vote]{},
		NetVotes:          0,
		CreatedAt:         s.now(),
	}
	if comment.Username == "" {
		comment.Username = snapshotName(author)
	}
	if comment.ProfilePictureURL == "" {
		comment.ProfilePictureURL = author.ProfilePictureURL
	}

	if err := s.repo.Create(ctx, comment); err != nil {
		return nil, err
	}

	if parent != nil && parent.UserID != userID && s.notifications != nil {
		if _, err := s.notifications.NotifyReply(ctx, parent, comment); err != nil {
			pkglogger.GetLogger().Error().Err(err).
				Uint("comment_id", comment.ID).
				Str("recipient", parent.UserID).
				Msg("failed to create reply notification")
		}
	}

	s.publisher.BroadcastAll(domain.EventReceiveComment, comment)
	return comment, nil
}

func (s *commentService) EditComment(ctx context.Context, actorID string, id uint, req *domain.UpdateCommentRequest) (*domain.Comment, error) {
	content := common.SanitizeText(req.Content)
	if content == "" {
		return nil, common.NewValidationError("content is required", "content")
	}

	comment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.UserID != actorID {
		return nil, common.ErrForbidden
	}
	if req.ParentID != nil {
		if *req.ParentID == id {
			return nil, common.NewValidationError("a comment cannot reply to itself", "parentId")
		}
		parent, err := s.findParent(ctx, *req.ParentID, comment.FileID)
		if err != nil {
			return nil, err
		}
		if err := s.rejectCycle(ctx, id, parent); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateContent(ctx, id, content, req.ParentID); err != nil {
		return nil, err
	}
	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publisher.BroadcastAll(domain.EventCommentUpdated, updated)
	return updated, nil
}

func (s *commentService) SoftDeleteComment(ctx context.Context, actorID string, id uint) (*domain.Comment, error) {
	comment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.UserID != actorID {
		return nil, common.ErrForbidden
	}

	if !comment.Deleted {
		if err := s.repo.SetDeleted(ctx, id); err != nil {
			return nil, err
		}
		comment.Deleted = true
	}

	s.publisher.BroadcastAll(domain.EventCommentDeleted, comment)
	return comment, nil
}

func (s *commentService) ListComments(ctx context.Context, fileID string) ([]*domain.Comment, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, common.NewValidationError("fileId is required", "fileId")
	}
	return s.repo.ListByFile(ctx, fileID)
}

// voteReplay is what a vote nonce maps to in the cache. Result stays nil while
// the first request is still running.
type voteReplay struct {
	Result *domain.VoteResult `json:"result,omitempty"`
}

func (s *commentService) ApplyVote(ctx context.Context, commentID uint, userID, direction, nonce string) (*domain.VoteResult, error) {
	value, ok := domain.VoteValue(direction)
	if !ok {
		return nil, common.NewValidationError("voteType must be upvote or downvote", "voteType")
	}
	if userID == "" {
		return nil, common.ErrUnauthorized
	}

	if nonce == "" || s.nonces == nil || !s.nonces.IsAvailable() {
		return s.applyVote(ctx, commentID, userID, value)
	}

	key := fmt.Sprintf("%s%d:%s:%s", cache.PrefixVote, commentID, userID, nonce)
	claimed, err := s.nonces.SetNX(ctx, key, voteReplay{}, cache.TTLIdempotency)
	if err != nil {
		pkglogger.GetLogger().Warn().Err(err).Msg("vote nonce store unavailable, applying without deduplication")
		return s.applyVote(ctx, commentID, userID, value)
	}
	if !claimed {
		var prev voteReplay
		if err := s.nonces.Get(ctx, key, &prev); err == nil && prev.Result != nil {
			return prev.Result, nil
		}
		return nil, fmt.Errorf("vote %q still in progress: %w", nonce, common.ErrConflict)
	}

	result, err := s.applyVote(ctx, commentID, userID, value)
	if err != nil {
		_ = s.nonces.Delete(ctx, key)
		return nil, err
	}
	if err := s.nonces.Set(ctx, key, voteReplay{Result: result}, cache.TTLIdempotency); err != nil {
		pkglogger.GetLogger().Warn().Err(err).Str("key", key).Msg("failed to store vote result")
	}
	return result, nil
}

// applyVote is a read-modify-write guarded by the comment's version column
func (s *commentService) applyVote(ctx context.Context, commentID uint, userID string, value int) (*domain.VoteResult, error) {
	for attempt := 0; attempt < maxVoteAttempts; attempt++ {
		comment, err := s.repo.FindByID(ctx, commentID)
		if err != nil {
			return nil, err
		}

		votes := domain.ApplyVote(comment.Votes, userID, value)
		won, err := s.repo.UpdateVotes(ctx, commentID, comment.Version, votes)
		if err != nil {
			return nil, err
		}
		if !won {
			continue
		}

		comment.Votes = votes
		comment.NetVotes = domain.SumVotes(votes)
		comment.Version++
		s.publisher.BroadcastAll(domain.EventCommentUpdated, comment)

		return &domain.VoteResult{NetVotes: comment.NetVotes, Votes: votes}, nil
	}
	return nil, fmt.Errorf("vote on comment %d: %w", commentID, common.ErrConflict)
}

// findParent loads a reply target, which must live on the same file
func (s *commentService) findParent(ctx context.Context, parentID uint, fileID string) (*domain.Comment, error) {
	parent, err := s.repo.FindByID(ctx, parentID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NewValidationError("parent comment does not exist", "parentId")
	}
	if err != nil {
		return nil, err
	}
	if parent.FileID != fileID {
		return nil, common.NewValidationError("parent comment belongs to another file", "parentId")
	}
	return parent, nil
}

// rejectCycle walks parent's ancestors and fails if id is one of them
func (s *commentService) rejectCycle(ctx context.Context, id uint, parent *domain.Comment) error {
	seen := map[uint]struct{}{parent.ID: {}}
	for cur := parent; cur.ParentID != nil; {
		next := *cur.ParentID
		if next == id {
			return common.NewValidationError("a comment cannot reply to one of its own replies", "parentId")
		}
		if _, ok := seen[next]; ok {
			return nil
		}
		seen[next] = struct{}{}

		ancestor, err := s.repo.FindByID(ctx, next)
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		cur = ancestor
	}
	return nil
}

// snapshotName is the author name stored on a comment when the client sent none
func snapshotName(u *domain.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.Name
}

// missingFields takes name/value pairs and returns the names whose value is empty
func missingFields(pairs ...string) []string {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			missing = append(missing, pairs[i])
		}
	}
	return missing
}
