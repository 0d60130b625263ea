package service

import (
	"context"
	"time"

	"github.com/studyshare/studyshare-backend/internal/common"
	"github.com/studyshare/studyshare-backend/internal/domain"
	"github.com/studyshare/studyshare-backend/internal/repository"
	pkglogger "github.com/studyshare/studyshare-backend/pkg/logger"
)

// NotificationService handles notification business logic
type NotificationService interface {
	// NotifyReply tells the parent's author about reply
	NotifyReply(ctx context.Context, parent, reply *domain.Comment) (*domain.Notification, error)
	CreateInsight(ctx context.Context, req *domain.CreateInsightRequest) (*domain.Notification, error)
	CreateFriendRequest(ctx context.Context, req *domain.CreateFriendRequestRequest) (*domain.Notification, error)

	// MarkRead marks one notification of actorID as read
	MarkRead(ctx context.Context, actorID string, id uint) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, recipient string) (int64, error)

	ListUnread(ctx context.Context, recipient string) ([]*domain.Notification, error)
	CountUnread(ctx context.Context, recipient string) (int64, error)
	ListInsights(ctx context.Context, recipient string) ([]*domain.Notification, error)
}

type notificationService struct {
	repo      repository.NotificationRepository
	publisher Publisher
	now       func() time.Time
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(repo repository.NotificationRepository, publisher Publisher) NotificationService {
	return &notificationService{
		repo:      repo,
		publisher: publisherOrNop(publisher),
		now:       utcNow,
	}
}

func (s *notificationService) NotifyReply(ctx context.Context, parent, reply *domain.Comment) (*domain.Notification, error) {
	commentID := reply.ID
	n := &domain.Notification{
		Recipient:        parent.UserID,
		Sender:           reply.UserID,
		FileID:           reply.FileID,
		CommentReference: &commentID,
		MessageBy:        reply.Username + " replied to your comment",
		Preview:          reply.Content,
	}
	return n, s.deliver(ctx, n)
}

func (s *notificationService) CreateInsight(ctx context.Context, req *domain.CreateInsightRequest) (*domain.Notification, error) {
	if err := validateStruct(req, "recipient and messageBy are required"); err != nil {
		return nil, err
	}
	n := &domain.Notification{
		Recipient: req.Recipient,
		FileID:    req.FileID,
		MessageBy: req.MessageBy,
		Preview:   req.Preview,
		IsInsight: true,
	}
	return n, s.deliver(ctx, n)
}

func (s *notificationService) CreateFriendRequest(ctx context.Context, req *domain.CreateFriendRequestRequest) (*domain.Notification, error) {
	if err := validateStruct(req, "recipient, sender and messageBy are required"); err != nil {
		return nil, err
	}
	if req.Recipient == req.Sender {
		return nil, common.NewValidationError("cannot send a friend request to yourself", "sender")
	}
	n := &domain.Notification{
		Recipient:       req.Recipient,
		Sender:          req.Sender,
		MessageBy:       req.MessageBy,
		IsFriendRequest: true,
	}
	return n, s.deliver(ctx, n)
}

// deliver persists n and then pushes it to the recipient if connected
func (s *notificationService) deliver(ctx context.Context, n *domain.Notification) error {
	if n.Recipient == "" {
		return common.NewValidationError("recipient is required", "recipient")
	}
	if n.IsInsight && n.IsFriendRequest {
		return common.NewValidationError("a notification cannot be both an insight and a friend request")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}

	delivered := s.publisher.PushToUser(n.Recipient, domain.EventNotification, n)
	pkglogger.GetLogger().Debug().
		Uint("notification_id", n.ID).
		Str("recipient", n.Recipient).
		Str("kind", n.Kind()).
		Bool("pushed", delivered).
		Msg("notification created")
	return nil
}

func (s *notificationService) MarkRead(ctx context.Context, actorID string, id uint) (*domain.Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Recipient != actorID {
		return nil, common.ErrForbidden
	}
	if n.IsRead {
		return n, nil
	}
	if err := s.repo.MarkAsRead(ctx, id); err != nil {
		return nil, err
	}
	n.IsRead = true
	return n, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	return s.repo.MarkAllAsRead(ctx, recipient)
}

func (s *notificationService) ListUnread(ctx context.Context, recipient string) ([]*domain.Notification, error) {
	return s.repo.ListUnread(ctx, recipient)
}

func (s *notificationService) CountUnread(ctx context.Context, recipient string) (int64, error) {
	return s.repo.CountUnread(ctx, recipient)
}

func (s *notificationService) ListInsights(ctx context.Context, recipient string) ([]*domain.Notification, error) {
	return s.repo.ListInsights(ctx, recipient)
}
