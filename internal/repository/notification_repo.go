package repository

import (
	"context"
	"errors"

	"github.com/studyshare/studyshare-backend/internal/common"
	"github.com/studyshare/studyshare-backend/internal/domain"
	"gorm.io/gorm"
)

// NotificationRepository handles notification data operations
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	FindByID(ctx context.Context, id uint) (*domain.Notification, error)
	MarkAsRead(ctx context.Context, id uint) error
	MarkAllAsRead(ctx context.Context, recipient string) (int64, error)
	ListUnread(ctx context.Context, recipient string) ([]*domain.Notification, error)
	CountUnread(ctx context.Context, recipient string) (int64, error)
	ListInsights(ctx context.Context, recipient string) ([]*domain.Notification, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create inserts a new notification
func (r *notificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// FindByID returns a notification by ID
func (r *notificationRepository) FindByID(ctx context.Context, id uint) (*domain.Notification, error) {
	var notification domain.Notification
	if err := r.db.WithContext(ctx).First(&notification, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotificationNotFound
		}
		return nil, err
	}
	return &notification, nil
}

// MarkAsRead marks a notification as read
func (r *notificationRepository) MarkAsRead(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ?", id).
		Update("is_read", true).Error
}

// MarkAllAsRead marks all unread notifications of a recipient as read
func (r *notificationRepository) MarkAllAsRead(ctx context.Context, recipient string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("recipient = ? AND is_read = ?", recipient, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

// ListUnread returns unread notifications, newest first
func (r *notificationRepository) ListUnread(ctx context.Context, recipient string) ([]*domain.Notification, error) {
	notifications := make([]*domain.Notification, 0)
	err := r.db.WithContext(ctx).
		Where("recipient = ? AND is_read = ?", recipient, false).
		Order("created_at DESC, id DESC").
		Find(&notifications).Error
	return notifications, err
}

// CountUnread returns the number of unread notifications
func (r *notificationRepository) CountUnread(ctx context.Context, recipient string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("recipient = ? AND is_read = ?", recipient, false).
		Count(&count).Error
	return count, err
}

// ListInsights returns insight notifications regardless of read state, newest first
func (r *notificationRepository) ListInsights(ctx context.Context, recipient string) ([]*domain.Notification, error) {
	notifications := make([]*domain.Notification, 0)
	err := r.db.WithContext(ctx).
		Where("recipient = ? AND is_insight = ?", recipient, true).
		Order("created_at DESC, id DESC").
		Find(&notifications).Error
	return notifications, err
}
