package domain

import "time"

// Notification is a one-shot message to a recipient. IsInsight and
// IsFriendRequest discriminate the kind; a plain notification has neither set.
type Notification struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Recipient        string    `gorm:"size:64;not null;index:idx_notifications_recipient_read,priority:1" json:"recipient"`
	Sender           string    `gorm:"size:64" json:"sender,omitempty"`
	FileID           string    `gorm:"size:64" json:"file,omitempty"`
	CommentReference *uint     `json:"commentReference,omitempty"`
	MessageBy        string    `gorm:"size:255" json:"messageBy"`
	Preview          string    `gorm:"type:text" json:"preview"`
	IsRead           bool      `gorm:"not null;default:false;index:idx_notifications_recipient_read,priority:2" json:"isRead"`
	IsInsight        bool      `gorm:"not null;default:false" json:"isInsight"`
	IsFriendRequest  bool      `gorm:"not null;default:false" json:"isFriendRequest"`
	CreatedAt        time.Time `gorm:"index" json:"createdAt"`
}

func (Notification) TableName() string {
	return "notifications"
}

// Kind names the notification's discriminator
func (n *Notification) Kind() string {
	switch {
	case n.IsInsight:
		return "insight"
	case n.IsFriendRequest:
		return "friend_request"
	default:
		return "reply"
	}
}

// CreateInsightRequest is posted by the external insight producer
type CreateInsightRequest struct {
	Recipient string `json:"recipient" binding:"required"`
	MessageBy string `json:"messageBy" binding:"required"`
	Preview   string `json:"preview"`
	FileID    string `json:"file"`
}

// CreateFriendRequestRequest is posted by the external friend-request producer
type CreateFriendRequestRequest struct {
	Recipient string `json:"recipient" binding:"required"`
	Sender    string `json:"sender" binding:"required"`
	MessageBy string `json:"messageBy" binding:"required"`
}

// NotificationCount is the body of GET /notifications/count
type NotificationCount struct {
	Count int64 `json:"count"`
}
