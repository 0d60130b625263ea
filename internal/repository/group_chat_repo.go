package repository

import (
	"context"
	"errors"
	"time"

	"github.com/studyshare/studyshare-backend/internal/common"
	"github.com/studyshare/studyshare-backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GroupChatRepository persists chats, their member sets and messages
type GroupChatRepository interface {
	// Create inserts the chat with its initial members and marks it read for
	// the creator
	Create(ctx context.Context, chat *domain.GroupChat) error
	FindByID(ctx context.Context, id uint) (*domain.GroupChat, error)
	ListForUser(ctx context.Context, userID string) ([]*domain.GroupChat, error)
	IsMember(ctx context.Context, chatID uint, userID string) (bool, error)
	ListMemberIDs(ctx context.Context, chatID uint) ([]string, error)

	// AddMembers adds the ids that are not members yet and stores announce(id)
	// for each of them. Returns the ids actually added.
	AddMembers(ctx context.Context, chatID uint, userIDs []string, at time.Time, announce func(userID string) *domain.Message) ([]string, error)

	// RemoveMember reports false when userID was not a member
	RemoveMember(ctx context.Context, chatID uint, userID string, notice *domain.Message) (bool, error)

	// AppendMessage stores msg, moves the chat's lastUpdated to msg.CreatedAt and
	// marks the chat read for the sender, all in one transaction
	AppendMessage(ctx context.Context, msg *domain.Message) error

	ListMessages(ctx context.Context, chatID uint) ([]*domain.Message, error)

	// LastMessage returns nil, nil for an empty chat
	LastMessage(ctx context.Context, chatID uint) (*domain.Message, error)
}

type groupChatRepository struct {
	db *gorm.DB
}

func NewGroupChatRepository(db *gorm.DB) GroupChatRepository {
	return &groupChatRepository{db: db}
}

func orderedMembers(db *gorm.DB) *gorm.DB {
	return db.Order("joined_at ASC, user_id ASC")
}

func (r *groupChatRepository) Create(ctx context.Context, chat *domain.GroupChat) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(chat).Error; err != nil {
			return err
		}
		if chat.CreatedBy == "" {
			return nil
		}
		return upsertLedger(tx, chat.CreatedBy, chat.ID, chat.LastUpdated)
	})
}

func (r *groupChatRepository) FindByID(ctx context.Context, id uint) (*domain.GroupChat, error) {
	var chat domain.GroupChat
	err := r.db.WithContext(ctx).
		Preload("Members", orderedMembers).
		First(&chat, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrGroupChatNotFound
		}
		return nil, err
	}
	return &chat, nil
}

func (r *groupChatRepository) ListForUser(ctx context.Context, userID string) ([]*domain.GroupChat, error) {
	chats := make([]*domain.GroupChat, 0)
	err := r.db.WithContext(ctx).
		Preload("Members", orderedMembers).
		Joins("JOIN group_chat_members AS m ON m.group_chat_id = group_chats.id AND m.user_id = ?", userID).
		Order("group_chats.last_updated DESC, group_chats.id DESC").
		Find(&chats).Error
	return chats, err
}

func (r *groupChatRepository) IsMember(ctx context.Context, chatID uint, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.GroupChatMember{}).
		Where("group_chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *groupChatRepository) ListMemberIDs(ctx context.Context, chatID uint) ([]string, error) {
	ids := make([]string, 0)
	err := r.db.WithContext(ctx).
		Model(&domain.GroupChatMember{}).
		Where("group_chat_id = ?", chatID).
		Order("joined_at ASC, user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *groupChatRepository) AddMembers(ctx context.Context, chatID uint, userIDs []string, at time.Time, announce func(userID string) *domain.Message) ([]string, error) {
	added := make([]string, 0, len(userIDs))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, userID := range userIDs {
			member := domain.GroupChatMember{GroupChatID: chatID, UserID: userID, JoinedAt: at}
			result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				continue
			}
			added = append(added, userID)

			if announce == nil {
				continue
			}
			if msg := announce(userID); msg != nil {
				if err := tx.Create(msg).Error; err != nil {
					return err
				}
			}
		}
		if len(added) == 0 {
			return nil
		}
		return touchLastUpdated(tx, chatID, at)
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

func (r *groupChatRepository) RemoveMember(ctx context.Context, chatID uint, userID string, notice *domain.Message) (bool, error) {
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("group_chat_id = ? AND user_id = ?", chatID, userID).
			Delete(&domain.GroupChatMember{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		removed = true

		if err := tx.Where("group_chat_id = ? AND user_id = ?", chatID, userID).
			Delete(&domain.ReadLedgerEntry{}).Error; err != nil {
			return err
		}
		if notice == nil {
			return nil
		}
		if err := tx.Create(notice).Error; err != nil {
			return err
		}
		return touchLastUpdated(tx, chatID, notice.CreatedAt)
	})
	return removed, err
}

func (r *groupChatRepository) AppendMessage(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		if err := touchLastUpdated(tx, msg.GroupID, msg.CreatedAt); err != nil {
			return err
		}
		if msg.SenderID == "" || msg.Type == domain.MessageTypeSystem {
			return nil
		}

		// read back the stored value so the ledger matches it exactly even
		// when the column is stored with reduced precision
		var chat domain.GroupChat
		if err := tx.Select("id", "last_updated").First(&chat, msg.GroupID).Error; err != nil {
			return err
		}
		return upsertLedger(tx, msg.SenderID, msg.GroupID, chat.LastUpdated)
	})
}

func (r *groupChatRepository) ListMessages(ctx context.Context, chatID uint) ([]*domain.Message, error) {
	messages := make([]*domain.Message, 0)
	err := r.db.WithContext(ctx).
		Where("group_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

func (r *groupChatRepository) LastMessage(ctx context.Context, chatID uint) (*domain.Message, error) {
	var messages []*domain.Message
	err := r.db.WithContext(ctx).
		Where("group_id = ?", chatID).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&messages).Error
	if err != nil || len(messages) == 0 {
		return nil, err
	}
	return messages[0], nil
}

// touchLastUpdated only ever moves lastUpdated forward
func touchLastUpdated(tx *gorm.DB, chatID uint, at time.Time) error {
	return tx.Model(&domain.GroupChat{}).
		Where("id = ? AND last_updated < ?", chatID, at).
		Update("last_updated", at).Error
}
