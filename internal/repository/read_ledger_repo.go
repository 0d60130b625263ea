package repository

import (
	"context"
	"time"

	"github.com/studyshare/studyshare-backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReadLedgerRepository stores per-user, per-chat read positions
type ReadLedgerRepository interface {
	// Upsert sets lastReadAt for (userID, groupChatID), creating the entry if needed
	Upsert(ctx context.Context, userID string, groupChatID uint, at time.Time) error

	// Find returns nil, nil when the user never read the chat
	Find(ctx context.Context, userID string, groupChatID uint) (*domain.ReadLedgerEntry, error)

	UnreadChatIDs(ctx context.Context, userID string) ([]uint, error)
	CountUnreadChats(ctx context.Context, userID string) (int64, error)
}

type readLedgerRepository struct {
	db *gorm.DB
}

func NewReadLedgerRepository(db *gorm.DB) ReadLedgerRepository {
	return &readLedgerRepository{db: db}
}

func (r *readLedgerRepository) Upsert(ctx context.Context, userID string, groupChatID uint, at time.Time) error {
	return upsertLedger(r.db.WithContext(ctx), userID, groupChatID, at)
}

func (r *readLedgerRepository) Find(ctx context.Context, userID string, groupChatID uint) (*domain.ReadLedgerEntry, error) {
	var entries []domain.ReadLedgerEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND group_chat_id = ?", userID, groupChatID).
		Limit(1).
		Find(&entries).Error
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

func (r *readLedgerRepository) UnreadChatIDs(ctx context.Context, userID string) ([]uint, error) {
	ids := make([]uint, 0)
	err := r.db.WithContext(ctx).
		Scopes(unreadChats(userID)).
		Order("gc.id ASC").
		Pluck("gc.id", &ids).Error
	return ids, err
}

func (r *readLedgerRepository) CountUnreadChats(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Scopes(unreadChats(userID)).
		Count(&count).Error
	return count, err
}

// unreadChats selects the chats userID belongs to whose lastUpdated is after the
// user's lastReadAt. A missing ledger entry counts as never read.
func unreadChats(userID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Table("group_chats AS gc").
			Joins("JOIN group_chat_members AS m ON m.group_chat_id = gc.id AND m.user_id = ?", userID).
			Joins("LEFT JOIN read_ledger_entries AS r ON r.group_chat_id = gc.id AND r.user_id = ?", userID).
			Where("(r.last_read_at IS NULL OR r.last_read_at < gc.last_updated)")
	}
}

func upsertLedger(tx *gorm.DB, userID string, groupChatID uint, at time.Time) error {
	entry := domain.ReadLedgerEntry{UserID: userID, GroupChatID: groupChatID, LastReadAt: at}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "group_chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_read_at"}),
	}).Create(&entry).Error
}
