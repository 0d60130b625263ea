package domain

import "time"

// ReadLedgerEntry records when a user last viewed a group chat. A missing
// entry means the chat was never read.
type ReadLedgerEntry struct {
	UserID      string    `gorm:"primaryKey;size:64" json:"userId"`
	GroupChatID uint      `gorm:"primaryKey;autoIncrement:false" json:"groupChatId"`
	LastReadAt  time.Time `gorm:"not null" json:"lastReadAt"`
}

func (ReadLedgerEntry) TableName() string {
	return "read_ledger_entries"
}

// UnreadChats is the body of GET /group-chats/unread
type UnreadChats struct {
	UnreadGroupChatIDs []uint `json:"unreadGroupChatIds"`
}

// UnreadChatCount is the body of GET /group-chats/unread-count
type UnreadChatCount struct {
	Count int64 `json:"count"`
}
