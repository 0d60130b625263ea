package migration

import (
	"github.com/studyshare/studyshare-backend/internal/domain"
	"gorm.io/gorm"
)

// Models owned by this service, in dependency order
func Models() []interface{} {
	return []interface{}{
		&domain.Comment{},
		&domain.Notification{},
		&domain.GroupChat{},
		&domain.GroupChatMember{},
		&domain.Message{},
		&domain.ReadLedgerEntry{},
	}
}

// Run executes AutoMigrate for every table this service owns.
func Run(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// RunUsers creates the users table. In production the table belongs to the auth
// service; this exists for local sqlite setups and tests.
func RunUsers(db *gorm.DB) error {
	return db.AutoMigrate(&domain.User{})
}
