package service

import (
	"context"

	"github.com/studyshare/studyshare-backend/internal/common"
	"github.com/studyshare/studyshare-backend/internal/repository"
)

// ReadLedgerService tracks which group chats a user has seen
type ReadLedgerService interface {
	MarkChatRead(ctx context.Context, userID string, groupChatID uint) error
	UnreadChatIDs(ctx context.Context, userID string) ([]uint, error)
	UnreadChatCount(ctx context.Context, userID string) (int64, error)
}

type readLedgerService struct {
	ledger repository.ReadLedgerRepository
	chats  repository.GroupChatRepository
}

func NewReadLedgerService(ledger repository.ReadLedgerRepository, chats repository.GroupChatRepository) ReadLedgerService {
	return &readLedgerService{ledger: ledger, chats: chats}
}

// MarkChatRead records the chat's committed lastUpdated as the reader's
// position. A message still being written carries a later timestamp and stays
// unread until the reader marks the chat again.
func (s *readLedgerService) MarkChatRead(ctx context.Context, userID string, groupChatID uint) error {
	chat, err := s.chats.FindByID(ctx, groupChatID)
	if err != nil {
		return err
	}
	member, err := s.chats.IsMember(ctx, groupChatID, userID)
	if err != nil {
		return err
	}
	if !member {
		return common.ErrForbidden
	}
	return s.ledger.Upsert(ctx, userID, groupChatID, chat.LastUpdated)
}

func (s *readLedgerService) UnreadChatIDs(ctx context.Context, userID string) ([]uint, error) {
	return s.ledger.UnreadChatIDs(ctx, userID)
}

func (s *readLedgerService) UnreadChatCount(ctx context.Context, userID string) (int64, error) {
	return s.ledger.CountUnreadChats(ctx, userID)
}
