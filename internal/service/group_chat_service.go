package service

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/studyshare/studyshare-backend/internal/common"
	"github.com/studyshare/studyshare-backend/internal/domain"
	"github.com/studyshare/studyshare-backend/internal/repository"
	pkglogger "github.com/studyshare/studyshare-backend/pkg/logger"
	"github.com/studyshare/studyshare-backend/pkg/storage"
	"gorm.io/datatypes"
)

// FileStore persists uploaded files
type FileStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string, size int64) (*storage.UploadResult, error)
	Delete(ctx context.Context, key string) error
}

// CreateGroupChatInput is validated with the binding rules shared with gin
type CreateGroupChatInput struct {
	Name string `json:"name" binding:"required,max=100"`
}

// GroupChatService runs the group chat message pipeline
type GroupChatService interface {
	CreateGroupChat(ctx context.Context, creatorID, name string, picture *domain.Upload) (*domain.GroupChatResponse, error)
	ListForUser(ctx context.Context, userID string) ([]*domain.GroupChatResponse, error)
	SendMessage(ctx context.Context, groupID uint, senderID, content string, uploads []*domain.Upload) (*domain.Message, error)
	AddMembers(ctx context.Context, actorID string, groupID uint, userIDs []string) (*domain.GroupChatResponse, error)
	RemoveMember(ctx context.Context, actorID string, groupID uint, userID string) (*domain.GroupChatResponse, error)
	ListMembers(ctx context.Context, actorID string, groupID uint) ([]*domain.UserSummary, error)
	ListMessages(ctx context.Context, actorID string, groupID uint) ([]*domain.Message, error)

	// LastMessage returns nil, nil when the chat has no messages
	LastMessage(ctx context.Context, actorID string, groupID uint) (*domain.Message, error)
	IsMember(ctx context.Context, groupID uint, userID string) (bool, error)
}

type groupChatService struct {
	chats     repository.GroupChatRepository
	ledger    repository.ReadLedgerRepository
	users     UserDirectory
	files     FileStore
	publisher Publisher
	now       func() time.Time
}

func NewGroupChatService(
	chats repository.GroupChatRepository,
	ledger repository.ReadLedgerRepository,
	users UserDirectory,
	files FileStore,
	publisher Publisher,
) GroupChatService {
	return &groupChatService{
		chats:     chats,
		ledger:    ledger,
		users:     users,
		files:     files,
		publisher: publisherOrNop(publisher),
		now:       utcNow,
	}
}

func (s *groupChatService) CreateGroupChat(ctx context.Context, creatorID, name string, picture *domain.Upload) (*domain.GroupChatResponse, error) {
	input := CreateGroupChatInput{Name: strings.TrimSpace(name)}
	if err := validateStruct(&input, "name is required (max 100 characters)"); err != nil {
		return nil, err
	}
	if _, err := s.users.Get(ctx, creatorID); err != nil {
		return nil, err
	}

	chat := &domain.GroupChat{
		Name:        input.Name,
		CreatedBy:   creatorID,
		LastUpdated: s.now(),
	}
	chat.Members = []domain.GroupChatMember{{UserID: creatorID, JoinedAt: chat.LastUpdated}}

	if picture != nil {
		if !strings.HasPrefix(picture.ContentType, "image/") {
			return nil, common.NewValidationError("picture must be an image", "picture")
		}
		stored, err := s.store(ctx, "group-pictures", picture)
		if err != nil {
			return nil, err
		}
		chat.GroupPictureURL = stored.URL

		if err := s.chats.Create(ctx, chat); err != nil {
			s.discard(ctx, stored.Key)
			return nil, err
		}
		return chat.ToResponse(false), nil
	}

	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, err
	}
	return chat.ToResponse(false), nil
}

func (s *groupChatService) ListForUser(ctx context.Context, userID string) ([]*domain.GroupChatResponse, error) {
	chats, err := s.chats.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	unreadIDs, err := s.ledger.UnreadChatIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread := make(map[uint]bool, len(unreadIDs))
	for _, id := range unreadIDs {
		unread[id] = true
	}

	out := make([]*domain.GroupChatResponse, len(chats))
	for i, chat := range chats {
		out[i] = chat.ToResponse(unread[chat.ID])
	}
	return out, nil
}

func (s *groupChatService) SendMessage(ctx context.Context, groupID uint, senderID, content string, uploads []*domain.Upload) (*domain.Message, error) {
	content = common.SanitizeText(content)
	if content == "" && len(uploads) == 0 {
		return nil, common.NewValidationError("content or files are required", "content", "files")
	}

	if _, err := s.requireMember(ctx, groupID, senderID); err != nil {
		return nil, err
	}
	sender, err := s.users.Get(ctx, senderID)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		GroupID:           groupID,
		SenderID:          senderID,
		Content:           content,
		ProfilePictureURL: sender.ProfilePictureURL,
		Type:              domain.MessageTypeText,
		Files:             datatypes.JSONSlice[domain.StoredFile]{},
	}
	var keys []string
	for _, upload := range uploads {
		stored, err := s.store(ctx, fmt.Sprintf("chat/%d", groupID), upload)
		if err != nil {
			s.discard(ctx, keys...)
			return nil, err
		}
		keys = append(keys, stored.Key)
		msg.Files = append(msg.Files, domain.StoredFile{
			Key:         stored.Key,
			URL:         stored.URL,
			Filename:    upload.Filename,
			ContentType: stored.ContentType,
			Size:        stored.Size,
		})
	}
	if len(msg.Files) > 0 {
		msg.Type = domain.MessageTypeFile
	}
	msg.CreatedAt = s.now()

	if err := s.chats.AppendMessage(ctx, msg); err != nil {
		s.discard(ctx, keys...)
		return nil, err
	}
	msg.Sender = sender.Summary()

	s.fanOut(ctx, groupID, msg.CreatedAt, msg)
	return msg, nil
}

func (s *groupChatService) AddMembers(ctx context.Context, actorID string, groupID uint, userIDs []string) (*domain.GroupChatResponse, error) {
	ids := dedupe(userIDs)
	if len(ids) == 0 {
		return nil, common.NewValidationError("userIds is required", "userIds")
	}
	if _, err := s.requireMember(ctx, groupID, actorID); err != nil {
		return nil, err
	}

	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	var invalid []string
	for _, id := range ids {
		if _, ok := users[id]; !ok {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return nil, common.NewValidationError("some userIds do not exist", invalid...)
	}

	at := s.now()
	var announced []*domain.Message
	added, err := s.chats.AddMembers(ctx, groupID, ids, at, func(userID string) *domain.Message {
		msg := systemMessage(groupID, users[userID].DisplayName()+" was added to the group.", at)
		announced = append(announced, msg)
		return msg
	})
	if err != nil {
		return nil, err
	}
	if len(added) > 0 {
		s.fanOut(ctx, groupID, at, announced...)
	}

	return s.response(ctx, groupID, actorID)
}

func (s *groupChatService) RemoveMember(ctx context.Context, actorID string, groupID uint, userID string) (*domain.GroupChatResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, common.NewValidationError("userIdToRemove is required", "userIdToRemove")
	}
	chat, err := s.requireMember(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(chat.MemberIDs(), userID) {
		return nil, common.NewValidationError("user is not a member of this group", userID)
	}

	name := userID
	if u, err := s.users.Get(ctx, userID); err == nil {
		name = u.DisplayName()
	}
	at := s.now()
	notice := systemMessage(groupID, name+" was removed from the group.", at)

	removed, err := s.chats.RemoveMember(ctx, groupID, userID, notice)
	if err != nil {
		return nil, err
	}
	if !removed {
		// lost a race with another removal
		return nil, common.NewValidationError("user is not a member of this group", userID)
	}

	s.publisher.EvictFromRoom(userID, GroupRoom(groupID))
	s.publisher.PushToUser(userID, domain.EventGroupChatUpdated, &domain.GroupChatActivity{GroupID: groupID, LastUpdated: at})
	s.fanOut(ctx, groupID, at, notice)

	if userID == actorID {
		resp := chat.ToResponse(false)
		resp.Members = slices.DeleteFunc(resp.Members, func(id string) bool { return id == userID })
		return resp, nil
	}
	return s.response(ctx, groupID, actorID)
}

func (s *groupChatService) ListMembers(ctx context.Context, actorID string, groupID uint) ([]*domain.UserSummary, error) {
	chat, err := s.requireMember(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	return summaries(ctx, s.users, chat.MemberIDs())
}

func (s *groupChatService) ListMessages(ctx context.Context, actorID string, groupID uint) ([]*domain.Message, error) {
	if _, err := s.requireMember(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	messages, err := s.chats.ListMessages(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.populateSenders(ctx, messages...); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *groupChatService) LastMessage(ctx context.Context, actorID string, groupID uint) (*domain.Message, error) {
	if _, err := s.requireMember(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	msg, err := s.chats.LastMessage(ctx, groupID)
	if err != nil || msg == nil {
		return nil, err
	}
	if err := s.populateSenders(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *groupChatService) IsMember(ctx context.Context, groupID uint, userID string) (bool, error) {
	return s.chats.IsMember(ctx, groupID, userID)
}

// requireMember loads the chat and checks that userID belongs to it
func (s *groupChatService) requireMember(ctx context.Context, groupID uint, userID string) (*domain.GroupChat, error) {
	chat, err := s.chats.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if userID == "" || !slices.Contains(chat.MemberIDs(), userID) {
		return nil, common.ErrForbidden
	}
	return chat, nil
}

func (s *groupChatService) response(ctx context.Context, groupID uint, viewerID string) (*domain.GroupChatResponse, error) {
	chat, err := s.chats.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	entry, err := s.ledger.Find(ctx, viewerID, groupID)
	if err != nil {
		return nil, err
	}
	unread := entry == nil || entry.LastReadAt.Before(chat.LastUpdated)
	return chat.ToResponse(unread), nil
}

func (s *groupChatService) populateSenders(ctx context.Context, messages ...*domain.Message) error {
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Files == nil {
			m.Files = datatypes.JSONSlice[domain.StoredFile]{}
		}
		if m.SenderID != "" {
			ids = append(ids, m.SenderID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return err
	}
	for _, m := range messages {
		if m.SenderID == "" {
			continue
		}
		if u, ok := users[m.SenderID]; ok {
			m.Sender = u.Summary()
		} else {
			m.Sender = &domain.UserSummary{ID: m.SenderID, ProfilePictureURL: m.ProfilePictureURL}
		}
	}
	return nil
}

// fanOut delivers new messages to the chat room and a list refresh to every member
func (s *groupChatService) fanOut(ctx context.Context, groupID uint, at time.Time, messages ...*domain.Message) {
	room := GroupRoom(groupID)
	for _, m := range messages {
		s.publisher.PushToRoom(room, domain.EventReceiveGroupMessage, m)
	}

	members, err := s.chats.ListMemberIDs(ctx, groupID)
	if err != nil {
		pkglogger.GetLogger().Warn().Err(err).Uint("group_id", groupID).Msg("failed to load members for fan-out")
		return
	}
	activity := &domain.GroupChatActivity{GroupID: groupID, LastUpdated: at}
	if len(messages) > 0 {
		activity.LastMessage = messages[len(messages)-1]
	}
	s.publisher.PushToMembers(members, domain.EventGroupChatUpdated, activity)
}

func (s *groupChatService) store(ctx context.Context, prefix string, upload *domain.Upload) (*storage.UploadResult, error) {
	if s.files == nil {
		return nil, fmt.Errorf("file storage is not configured")
	}
	if upload == nil || upload.Body == nil {
		return nil, common.NewValidationError("empty upload", "files")
	}
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return s.files.Upload(ctx, storage.GenerateKey(prefix, upload.Filename), upload.Body, contentType, upload.Size)
}

// discard removes files stored for a write that did not commit
func (s *groupChatService) discard(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := s.files.Delete(context.WithoutCancel(ctx), key); err != nil {
			pkglogger.GetLogger().Warn().Err(err).Str("key", key).Msg("failed to remove orphaned upload")
		}
	}
}

func systemMessage(groupID uint, content string, at time.Time) *domain.Message {
	return &domain.Message{
		GroupID:   groupID,
		Content:   content,
		Type:      domain.MessageTypeSystem,
		Files:     datatypes.JSONSlice[domain.StoredFile]{},
		CreatedAt: at,
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
