package domain

import (
	"io"
	"time"

	"gorm.io/datatypes"
)

// MessageType discriminates chat messages
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeSystem MessageType = "system"
	MessageTypeFile   MessageType = "file"
)

// GroupChat is a named conversation. LastUpdated only moves forward and is
// compared against each member's ReadLedgerEntry to derive unread state.
type GroupChat struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	Name            string            `gorm:"size:100;not null" json:"name"`
	GroupPictureURL string            `gorm:"size:500" json:"groupPictureUrl"`
	CreatedBy       string            `gorm:"size:64" json:"createdBy"`
	LastUpdated     time.Time         `gorm:"not null;index" json:"lastUpdated"`
	CreatedAt       time.Time         `json:"createdAt"`
	Members         []GroupChatMember `gorm:"foreignKey:GroupChatID" json:"-"`
}

func (GroupChat) TableName() string {
	return "group_chats"
}

// MemberIDs lists the loaded members
func (g *GroupChat) MemberIDs() []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.UserID
	}
	return ids
}

// GroupChatMember is one row of the member set; the composite key makes
// membership a set.
type GroupChatMember struct {
	GroupChatID uint      `gorm:"primaryKey;autoIncrement:false" json:"groupChatId"`
	UserID      string    `gorm:"primaryKey;size:64;index" json:"userId"`
	JoinedAt    time.Time `json:"joinedAt"`
}

func (GroupChatMember) TableName() string {
	return "group_chat_members"
}

// StoredFile references an uploaded object in the file store
type StoredFile struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Message is an immutable chat entry. ProfilePictureURL is the sender's
// avatar at send time.
type Message struct {
	ID                uint                            `gorm:"primaryKey" json:"id"`
	GroupID           uint                            `gorm:"not null;index:idx_messages_group_created,priority:1" json:"groupId"`
	SenderID          string                          `gorm:"size:64" json:"senderId,omitempty"`
	Content           string                          `gorm:"type:text" json:"content"`
	ProfilePictureURL string                          `gorm:"size:500" json:"profilePictureUrl,omitempty"`
	Type              MessageType                     `gorm:"size:16;not null" json:"type"`
	Files             datatypes.JSONSlice[StoredFile] `json:"files"`
	CreatedAt         time.Time                       `gorm:"index:idx_messages_group_created,priority:2" json:"createdAt"`
	Sender            *UserSummary                    `gorm:"-" json:"sender,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}

// Upload is a file received from a client, before it is stored
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// GroupChatResponse is a chat as returned to clients
type GroupChatResponse struct {
	ID              uint      `json:"id"`
	Name            string    `json:"name"`
	Members         []string  `json:"members"`
	GroupPictureURL string    `json:"groupPictureUrl"`
	LastUpdated     time.Time `json:"lastUpdated"`
	CreatedAt       time.Time `json:"createdAt"`
	Unread          bool      `json:"unread"`
}

// ToResponse converts GroupChat to GroupChatResponse
func (g *GroupChat) ToResponse(unread bool) *GroupChatResponse {
	return &GroupChatResponse{
		ID:              g.ID,
		Name:            g.Name,
		Members:         g.MemberIDs(),
		GroupPictureURL: g.GroupPictureURL,
		LastUpdated:     g.LastUpdated,
		CreatedAt:       g.CreatedAt,
		Unread:          unread,
	}
}

// AddMembersRequest is the body of POST /group-chats/:groupId/add-members
type AddMembersRequest struct {
	UserIDs []string `json:"userIds" binding:"required,min=1,dive,required"`
}

// RemoveMemberRequest is the body of POST /group-chats/:groupId/remove-member
type RemoveMemberRequest struct {
	UserIDToRemove string `json:"userIdToRemove" binding:"required"`
}

// LastMessageResponse is the body of GET /group-chats/:groupId/last-message
type LastMessageResponse struct {
	LastMessage *Message `json:"lastMessage"`
}

// GroupChatActivity is pushed to every member when a chat changes so chat lists
// can refresh unread badges.
type GroupChatActivity struct {
	GroupID     uint      `json:"groupId"`
	LastUpdated time.Time `json:"lastUpdated"`
	LastMessage *Message  `json:"lastMessage,omitempty"`
}
