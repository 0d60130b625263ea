package service

import (
	"context"
	"testing"

	"github.com/studyshare/studyshare-backend/internal/common"
	"github.com/studyshare/studyshare-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNotifyReply_PersistsThenPushes(t *testing.T) {
	repo := new(mockNotificationRepo)
	pub := newFakePublisher("alice")
	svc := NewNotificationService(repo, pub)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.Recipient == "alice" && n.Sender == "bob" && !n.IsInsight && !n.IsFriendRequest
	})).Run(func(args mock.Arguments) { args.Get(1).(*domain.Notification).ID = 5 }).Return(nil)

	parent := &domain.Comment{ID: 1, FileID: "F1", UserID: "alice"}
	reply := &domain.Comment{ID: 2, FileID: "F1", UserID: "bob", Username: "Bob", Content: "answer"}

	n, err := svc.NotifyReply(context.Background(), parent, reply)

	require.NoError(t, err)
	assert.Equal(t, uint(5), n.ID)
	assert.Equal(t, "Bob replied to your comment", n.MessageBy)
	assert.Equal(t, "answer", n.Preview)
	assert.Equal(t, "F1", n.FileID)
	require.NotNil(t, n.CommentReference)
	assert.Equal(t, uint(2), *n.CommentReference)
	assert.False(t, n.CreatedAt.IsZero())

	pushes := pub.byEvent(domain.EventNotification)
	require.Len(t, pushes, 1)
	assert.Equal(t, "alice", pushes[0].Target)
	repo.AssertExpectations(t)
}

func TestCreateInsight_Validation(t *testing.T) {
	repo := new(mockNotificationRepo)
	svc := NewNotificationService(repo, nil)

	_, err := svc.CreateInsight(context.Background(), &domain.CreateInsightRequest{Recipient: "alice"})

	var vErr *common.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"messageBy"}, vErr.Fields)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateInsight_SetsFlag(t *testing.T) {
	repo := new(mockNotificationRepo)
	svc := NewNotificationService(repo, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	n, err := svc.CreateInsight(context.Background(), &domain.CreateInsightRequest{Recipient: "alice", MessageBy: "Your notes are trending", FileID: "F1"})

	require.NoError(t, err)
	assert.True(t, n.IsInsight)
	assert.False(t, n.IsFriendRequest)
	assert.Equal(t, "insight", n.Kind())
}

func TestCreateFriendRequest_RejectsSelf(t *testing.T) {
	svc := NewNotificationService(new(mockNotificationRepo), nil)
	_, err := svc.CreateFriendRequest(context.Background(), &domain.CreateFriendRequestRequest{Recipient: "a", Sender: "a", MessageBy: "hi"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestMarkRead(t *testing.T) {
	t.Run("unknown id", func(t *testing.T) {
		repo := new(mockNotificationRepo)
		repo.On("FindByID", mock.Anything, uint(1)).Return(nil, common.ErrNotificationNotFound)

		_, err := NewNotificationService(repo, nil).MarkRead(context.Background(), "alice", 1)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("someone else's notification", func(t *testing.T) {
		repo := new(mockNotificationRepo)
		repo.On("FindByID", mock.Anything, uint(1)).Return(&domain.Notification{ID: 1, Recipient: "bob"}, nil)

		_, err := NewNotificationService(repo, nil).MarkRead(context.Background(), "alice", 1)
		assert.ErrorIs(t, err, common.ErrForbidden)
		repo.AssertNotCalled(t, "MarkAsRead", mock.Anything, mock.Anything)
	})

	t.Run("already read is a no-op", func(t *testing.T) {
		repo := new(mockNotificationRepo)
		repo.On("FindByID", mock.Anything, uint(1)).Return(&domain.Notification{ID: 1, Recipient: "alice", IsRead: true}, nil)

		n, err := NewNotificationService(repo, nil).MarkRead(context.Background(), "alice", 1)
		require.NoError(t, err)
		assert.True(t, n.IsRead)
		repo.AssertNotCalled(t, "MarkAsRead", mock.Anything, mock.Anything)
	})

	t.Run("marks unread", func(t *testing.T) {
		repo := new(mockNotificationRepo)
		repo.On("FindByID", mock.Anything, uint(1)).Return(&domain.Notification{ID: 1, Recipient: "alice"}, nil)
		repo.On("MarkAsRead", mock.Anything, uint(1)).Return(nil)

		n, err := NewNotificationService(repo, nil).MarkRead(context.Background(), "alice", 1)
		require.NoError(t, err)
		assert.True(t, n.IsRead)
		repo.AssertExpectations(t)
	})
}
