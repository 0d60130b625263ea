package service

import (
	"context"
	"sync"
	"time"

	"github.com/studyshare/studyshare-backend/internal/common"
	"github.com/studyshare/studyshare-backend/internal/domain"
	"github.com/stretchr/testify/mock"
)

// --- Mock CommentRepository ---

type mockCommentRepo struct {
	mock.Mock
}

func (m *mockCommentRepo) ListByFile(ctx context.Context, fileID string) ([]*domain.Comment, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Comment), args.Error(1)
}

func (m *mockCommentRepo) FindByID(ctx context.Context, id uint) (*domain.Comment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// hand out copies so callers cannot mutate the fixture
	c := *args.Get(0).(*domain.Comment)
	return &c, args.Error(1)
}

func (m *mockCommentRepo) Create(ctx context.Context, comment *domain.Comment) error {
	return m.Called(ctx, comment).Error(0)
}

func (m *mockCommentRepo) UpdateContent(ctx context.Context, id uint, content string, parentID *uint) error {
	return m.Called(ctx, id, content, parentID).Error(0)
}

func (m *mockCommentRepo) SetDeleted(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCommentRepo) UpdateVotes(ctx context.Context, id uint, version int, votes []domain.Vote) (bool, error) {
	args := m.Called(ctx, id, version, votes)
	return args.Bool(0), args.Error(1)
}

// --- Mock NotificationService ---

type mockNotifications struct {
	mock.Mock
}

func (m *mockNotifications) NotifyReply(ctx context.Context, parent, reply *domain.Comment) (*domain.Notification, error) {
	args := m.Called(ctx, parent, reply)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *mockNotifications) CreateInsight(ctx context.Context, req *domain.CreateInsightRequest) (*domain.Notification, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *mockNotifications) CreateFriendRequest(ctx context.Context, req *domain.CreateFriendRequestRequest) (*domain.Notification, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *mockNotifications) MarkRead(ctx context.Context, actorID string, id uint) (*domain.Notification, error) {
	args := m.Called(ctx, actorID, id)
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *mockNotifications) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	args := m.Called(ctx, recipient)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockNotifications) ListUnread(ctx context.Context, recipient string) ([]*domain.Notification, error) {
	args := m.Called(ctx, recipient)
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

func (m *mockNotifications) CountUnread(ctx context.Context, recipient string) (int64, error) {
	args := m.Called(ctx, recipient)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockNotifications) ListInsights(ctx context.Context, recipient string) ([]*domain.Notification, error) {
	args := m.Called(ctx, recipient)
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

// --- Mock NotificationRepository ---

type mockNotificationRepo struct {
	mock.Mock
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *mockNotificationRepo) FindByID(ctx context.Context, id uint) (*domain.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	n := *args.Get(0).(*domain.Notification)
	return &n, args.Error(1)
}

func (m *mockNotificationRepo) MarkAsRead(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockNotificationRepo) MarkAllAsRead(ctx context.Context, recipient string) (int64, error) {
	args := m.Called(ctx, recipient)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockNotificationRepo) ListUnread(ctx context.Context, recipient string) ([]*domain.Notification, error) {
	args := m.Called(ctx, recipient)
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, recipient string) (int64, error) {
	args := m.Called(ctx, recipient)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockNotificationRepo) ListInsights(ctx context.Context, recipient string) ([]*domain.Notification, error) {
	args := m.Called(ctx, recipient)
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

// --- in-memory UserDirectory ---

type staticUsers map[string]*domain.User

func (u staticUsers) Get(_ context.Context, id string) (*domain.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, common.ErrUserNotFound
}

func (u staticUsers) GetMany(_ context.Context, ids []string) (map[string]*domain.User, error) {
	out := make(map[string]*domain.User)
	for _, id := range ids {
		if user, ok := u[id]; ok {
			out[id] = user
		}
	}
	return out, nil
}

// --- recording Publisher ---

type publishedEvent struct {
	Kind   string // all | user | members | room | evict
	Target string
	Users  []string
	Event  string
	Data   interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	online map[string]bool
}

func newFakePublisher(online ...string) *fakePublisher {
	p := &fakePublisher{online: make(map[string]bool)}
	for _, id := range online {
		p.online[id] = true
	}
	return p
}

func (p *fakePublisher) record(e publishedEvent) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *fakePublisher) BroadcastAll(event string, data interface{}) {
	p.record(publishedEvent{Kind: "all", Event: event, Data: data})
}

func (p *fakePublisher) PushToUser(userID, event string, data interface{}) bool {
	p.record(publishedEvent{Kind: "user", Target: userID, Event: event, Data: data})
	return p.online[userID]
}

func (p *fakePublisher) PushToMembers(userIDs []string, event string, data interface{}) {
	p.record(publishedEvent{Kind: "members", Users: append([]string(nil), userIDs...), Event: event, Data: data})
}

func (p *fakePublisher) PushToRoom(room, event string, data interface{}) {
	p.record(publishedEvent{Kind: "room", Target: room, Event: event, Data: data})
}

func (p *fakePublisher) EvictFromRoom(userID, room string) {
	p.record(publishedEvent{Kind: "evict", Target: room, Users: []string{userID}})
}

func (p *fakePublisher) byEvent(event string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// stepClock returns a clock that advances by step on every call
func stepClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(step)
		return t
	}
}
