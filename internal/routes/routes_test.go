package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studyshare/studyshare-backend/internal/config"
	"github.com/studyshare/studyshare-backend/internal/database"
	"github.com/studyshare/studyshare-backend/internal/domain"
	"github.com/studyshare/studyshare-backend/internal/handler"
	"github.com/studyshare/studyshare-backend/internal/migration"
	"github.com/studyshare/studyshare-backend/internal/repository"
	"github.com/studyshare/studyshare-backend/internal/service"
	"github.com/studyshare/studyshare-backend/internal/ws"
	"github.com/studyshare/studyshare-backend/pkg/cache"
	"github.com/studyshare/studyshare-backend/pkg/jwt"
	"github.com/studyshare/studyshare-backend/pkg/storage"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// APISuite drives the HTTP surface end to end against in-memory sqlite
type APISuite struct {
	suite.Suite
	db         *gorm.DB
	router     *gin.Engine
	hub        *ws.Hub
	jwtManager *jwt.Manager
	tokens     map[string]string
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	db, err := database.OpenMemory(s.T().Name())
	s.Require().NoError(err)
	s.Require().NoError(migration.RunUsers(db))
	s.Require().NoError(migration.Run(db))
	s.db = db

	for _, u := range []domain.User{
		{ID: "A", Name: "Ana", Username: "ana"},
		{ID: "B", Name: "Ben", Username: "ben"},
	} {
		s.Require().NoError(db.Create(&u).Error)
	}

	cfg := &config.Config{
		Server:        config.ServerConfig{RequestTimeout: 5 * time.Second},
		Notifications: config.NotificationsConfig{ProducerAPIKeys: []string{"producer-key"}},
		Storage:       config.StorageConfig{MaxFileSizeMB: 1},
	}

	s.jwtManager = jwt.NewManager("test-secret", 900)
	s.tokens = map[string]string{}
	for _, id := range []string{"A", "B"} {
		token, err := s.jwtManager.GenerateAccessToken(id, "")
		s.Require().NoError(err)
		s.tokens[id] = token
	}

	localCache, err := cache.NewLocalService(128)
	s.Require().NoError(err)
	files, err := storage.NewLocalStore(s.T().TempDir(), "/uploads")
	s.Require().NoError(err)

	s.hub = ws.NewHub(nil, "")
	users := service.NewUserDirectory(repository.NewUserRepository(db), localCache)
	chatRepo := repository.NewGroupChatRepository(db)
	ledgerRepo := repository.NewReadLedgerRepository(db)

	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), s.hub)
	comments := service.NewCommentService(repository.NewCommentRepository(db), users, notifications, s.hub, localCache)
	chats := service.NewGroupChatService(chatRepo, ledgerRepo, users, files, s.hub)
	ledger := service.NewReadLedgerService(ledgerRepo, chatRepo)
	s.hub.UseChats(chats)

	s.router = gin.New()
	Setup(s.router,
		handler.NewCommentHandler(comments),
		handler.NewNotificationHandler(notifications),
		handler.NewGroupChatHandler(chats, ledger, cfg.Storage.MaxFileSizeMB),
		handler.NewWSHandler(s.hub, ""),
		s.jwtManager, nil, cfg,
	)
}

func (s *APISuite) TearDownTest() {
	s.hub.Stop()
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string   `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details"`
	} `json:"error"`
}

// do sends a request as userID ("" for anonymous) and decodes the envelope
func (s *APISuite) do(userID, method, path string, body interface{}) (int, envelope) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.send(userID, req)
}

func (s *APISuite) send(userID string, req *http.Request) (int, envelope) {
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[userID])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (s *APISuite) decode(env envelope, out interface{}) {
	s.Require().NoError(json.Unmarshal(env.Data, out))
}

func (s *APISuite) TestListCommentsEmptyFile() {
	code, env := s.do("", http.MethodGet, "/api/comment/all?fileId=nothing-here", nil)
	s.Equal(http.StatusOK, code)
	s.JSONEq(`[]`, string(env.Data))

	code, env = s.do("", http.MethodGet, "/api/comment/all", nil)
	s.Equal(http.StatusBadRequest, code)
	s.Equal("BAD_REQUEST", env.Error.Code)
}

func (s *APISuite) TestReplyNotificationMarkRead() {
	code, env := s.do("A", http.MethodPost, "/api/comment", map[string]interface{}{
		"fileId": "f1", "content": "What does chapter 3 mean?",
	})
	s.Require().Equal(http.StatusCreated, code)
	var root domain.Comment
	s.decode(env, &root)
	s.Equal("ana", root.Username)

	code, _ = s.do("B", http.MethodPost, "/api/comment", map[string]interface{}{
		"fileId": "f1", "content": "It covers recursion", "parentId": root.ID,
	})
	s.Require().Equal(http.StatusCreated, code)

	code, env = s.do("A", http.MethodGet, "/api/notifications", nil)
	s.Require().Equal(http.StatusOK, code)
	var unread []domain.Notification
	s.decode(env, &unread)
	s.Require().Len(unread, 1)
	s.Equal("ben replied to your comment", unread[0].MessageBy)
	s.Equal("It covers recursion", unread[0].Preview)

	markPath := fmt.Sprintf("/api/notifications/mark-as-read/%d", unread[0].ID)

	code, _ = s.do("B", http.MethodPatch, markPath, nil)
	s.Equal(http.StatusForbidden, code)

	code, _ = s.do("A", http.MethodPatch, markPath, nil)
	s.Equal(http.StatusOK, code)

	code, env = s.do("A", http.MethodGet, "/api/notifications/count", nil)
	s.Require().Equal(http.StatusOK, code)
	var count domain.NotificationCount
	s.decode(env, &count)
	s.Zero(count.Count)
}

func (s *APISuite) TestCommentRequiresMatchingIdentity() {
	code, _ := s.do("", http.MethodPost, "/api/comment", map[string]interface{}{"fileId": "f1", "content": "hi"})
	s.Equal(http.StatusUnauthorized, code)

	code, _ = s.do("B", http.MethodPost, "/api/comment", map[string]interface{}{
		"fileId": "f1", "content": "hi", "userId": "A",
	})
	s.Equal(http.StatusForbidden, code)

	code, env := s.do("A", http.MethodPost, "/api/comment", map[string]interface{}{"fileId": "f1"})
	s.Equal(http.StatusBadRequest, code)
	s.Contains(env.Error.Details, "content")
}

func (s *APISuite) TestEditAndDeleteComment() {
	_, env := s.do("A", http.MethodPost, "/api/comment", map[string]interface{}{"fileId": "f1", "content": "draft"})
	var c domain.Comment
	s.decode(env, &c)
	path := fmt.Sprintf("/api/comment/%d", c.ID)

	code, _ := s.do("B", http.MethodPut, path, map[string]interface{}{"content": "hijack"})
	s.Equal(http.StatusForbidden, code)

	code, env = s.do("A", http.MethodPut, path, map[string]interface{}{"content": "final"})
	s.Require().Equal(http.StatusOK, code)
	s.decode(env, &c)
	s.Equal("final", c.Content)

	code, env = s.do("A", http.MethodDelete, path, nil)
	s.Require().Equal(http.StatusOK, code)
	s.decode(env, &c)
	s.True(c.Deleted)
	s.Equal("final", c.Content)

	code, env = s.do("A", http.MethodPut, path, map[string]interface{}{"content": "edited after delete"})
	s.Require().Equal(http.StatusOK, code)
	s.decode(env, &c)
	s.Equal("edited after delete", c.Content)
	s.True(c.Deleted)

	code, _ = s.do("A", http.MethodPut, "/api/comment/999", map[string]interface{}{"content": "x"})
	s.Equal(http.StatusNotFound, code)
	code, _ = s.do("A", http.MethodDelete, "/api/comment/abc", nil)
	s.Equal(http.StatusBadRequest, code)
}

func (s *APISuite) TestContentIsReturnedAsTyped() {
	const text = `it's 5 > 3 & "true"`

	code, env := s.do("A", http.MethodPost, "/api/comment", map[string]interface{}{"fileId": "f2", "content": "root"})
	s.Require().Equal(http.StatusCreated, code)
	var root domain.Comment
	s.decode(env, &root)

	code, env = s.do("B", http.MethodPost, "/api/comment", map[string]interface{}{
		"fileId": "f2", "content": text, "parentId": root.ID,
	})
	s.Require().Equal(http.StatusCreated, code)
	var reply domain.Comment
	s.decode(env, &reply)
	s.Equal(text, reply.Content)

	_, env = s.do("", http.MethodGet, "/api/comment/all?fileId=f2", nil)
	var thread []domain.Comment
	s.decode(env, &thread)
	s.Require().Len(thread, 2)
	s.Equal(text, thread[1].Content)

	_, env = s.do("A", http.MethodGet, "/api/notifications", nil)
	var unread []domain.Notification
	s.decode(env, &unread)
	s.Require().Len(unread, 1)
	s.Equal(text, unread[0].Preview)
}

func (s *APISuite) TestVoteWithIdempotencyKey() {
	_, env := s.do("A", http.MethodPost, "/api/comment", map[string]interface{}{"fileId": "f1", "content": "vote me"})
	var c domain.Comment
	s.decode(env, &c)
	path := fmt.Sprintf("/api/comment/%d/vote", c.ID)

	vote := func(key string) domain.VoteResult {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(`{"voteType":"upvote"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", key)
		code, env := s.send("B", req)
		s.Require().Equal(http.StatusOK, code)
		var result domain.VoteResult
		s.decode(env, &result)
		return result
	}

	s.Equal(1, vote("k1").NetVotes)
	// a retried request must not toggle the vote off
	s.Equal(1, vote("k1").NetVotes)
	s.Equal(0, vote("k2").NetVotes)

	code, _ := s.do("B", http.MethodPost, path, map[string]string{"voteType": "sideways"})
	s.Equal(http.StatusBadRequest, code)
}

func (s *APISuite) TestInsightsAreSelfOnly() {
	producer := func(path string, body interface{}, key string) int {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		code, _ := s.send("", req)
		return code
	}

	insight := map[string]string{"recipient": "A", "messageBy": "Weekly digest", "preview": "3 new files"}
	s.Equal(http.StatusUnauthorized, producer("/api/notifications/insights", insight, ""))
	s.Equal(http.StatusCreated, producer("/api/notifications/insights", insight, "producer-key"))
	s.Equal(http.StatusBadRequest, producer("/api/notifications/friend-requests",
		map[string]string{"recipient": "A", "sender": "A", "messageBy": "Ana"}, "producer-key"))

	code, env := s.do("A", http.MethodGet, "/api/notifications/insights/A", nil)
	s.Require().Equal(http.StatusOK, code)
	var items []domain.Notification
	s.decode(env, &items)
	s.Require().Len(items, 1)
	s.True(items[0].IsInsight)

	code, _ = s.do("B", http.MethodGet, "/api/notifications/insights/A", nil)
	s.Equal(http.StatusForbidden, code)
}

func (s *APISuite) TestGroupChatFlow() {
	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	s.Require().NoError(mw.WriteField("name", "Algorithms"))
	s.Require().NoError(mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/group-chats", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	code, env := s.send("A", req)
	s.Require().Equal(http.StatusCreated, code)
	var chat domain.GroupChatResponse
	s.decode(env, &chat)
	base := fmt.Sprintf("/api/group-chats/%d", chat.ID)

	code, _ = s.do("A", http.MethodPost, base+"/add-members", map[string]interface{}{"userIds": []string{"B"}})
	s.Require().Equal(http.StatusOK, code)

	_, env = s.do("B", http.MethodGet, "/api/group-chats/unread-count", nil)
	s.JSONEq(`{"count":1}`, string(env.Data))

	form.Reset()
	mw = multipart.NewWriter(&form)
	s.Require().NoError(mw.WriteField("content", "see attached"))
	part, err := mw.CreateFormFile("files", "notes.txt")
	s.Require().NoError(err)
	_, _ = part.Write([]byte("graph theory"))
	s.Require().NoError(mw.Close())
	req = httptest.NewRequest(http.MethodPost, base+"/messages", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	code, env = s.send("B", req)
	s.Require().Equal(http.StatusCreated, code, string(env.Data))
	var sent domain.Message
	s.decode(env, &sent)
	s.Equal("see attached", sent.Content)
	s.Require().Len(sent.Files, 1)
	s.Equal("notes.txt", sent.Files[0].Filename)

	_, env = s.do("A", http.MethodGet, "/api/group-chats/unread", nil)
	s.JSONEq(fmt.Sprintf(`{"unreadGroupChatIds":[%d]}`, chat.ID), string(env.Data))

	code, _ = s.do("A", http.MethodPost, base+"/read", nil)
	s.Equal(http.StatusNoContent, code)
	_, env = s.do("A", http.MethodGet, "/api/group-chats/unread", nil)
	s.JSONEq(`{"unreadGroupChatIds":[]}`, string(env.Data))

	code, env = s.do("A", http.MethodGet, base+"/last-message", nil)
	s.Require().Equal(http.StatusOK, code)
	var last domain.LastMessageResponse
	s.decode(env, &last)
	s.Require().NotNil(last.LastMessage)
	s.Equal(sent.ID, last.LastMessage.ID)

	code, env = s.do("A", http.MethodGet, base+"/members", nil)
	s.Require().Equal(http.StatusOK, code)
	var members []domain.UserSummary
	s.decode(env, &members)
	s.Len(members, 2)

	code, _ = s.do("A", http.MethodPost, base+"/remove-member", map[string]string{"userIdToRemove": "B"})
	s.Require().Equal(http.StatusOK, code)
	code, _ = s.do("B", http.MethodGet, base+"/messages", nil)
	s.Equal(http.StatusForbidden, code)
}

func (s *APISuite) TestSendMessageAsSomeoneElse() {
	chatReq := httptest.NewRequest(http.MethodPost, "/api/group-chats", bytes.NewBufferString("name=Solo"))
	chatReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	code, env := s.send("A", chatReq)
	s.Require().Equal(http.StatusCreated, code)
	var chat domain.GroupChatResponse
	s.decode(env, &chat)

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/group-chats/%d/messages", chat.ID),
		bytes.NewBufferString("senderId=B&content=spoof"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	code, _ = s.send("A", req)
	s.Equal(http.StatusForbidden, code)

	code, _ = s.do("A", http.MethodGet, "/api/group-chats/abc/messages", nil)
	s.Equal(http.StatusBadRequest, code)
	code, _ = s.do("A", http.MethodGet, "/api/group-chats/999/messages", nil)
	s.Equal(http.StatusNotFound, code)
}
