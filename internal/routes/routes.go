package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/studyshare/studyshare-backend/internal/config"
	"github.com/studyshare/studyshare-backend/internal/handler"
	"github.com/studyshare/studyshare-backend/internal/middleware"
	"github.com/studyshare/studyshare-backend/pkg/jwt"
)

// Setup configures all API routes
func Setup(
	router *gin.Engine,
	commentHandler *handler.CommentHandler,
	notificationHandler *handler.NotificationHandler,
	groupChatHandler *handler.GroupChatHandler,
	wsHandler *handler.WSHandler,
	jwtManager *jwt.Manager,
	redisClient *redis.Client,
	cfg *config.Config,
) {
	auth := middleware.JWTAuth(jwtManager)
	api := router.Group("/api", middleware.Timeout(cfg.Server.RequestTimeout))

	commentLimit := middleware.RateLimitPerUser(redisClient, middleware.RateLimitConfig{
		RequestsPerMinute: cfg.RateLimit.CommentsPerMinute,
		KeyPrefix:         "ratelimit:comment:",
	})
	voteLimit := middleware.RateLimitPerUser(redisClient, middleware.RateLimitConfig{
		RequestsPerMinute: cfg.RateLimit.VotesPerMinute,
		KeyPrefix:         "ratelimit:vote:",
	})

	// Comments
	comments := api.Group("/comment")
	{
		comments.GET("/all", commentHandler.ListComments)
		comments.POST("", auth, commentLimit, commentHandler.CreateComment)
		comments.PUT("/:id", auth, commentHandler.UpdateComment)
		comments.DELETE("/:id", auth, commentHandler.DeleteComment)
		comments.POST("/:id/vote", auth, voteLimit, commentHandler.Vote)
	}

	// Notifications
	notifications := api.Group("/notifications")
	{
		notifications.GET("", auth, notificationHandler.ListUnread)
		notifications.GET("/count", auth, notificationHandler.CountUnread)
		notifications.PATCH("/mark-as-read/:id", auth, notificationHandler.MarkAsRead)
		notifications.PATCH("/mark-all-as-read", auth, notificationHandler.MarkAllAsRead)
		notifications.GET("/insights/:userId", auth, notificationHandler.ListInsights)

		producer := middleware.ProducerAPIKey(cfg.Notifications.ProducerAPIKeys)
		notifications.POST("/insights", producer, notificationHandler.CreateInsight)
		notifications.POST("/friend-requests", producer, notificationHandler.CreateFriendRequest)
	}

	// Group chats
	groupChats := api.Group("/group-chats", auth)
	{
		groupChats.POST("", groupChatHandler.CreateGroupChat)
		groupChats.GET("", groupChatHandler.ListGroupChats)
		groupChats.GET("/unread", groupChatHandler.UnreadChats)
		groupChats.GET("/unread-count", groupChatHandler.UnreadCount)

		chat := groupChats.Group("/:groupId")
		chat.POST("/add-members", groupChatHandler.AddMembers)
		chat.POST("/remove-member", groupChatHandler.RemoveMember)
		chat.GET("/members", groupChatHandler.ListMembers)
		chat.GET("/messages", groupChatHandler.ListMessages)
		chat.POST("/messages", groupChatHandler.SendMessage)
		chat.POST("/read", groupChatHandler.MarkRead)
		chat.GET("/last-message", groupChatHandler.LastMessage)
	}

	// Realtime gateway; the socket outlives the request timeout
	router.GET("/ws", middleware.OptionalJWTAuth(jwtManager), wsHandler.Connect)
}
