package domain

// Realtime event names shared by services and the gateway
const (
	EventReceiveComment      = "receiveComment"
	EventCommentUpdated      = "commentUpdated"
	EventCommentDeleted      = "commentDeleted"
	EventNotification        = "notification"
	EventReceiveGroupMessage = "receiveGroupMessage"
	EventGroupChatUpdated    = "groupChatUpdated"
	EventError               = "error"

	// client -> server
	EventRegister         = "register"
	EventJoinGroupChat    = "joinGroupChat"
	EventLeaveGroupChat   = "leaveGroupChat"
	EventSendGroupMessage = "sendGroupMessage"
)
