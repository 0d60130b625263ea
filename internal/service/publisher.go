package service

import "fmt"

// Publisher delivers realtime events to connected sockets. Every method is
// best effort: undeliverable events are dropped.
type Publisher interface {
	BroadcastAll(event string, data interface{})
	PushToUser(userID, event string, data interface{}) bool
	PushToMembers(userIDs []string, event string, data interface{})
	PushToRoom(room, event string, data interface{})
	EvictFromRoom(userID, room string)
}

// GroupRoom is the socket room of a group chat
func GroupRoom(groupID uint) string {
	return fmt.Sprintf("group:%d", groupID)
}

type nopPublisher struct{}

func (nopPublisher) BroadcastAll(string, interface{}) {}
func (nopPublisher) PushToUser(string, string, interface{}) bool { return false }
func (nopPublisher) PushToMembers([]string, string, interface{}) {}
func (nopPublisher) PushToRoom(string, string, interface{}) {}
func (nopPublisher) EvictFromRoom(string, string) {}

func publisherOrNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}
