package domain

import "strings"

// GroupKey names a broadcast group in the connection registry.
type GroupKey string

const (
	roomGroupPrefix = "room_"
	userGroupPrefix = "user_"
)

func RoomGroup(roomID string) GroupKey {
	return GroupKey(roomGroupPrefix + roomID)
}

func UserGroup(userID string) GroupKey {
	return GroupKey(userGroupPrefix + userID)
}

// RoomID returns the room behind a room group, false for any other group.
func (g GroupKey) RoomID() (string, bool) {
	return strings.CutPrefix(string(g), roomGroupPrefix)
}
