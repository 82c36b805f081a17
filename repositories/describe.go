package repositories

import (
	"chat-hub/domain"
	"fmt"
	"strings"
)

// Record is a decoded view of one raw key, used by inspection tools.
type Record struct {
	Key    string
	Type   string
	Detail string
}

// Describe decodes a raw Badger entry written by this package.
func Describe(key string, val []byte) Record {
	record := Record{Key: key, Type: "RAW", Detail: fmt.Sprintf("Size: %d bytes", len(val))}

	switch {
	case strings.HasPrefix(key, "idx:"):
		record.Type = "INDEX"
		if len(val) > 0 {
			record.Detail = "-> " + string(val)
		} else {
			record.Detail = "-"
		}
	case strings.HasPrefix(key, userPrefix):
		var user domain.User
		if decode(val, &user) == nil {
			record.Type = "USER"
			record.Detail = fmt.Sprintf("%s (@%s)", user.Name, user.Handle)
		}
	case strings.HasPrefix(key, roomPrefix):
		var room domain.Room
		if decode(val, &room) == nil {
			record.Type = "ROOM"
			record.Detail = fmt.Sprintf("%s [%s] participants=%d", room.Name, roomFlags(room), len(room.Participants))
		}
	case strings.HasPrefix(key, messagePrefix):
		var message domain.Message
		if decode(val, &message) == nil {
			record.Type = "MESSAGE"
			record.Detail = fmt.Sprintf("%s: %s", message.SenderName, message.Content)
			if message.IsDeleted() {
				record.Detail += " (deleted)"
			}
		}
	}
	return record
}

func roomFlags(room domain.Room) string {
	flags := []string{string(room.Kind)}
	if room.IsPrivate {
		flags = append(flags, "private")
	}
	if room.IsArchived {
		flags = append(flags, "archived")
	}
	return strings.Join(flags, ",")
}
