// Package domain contains core concepts of the messaging core.
// This file defines Room entities and their authorization invariants.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"chat-hub/errors"
	"time"

	"github.com/samber/lo"
)

type RoomKind string

const (
	RoomGeneral       RoomKind = "general"
	RoomProject       RoomKind = "project"
	RoomTeam          RoomKind = "team"
	RoomDirect        RoomKind = "direct"
	RoomAnnouncements RoomKind = "announcements"
	RoomSupport       RoomKind = "support"
)

var roomKinds = []RoomKind{RoomGeneral, RoomProject, RoomTeam, RoomDirect, RoomAnnouncements, RoomSupport}

func (k RoomKind) Valid() bool {
	return lo.Contains(roomKinds, k)
}

type Room struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Kind            RoomKind  `json:"kind"`
	ProjectID       *string   `json:"projectId,omitempty"`
	IsPrivate       bool      `json:"isPrivate"`
	IsArchived      bool      `json:"isArchived"`
	MaxParticipants int       `json:"maxParticipants"`
	Participants    []string  `json:"participants"`
	CreatedBy       string    `json:"createdBy"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// CanAccess is the single authorization rule for a room: anyone may enter
// a public room, only participants may enter a private one. Participation
// is evaluated against the current set, never against when it was granted.
func (r Room) CanAccess(userID string) bool {
	if userID == "" {
		return false
	}
	return !r.IsPrivate || r.HasParticipant(userID)
}

func (r Room) HasParticipant(userID string) bool {
	return lo.Contains(r.Participants, userID)
}

// AddParticipant returns false when the user was already a participant.
func (r *Room) AddParticipant(userID string, at time.Time) (bool, error) {
	if r.HasParticipant(userID) {
		return false, nil
	}
	if r.MaxParticipants > 0 && len(r.Participants) >= r.MaxParticipants {
		return false, errors.ErrRoomFull
	}
	r.Participants = append(r.Participants, userID)
	r.UpdatedAt = at
	return true, nil
}

// RemoveParticipant returns false when the user was not a participant.
func (r *Room) RemoveParticipant(userID string, at time.Time) bool {
	if !r.HasParticipant(userID) {
		return false
	}
	r.Participants = lo.Without(r.Participants, userID)
	r.UpdatedAt = at
	return true
}
