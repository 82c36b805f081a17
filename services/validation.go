package services

import (
	"chat-hub/errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// RoomSpec is what a user submits to create a room.
type RoomSpec struct {
	Name            string   `json:"name" validate:"required,max=100"`
	Kind            string   `json:"kind" validate:"omitempty,oneof=general project team direct announcements support"`
	ProjectID       *string  `json:"projectId,omitempty" validate:"required_if=Kind project"`
	IsPrivate       bool     `json:"isPrivate"`
	MaxParticipants int      `json:"maxParticipants" validate:"gte=0"`
	Participants    []string `json:"participants" validate:"dive,required"`
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return nil
}
