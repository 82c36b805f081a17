package domain

// User is the slice of the identity store the messaging core needs:
// a stable identifier, a display name and a mention handle.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Handle string `json:"handle"`
}
