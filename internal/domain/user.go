package domain

// UserProfile is the authenticated user's profile as returned by the API.
type UserProfile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Room is a chat channel as listed by the API.
type Room struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	OwnerUsername     string `json:"owner_username"`
	ParticipantsCount int    `json:"participants_count"`
	IsParticipant     bool   `json:"is_participant"`
}

// IsOwnedBy reports whether username owns the room.
func (r Room) IsOwnedBy(username string) bool {
	return username != "" && r.OwnerUsername == username
}

// Roles a user can register with.
const (
	RoleCustomer = "CUSTOMER"
	RoleBooster  = "BOOSTER"
	RoleAdmin    = "ADMIN"
)

// CanDeleteRooms reports whether role may delete rooms it does not own.
func CanDeleteRooms(role string) bool {
	return role == RoleAdmin
}
