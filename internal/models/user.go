package models

// User is an entry of the shared registered-user directory. Entries are
// created on first sign-in, refreshed on each later one, and never deleted.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	AvatarURL   string    `json:"avatarUrl"`
	Online      bool      `json:"online"`
	LastSeen    Timestamp `json:"lastSeen"`
	CreatedAt   Timestamp `json:"createdAt"`
}

// AsParticipant returns the display metadata other users see for u.
func (u *User) AsParticipant() Participant {
	name := u.DisplayName
	if name == "" {
		name = u.Email
	}
	if name == "" {
		name = u.ID
	}
	presence := "offline"
	if u.Online {
		presence = "online"
	}
	return Participant{
		ID:           u.ID,
		DisplayName:  name,
		AvatarURL:    u.AvatarURL,
		PresenceText: presence,
	}
}
