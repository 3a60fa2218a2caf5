package core

import "time"

// Gender as reported by the backend.
type Gender string

const (
	GenderMale   Gender = "m"
	GenderFemale Gender = "f"
)

// ParseGender maps backend and config spellings onto a Gender, defaulting to male.
func ParseGender(s string) Gender {
	switch s {
	case "f", "F", "female", "FEMALE":
		return GenderFemale
	default:
		return GenderMale
	}
}

func (g Gender) String() string {
	if g == GenderFemale {
		return "female"
	}
	return "male"
}

// User is an identity record resolved from the backend.
type User struct {
	ID            int
	Nick          string
	Gender        Gender
	Anonymous     bool
	IdleSeconds   int
	GlobalAdminID *int
	Karma         int

	// Detail fields, only filled by a direct user lookup.
	Online     bool
	Rooms      []string
	ProfileURL string
}

// IsGlobalAdmin reports whether the user holds a chat-wide admin role.
func (u *User) IsGlobalAdmin() bool {
	return u.GlobalAdminID != nil && *u.GlobalAdminID > 0
}

// Profile is the public profile page data of a user.
type Profile struct {
	Age       string
	ViewCount string
	ImageURL  string
	Karma     int
}

// UserProfile merges identity and profile data for WHOIS.
type UserProfile struct {
	User    *User
	Profile *Profile
}

// StoredMessage is an offline message kept by the backend.
type StoredMessage struct {
	Text     string
	SenderID int
	SentAt   time.Time
	FromSelf bool
}
