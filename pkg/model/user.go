package model

import (
	"strings"
	"time"
)

// User is an admin account. PasswordHash is a bcrypt hash and never leaves
// the identity backend; HTTP responses use Principal instead.
type User struct {
	Meta `bson:",inline"`

	Email        string `json:"email" firestore:"email" bson:"email"`
	DisplayName  string `json:"displayName,omitempty" firestore:"displayName" bson:"displayName"`
	PasswordHash string `json:"passwordHash" firestore:"passwordHash" bson:"passwordHash"`
}

// NormalizeEmail lower-cases and trims an email address for lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Principal returns the public view of the user.
func (x *User) Principal() *Principal {
	return &Principal{
		ID:          x.ID,
		Email:       x.Email,
		DisplayName: x.DisplayName,
	}
}

// Principal is the currently authenticated user as seen by the session gate.
type Principal struct {
	ID          RecordID `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName,omitempty"`
}

// Name returns the display name, falling back to the email address.
func (x *Principal) Name() string {
	if x.DisplayName != "" {
		return x.DisplayName
	}
	return x.Email
}

// SessionRecord is one signed-in browser. Its ID is the jti of the issued token.
type SessionRecord struct {
	Meta `bson:",inline"`

	UserID    RecordID  `json:"userId" firestore:"userId" bson:"userId"`
	ExpiresAt time.Time `json:"expiresAt" firestore:"expiresAt" bson:"expiresAt"`
}

// Expired reports whether the session is no longer valid at now.
func (x *SessionRecord) Expired(now time.Time) bool {
	return !now.Before(x.ExpiresAt)
}
