package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// userNamespace scopes the UUIDv5 user ids derived from email addresses.
var userNamespace = uuid.MustParse("6f1c3c1e-8d0a-4c55-9a49-3f0e4b7d2a10")

type User struct {
	ID      string    `json:"id"`
	Email   string    `json:"email"`
	Issuer  string    `json:"issuer"`
	Expires time.Time `json:"expires"`
}

// NewUser builds the record returned to a logged in client. The id is stable
// for a given email regardless of case.
func NewUser(email, issuer string, expires time.Time) User {
	email = strings.ToLower(strings.TrimSpace(email))
	return User{
		ID:      uuid.NewSHA1(userNamespace, []byte(email)).String(),
		Email:   email,
		Issuer:  issuer,
		Expires: expires.UTC(),
	}
}
