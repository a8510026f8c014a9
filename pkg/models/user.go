package models

import (
	"time"
)

// User is an account that can upload reports and query the API.
type User struct {
	ID        int64     `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Active    bool      `json:"active"`
	IsAdmin   bool      `json:"is_admin"`
	APIToken  *string   `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// FullName returns the user's first and last name, or the username if neither is set.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Username
}
