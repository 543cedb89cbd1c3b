// internal/model/user.go
package model

import "time"

// User is an account allowed to call the API.
// This corresponds to the app_users table in storage.
type User struct {
	ID           int64     `json:"id" db:"id"`                  // Unique user identifier
	Username     string    `json:"username" db:"username"`      // Login name (unique)
	Email        string    `json:"email" db:"email"`            // Contact address
	PasswordHash string    `json:"-" db:"password_hash"`        // bcrypt hash, never serialized
	IsStaff      bool      `json:"isStaff" db:"is_staff"`       // Grants access to admin-only resources
	DateJoined   time.Time `json:"dateJoined" db:"date_joined"` // When the account was created
}
