package model

import "time"

// User represents an application user record as stored in the `users`
// table. Each field corresponds to a column. The json tags are omitted
// because these structs are used internally by the repository layer;
// handlers define separate response types with appropriate JSON tags.
//
// Fields:
//  ID                – UUID primary key of the user.
//  Email             – unique email address (stored lowercased).
//  Username          – unique public handle.
//  FirstName         – optional given name.
//  LastName          – optional family name.
//  ProfilePictureURL – optional avatar URL.
//  PasswordHash      – bcrypt hashed password.
//  EmailVerified     – whether the address has been confirmed.
//  CreatedAt         – timestamp of creation.
//  UpdatedAt         – timestamp of last update.
type User struct {
	ID                string    // users.id
	Email             string    // users.email
	Username          string    // users.username
	FirstName         string    // users.first_name (empty if unset)
	LastName          string    // users.last_name (empty if unset)
	ProfilePictureURL string    // users.profile_picture_url (empty if unset)
	PasswordHash      string    // users.password_hash
	EmailVerified     bool      // users.email_verified
	CreatedAt         time.Time // users.created_at
	UpdatedAt         time.Time // users.updated_at
}
