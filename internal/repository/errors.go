// Package repository provides data access to the users, user_sessions and
// subscriptions tables. Sentinel errors defined here let handlers map
// storage failures to precise HTTP responses without inspecting driver
// error strings themselves.
package repository

import "errors"

// ErrEmailExists is returned when an insert violates the unique email
// constraint. Handlers translate this into an HTTP 409 response.
var ErrEmailExists = errors.New("email already registered")

// ErrUsernameExists is returned when an insert violates the unique username
// constraint. Handlers translate this into an HTTP 409 response.
var ErrUsernameExists = errors.New("username taken")
