package domain

import (
	"errors"
	"slices"
	"strings"
	"time"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Permission is an operation class on managed resources.
type Permission string

const (
	PermRead   Permission = "read"
	PermWrite  Permission = "write"
	PermDelete Permission = "delete"
)

// Staff maintain records; only admins remove them.
var rolePermissions = map[string][]Permission{
	RoleAdmin: {PermRead, PermWrite, PermDelete},
	RoleStaff: {PermRead, PermWrite},
}

// ValidRole reports whether role is a known back-office role.
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// RoleAllows reports whether role grants p. Unknown roles grant nothing.
func RoleAllows(role string, p Permission) bool {
	return slices.Contains(rolePermissions[role], p)
}

// NormalizeUsername folds usernames so that login is case-insensitive.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is a back-office account allowed to manage resources.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
