package entity

import "time"

// User is an account that can sign in.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name"`
	Email        string     `json:"email,omitempty"`
	Department   string     `json:"department,omitempty"`
	Role         Role       `json:"role"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID     int64
	Username   string
	FullName   string
	Role       Role
	Department string
}
