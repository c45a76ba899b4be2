// Package models defines the data structures used for API responses and database persistence.
package models

import "time"

// BanlistEntry is a banned IPv4 address stored in the database.
type BanlistEntry struct {
	CreatedAt time.Time `json:"created_at"`
	Address   string    `json:"address"`
	Notes     string    `json:"notes"`
	ID        int64     `json:"id"`
}

// PasswordEntry is an accepted registration password stored in the database.
// Password holds the decoded (Unicode) form of the MacRoman password.
type PasswordEntry struct {
	CreatedAt time.Time `json:"created_at"`
	Password  string    `json:"password"`
	Notes     string    `json:"notes"`
	ID        int64     `json:"id"`
}

// Server is the public view of a live registration.
type Server struct {
	LastSeen    time.Time `json:"last_seen"`
	Address     string    `json:"address"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CountryCode string    `json:"country_code,omitempty"`
	ID          uint32    `json:"id"`
	Port        uint16    `json:"port"`
	UsersOnline uint16    `json:"users_online"`
}

// Stats summarizes the tracker state.
type Stats struct {
	Servers     int   `json:"servers"`
	UsersOnline int   `json:"users_online"`
	Banned      int64 `json:"banned"`
	Passwords   int64 `json:"passwords"`
}
