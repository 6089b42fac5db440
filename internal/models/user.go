package models

import "time"

// User is a wiki profile, created the first time an identity saves a page.
type User struct {
	ID        int64
	Identity  string
	Nickname  string
	Email     string
	CreatedAt time.Time
}
