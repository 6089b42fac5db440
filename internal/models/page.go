package models

import "time"

// Page is a versioned wiki page. Its content lives in revisions.
type Page struct {
	ID        int64
	Title     string
	CreatedAt time.Time
}

// SimplePage is a single-revision wiki page whose body is overwritten in place.
type SimplePage struct {
	Title     string
	Body      string
	AuthorID  int64
	Author    *User
	UpdatedAt time.Time
}
