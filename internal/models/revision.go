package models

import "time"

// Revision represents an immutable version of a page's content.
type Revision struct {
	ID            int64
	PageID        int64
	VersionNumber int
	Body          string
	AuthorID      int64
	Author        *User
	Comment       *string
	CreatedAt     time.Time
}
