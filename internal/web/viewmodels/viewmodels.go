package viewmodels

import (
	"html/template"
	"time"

	"camelwiki/internal/models"
)

// RevisionViewModel combines revision and author information for display.
type RevisionViewModel struct {
	Version   int
	Previous  int // zero for the first version
	CreatedAt time.Time
	Author    string
	Comment   *string
}

// PageData is a unified struct to hold all possible data for any page.
type PageData struct {
	Title       string
	Content     template.HTML
	Body        string
	Exists      bool
	Author      string
	AuthorEmail string
	Version     int
	VersionDate time.Time
	Versioned   bool

	Revisions []RevisionViewModel
	From      int
	To        int

	// Login and registration forms
	ReturnPath  string
	Username    string
	DisplayName string
	Email       string
	Error       string

	CurrentUser *models.Identity
	IsLoggedIn  bool
	LogInOutURL string
}

// Revisions converts stored revisions for the history page, newest first.
func Revisions(revs []models.Revision) []RevisionViewModel {
	out := make([]RevisionViewModel, 0, len(revs))
	for i := len(revs) - 1; i >= 0; i-- {
		rev := revs[i]
		vm := RevisionViewModel{
			Version:   rev.VersionNumber,
			Previous:  rev.VersionNumber - 1,
			CreatedAt: rev.CreatedAt,
			Comment:   rev.Comment,
		}
		if rev.Author != nil {
			vm.Author = rev.Author.Nickname
		}
		out = append(out, vm)
	}
	return out
}
