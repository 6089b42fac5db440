package models

// Identity is an authenticated caller as reported by an auth provider.
type Identity struct {
	Provider string
	Subject  string
	Nickname string
	Email    string
}

// Key returns the unique key used to look up the identity's profile.
func (i Identity) Key() string {
	return i.Provider + ":" + i.Subject
}

// Account is a credential record of the local auth provider.
type Account struct {
	ID           int64
	Username     string
	DisplayName  string
	Email        string
	PasswordHash string
}
