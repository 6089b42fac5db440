package auth

import (
	"context"
	"encoding/gob"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"

	"camelwiki/internal/models"
)

const (
	sessionName = "camelwiki-session"
	identityKey = "identity"
)

// ErrInvalidCredentials is returned by Login for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

func init() {
	gob.Register(&models.Identity{})
}

type contextKey struct{}

// Service is the local authentication provider. It keeps the signed-in
// identity in a cookie session.
type Service struct {
	Repo          *Repository
	store         *sessions.CookieStore
	secureCookies bool
}

// NewService creates a new authentication service.
func NewService(repo *Repository, sessionKey string, secureCookies bool) (*Service, error) {
	if len(sessionKey) < 32 {
		return nil, errors.New("session key must be at least 32 characters long")
	}
	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options.HttpOnly = true
	store.Options.Path = "/"
	store.Options.SameSite = http.SameSiteLaxMode
	return &Service{Repo: repo, store: store, secureCookies: secureCookies}, nil
}

// Registration holds the fields of a new local account.
type Registration struct {
	Username    string
	DisplayName string
	Email       string
	Password    string
}

// Validate checks the registration fields.
func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username,
			validation.Required.Error("username is required"),
			validation.Length(3, 64),
			validation.Match(usernamePattern).Error("username may only contain letters, digits, '.', '_' and '-'"),
		),
		validation.Field(&r.DisplayName, validation.Length(0, 100)),
		validation.Field(&r.Email, is.EmailFormat),
		validation.Field(&r.Password,
			validation.Required.Error("password is required"),
			validation.Length(8, 128).Error("password must be 8-128 characters"),
		),
	)
}

// RegisterUser creates a new local account.
func (s *Service) RegisterUser(ctx context.Context, reg Registration) (*models.Account, error) {
	return Register(ctx, s.Repo, reg)
}

// Register validates reg and stores it as a new local account with a bcrypt
// password hash.
func Register(ctx context.Context, repo *Repository, reg Registration) (*models.Account, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	if reg.DisplayName == "" {
		reg.DisplayName = reg.Username
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		Username:     reg.Username,
		DisplayName:  reg.DisplayName,
		Email:        reg.Email,
		PasswordHash: string(hashedPassword),
	}
	if err := repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Authenticate checks a username and password against the local accounts.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.Identity, error) {
	account, err := s.Repo.FindAccount(ctx, username)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &models.Identity{
		Provider: ProviderLocal,
		Subject:  account.Username,
		Nickname: account.DisplayName,
		Email:    account.Email,
	}, nil
}

// Login authenticates a user and stores the identity in the session.
func (s *Service) Login(w http.ResponseWriter, r *http.Request, username, password string) (*models.Identity, error) {
	identity, err := s.Authenticate(r.Context(), username, password)
	if err != nil {
		return nil, err
	}

	session, _ := s.store.Get(r, sessionName)
	session.Values[identityKey] = identity
	session.Options.Secure = s.isSecure(r)
	if err := session.Save(r, w); err != nil {
		return nil, err
	}
	return identity, nil
}

// Logout removes the identity from the session.
func (s *Service) Logout(w http.ResponseWriter, r *http.Request) error {
	session, _ := s.store.Get(r, sessionName)
	delete(session.Values, identityKey)
	session.Options.Secure = s.isSecure(r)
	return session.Save(r, w)
}

// CurrentIdentity returns the signed-in identity, or nil.
func (s *Service) CurrentIdentity(r *http.Request) *models.Identity {
	session, _ := s.store.Get(r, sessionName)
	if identity, ok := session.Values[identityKey].(*models.Identity); ok {
		return identity
	}
	return nil
}

// LoginURL returns the URL of the login form, coming back to returnPath afterwards.
func (s *Service) LoginURL(returnPath string) string {
	return "/login?return=" + url.QueryEscape(SafeReturnPath(returnPath))
}

// LogoutURL returns the URL that signs out and then goes to returnPath.
func (s *Service) LogoutURL(returnPath string) string {
	return "/logout?return=" + url.QueryEscape(SafeReturnPath(returnPath))
}

// WithIdentity adds the current identity to the request context.
func (s *Service) WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity := s.CurrentIdentity(r); identity != nil {
			r = r.WithContext(ContextWithIdentity(r.Context(), identity))
		}
		next.ServeHTTP(w, r)
	})
}

// Set Secure flag based on request scheme or X-Forwarded-Proto header,
// so cookies behave behind reverse proxies.
func (s *Service) isSecure(r *http.Request) bool {
	return s.secureCookies || r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

// ContextWithIdentity returns a copy of ctx carrying identity.
func ContextWithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// IdentityFromContext returns the identity stored by WithIdentity, or nil.
func IdentityFromContext(ctx context.Context) *models.Identity {
	identity, _ := ctx.Value(contextKey{}).(*models.Identity)
	return identity
}

// SafeReturnPath only lets local absolute paths through; anything else maps to "/".
func SafeReturnPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	return p
}
