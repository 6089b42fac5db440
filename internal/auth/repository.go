package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"camelwiki/internal/database"
	"camelwiki/internal/models"
)

// ProviderLocal is the provider name of accounts stored in the identities table.
const ProviderLocal = "local"

var (
	// ErrAccountNotFound is returned when no local account has the username.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when registering a taken username.
	ErrAccountExists = errors.New("account already exists")
)

// Repository provides access to wiki profiles and local accounts.
type Repository struct {
	DB *database.DB
}

// NewRepository creates a new authentication repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{DB: db}
}

// UpsertProfile returns the profile of the identity, creating it on first use
// and refreshing its nickname and email otherwise. It is safe to call
// concurrently for the same identity.
func (r *Repository) UpsertProfile(ctx context.Context, identity models.Identity) (*models.User, error) {
	nickname := identity.Nickname
	if nickname == "" {
		nickname = identity.Subject
	}

	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(
		"INSERT INTO users (identity, nickname, email, created_at) VALUES (?, ?, ?, ?) ON CONFLICT (identity) DO UPDATE SET nickname = excluded.nickname, email = excluded.email"),
		identity.Key(), nickname, identity.Email, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("error creating profile for %q: %w", identity.Key(), err)
	}

	return r.FindProfile(ctx, identity.Key())
}

// FindProfile finds a profile by its identity key.
func (r *Repository) FindProfile(ctx context.Context, key string) (*models.User, error) {
	var user models.User
	err := r.DB.QueryRowContext(ctx, r.DB.Rebind("SELECT id, identity, nickname, email, created_at FROM users WHERE identity = ?"), key).
		Scan(&user.ID, &user.Identity, &user.Nickname, &user.Email, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("error loading profile %q: %w", key, err)
	}
	return &user, nil
}

// FindAccount finds a local account by username.
func (r *Repository) FindAccount(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	err := r.DB.QueryRowContext(ctx, r.DB.Rebind(
		"SELECT id, provider_user_id, display_name, email, password_hash FROM identities WHERE provider = ? AND provider_user_id = ?"),
		ProviderLocal, username).
		Scan(&account.ID, &account.Username, &account.DisplayName, &account.Email, &account.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading account %q: %w", username, err)
	}
	return &account, nil
}

// CreateAccount inserts a new local account.
func (r *Repository) CreateAccount(ctx context.Context, account *models.Account) error {
	err := r.DB.QueryRowContext(ctx, r.DB.Rebind(
		"INSERT INTO identities (provider, provider_user_id, display_name, email, password_hash) VALUES (?, ?, ?, ?, ?) RETURNING id"),
		ProviderLocal, account.Username, account.DisplayName, account.Email, account.PasswordHash).Scan(&account.ID)
	if database.IsUniqueViolation(err) {
		return ErrAccountExists
	}
	if err != nil {
		return fmt.Errorf("error creating account %q: %w", account.Username, err)
	}
	return nil
}
