package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
)

// UserRepo provides data access to operator accounts. Login runs after
// tenant resolution, so every lookup is tenant scoped.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo returns a UserRepo bound to the provided database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userCols = `id, tenant_id, email, password_hash, role, is_active, created_at`

// Create inserts a new user under the context tenant.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (tenant_id, email, password_hash, role, is_active) VALUES (?, ?, ?, ?, 1)`,
		tid, u.Email, u.PasswordHash, u.Role)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	u.TenantID = tid
	return nil
}

// GetByID fetches a user within the context tenant.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = ? AND tenant_id = ?`, id, tid)
	return scanUser(row)
}

// GetByEmail fetches a user by email within the context tenant.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE email = ? AND tenant_id = ?`, email, tid)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("user")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// TokenRepo stores refresh-token hashes. Only the SHA-256 of the raw token
// is persisted so a leaked table cannot be replayed.
type TokenRepo struct {
	db *sql.DB
}

// NewTokenRepo returns a TokenRepo bound to the provided database.
func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

// Store persists a refresh token hash for a user.
func (r *TokenRepo) Store(ctx context.Context, userID uint64, hash string, expiresAt time.Time) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (tenant_id, user_id, token_hash, expires_at) VALUES (?, ?, ?, ?)`,
		tid, userID, hash, expiresAt.UTC())
	return err
}

// Consume looks up a non-expired token hash and deletes it atomically,
// returning the owning user id. Used for refresh rotation and logout.
func (r *TokenRepo) Consume(ctx context.Context, hash string) (uint64, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return 0, err
	}
	var userID uint64
	err = r.db.QueryRowContext(ctx,
		`SELECT user_id FROM refresh_tokens
		 WHERE token_hash = ? AND tenant_id = ? AND expires_at > UTC_TIMESTAMP()`,
		hash, tid).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.AccessDeniedf("invalid refresh token")
	}
	if err != nil {
		return 0, err
	}
	_, err = r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE token_hash = ? AND tenant_id = ?`, hash, tid)
	if err != nil {
		return 0, err
	}
	return userID, nil
}

// Peek validates a token hash without rotating it. Used by refresh-access.
func (r *TokenRepo) Peek(ctx context.Context, hash string) (uint64, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return 0, err
	}
	var userID uint64
	err = r.db.QueryRowContext(ctx,
		`SELECT user_id FROM refresh_tokens
		 WHERE token_hash = ? AND tenant_id = ? AND expires_at > UTC_TIMESTAMP()`,
		hash, tid).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.AccessDeniedf("invalid refresh token")
	}
	return userID, err
}
