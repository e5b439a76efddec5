package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists accounts and refresh sessions in Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

// CreateUser inserts a new account.
func (s PGStore) CreateUser(ctx context.Context, name, email, passwordHash, role string) (User, error) {
	var user User
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, email, role, created_at, updated_at`,
		name, email, passwordHash, role,
	).Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// GetUserByEmail loads an account with its password hash for login.
func (s PGStore) GetUserByEmail(ctx context.Context, email string) (Credential, error) {
	var cred Credential
	err := s.Pool.QueryRow(ctx, `
		SELECT id, name, email, role, password_hash, created_at, updated_at
		FROM users WHERE email = $1`, email,
	).Scan(&cred.ID, &cred.Name, &cred.Email, &cred.Role, &cred.PasswordHash, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, fmt.Errorf("user not found: %w", err)
		}
		return Credential{}, fmt.Errorf("get user by email: %w", err)
	}
	return cred, nil
}

// GetUserByID loads the safe account fields.
func (s PGStore) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	var user User
	err := s.Pool.QueryRow(ctx, `
		SELECT id, name, email, role, created_at, updated_at
		FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

// CreateSession stores a hashed refresh token.
func (s PGStore) CreateSession(ctx context.Context, userID uuid.UUID, tokenHash, userAgent, ip string, expiresAt time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO sessions (user_id, refresh_token, user_agent, ip, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		userID, tokenHash, userAgent, ip, expiresAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSessionByToken resolves a hashed refresh token to its session and role.
func (s PGStore) GetSessionByToken(ctx context.Context, tokenHash string) (Session, error) {
	var session Session
	err := s.Pool.QueryRow(ctx, `
		SELECT s.id, s.user_id, u.role, s.expires_at
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.refresh_token = $1`, tokenHash,
	).Scan(&session.ID, &session.UserID, &session.Role, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// RotateSessionToken swaps the stored hash for a new one.
func (s PGStore) RotateSessionToken(ctx context.Context, sessionID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE sessions SET refresh_token = $2, expires_at = $3 WHERE id = $1`,
		sessionID, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteSessionByToken revokes a session.
func (s PGStore) DeleteSessionByToken(ctx context.Context, tokenHash string) error {
	_, err := s.Pool.Exec(ctx, "DELETE FROM sessions WHERE refresh_token = $1", tokenHash)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
