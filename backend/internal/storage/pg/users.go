package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vpportal/vpportal/shared/domain"
	internal_errors "github.com/vpportal/vpportal/shared/errors"
	sharedpg "github.com/vpportal/vpportal/shared/storage/pg"
)

var (
	errUserNotFound  = internal_errors.NotFound("User not found")
	errEmailTaken    = internal_errors.Conflict("User already exists")
	errTokenNotFound = internal_errors.NotFound("Reset token not found")
)

const userColumns = `id, name, email, password_hash, role, school, phone, email_verified,
	reset_token_hash, reset_expires_at, created_at`

// =========================================================================
// Public Methods (satisfy the service.UserStorage interface)
// =========================================================================

// CreateUser inserts a new user. The unique email index turns a concurrent
// insert for the same address into a 409.
func (s *Storage) CreateUser(ctx context.Context, user domain.User) (domain.UserId, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var id domain.UserId
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.createUser(ctx, tx, user)
		return err
	})
	return id, err
}

func (s *Storage) UserByEmail(ctx context.Context, email domain.Email) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email))
}

func (s *Storage) UserById(ctx context.Context, id domain.UserId) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return domain.User{}, errUserNotFound
	}
	return scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

func (s *Storage) MarkEmailVerified(ctx context.Context, id domain.UserId) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return errUserNotFound
	}
	result, err := s.db.ExecContext(ctx, "UPDATE users SET email_verified = TRUE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}
	return expectOneRow(result, errUserNotFound)
}

// SetResetToken stores the hash of a reset token. An empty hash clears it.
func (s *Storage) SetResetToken(ctx context.Context, id domain.UserId, tokenHash string, expires time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return errUserNotFound
	}
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET reset_token_hash = $1, reset_expires_at = $2 WHERE id = $3",
		nullString(tokenHash), nullTime(expires), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}
	return expectOneRow(result, errUserNotFound)
}

func (s *Storage) UserByResetToken(ctx context.Context, tokenHash string, now time.Time) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	user, err := scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE reset_token_hash = $1 AND reset_expires_at > $2",
		tokenHash, now,
	))
	if internal_errors.IsNotFound(err) {
		return domain.User{}, errTokenNotFound
	}
	return user, err
}

// ConsumeResetToken sets the password only if the token still matches and
// has not expired, clearing it in the same statement.
func (s *Storage) ConsumeResetToken(ctx context.Context, id domain.UserId, tokenHash string, now time.Time, passHash string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return errTokenNotFound
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.consumeResetToken(ctx, tx, id, tokenHash, now, passHash)
	})
}

// =========================================================================
// Internal Methods
// =========================================================================

func (s *Storage) createUser(ctx context.Context, q sharedpg.Querier, user domain.User) (domain.UserId, error) {
	id := uuid.New().String()
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
        INSERT INTO users(id, name, email, password_hash, role, school, phone, email_verified, created_at)
        VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, user.Name, user.Email, user.PassHash, user.Role, user.School, user.Phone, user.EmailVerified, createdAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", errEmailTaken
		}
		return "", fmt.Errorf("failed to insert user: %w", err)
	}
	return id, nil
}

func (s *Storage) consumeResetToken(ctx context.Context, q sharedpg.Querier, id domain.UserId, tokenHash string, now time.Time, passHash string) error {
	result, err := q.ExecContext(ctx, `
        UPDATE users
        SET password_hash = $1, reset_token_hash = NULL, reset_expires_at = NULL
        WHERE id = $2 AND reset_token_hash = $3 AND reset_expires_at > $4`,
		passHash, id, tokenHash, now,
	)
	if err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	return expectOneRow(result, errTokenNotFound)
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		user         domain.User
		resetHash    sql.NullString
		resetExpires sql.NullTime
	)
	err := row.Scan(&user.Id, &user.Name, &user.Email, &user.PassHash, &user.Role, &user.School, &user.Phone,
		&user.EmailVerified, &resetHash, &resetExpires, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, errUserNotFound
		}
		return domain.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	user.ResetTokenHash = resetHash.String
	if resetExpires.Valid {
		user.ResetExpires = resetExpires.Time.UTC()
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

// expectOneRow maps an update that touched no rows to notFound.
func expectOneRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
