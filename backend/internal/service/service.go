package service

import (
	"context"
	"time"

	"github.com/vpportal/vpportal/shared/domain"
)

type UserStorage interface {
	// CreateUser fails with a 409 error when the email is taken.
	CreateUser(ctx context.Context, user domain.User) (domain.UserId, error)
	UserByEmail(ctx context.Context, email domain.Email) (domain.User, error)
	UserById(ctx context.Context, id domain.UserId) (domain.User, error)
	MarkEmailVerified(ctx context.Context, id domain.UserId) error
	SetResetToken(ctx context.Context, id domain.UserId, tokenHash string, expires time.Time) error
	// UserByResetToken only matches tokens that are still valid at now.
	UserByResetToken(ctx context.Context, tokenHash string, now time.Time) (domain.User, error)
	// ConsumeResetToken sets the new password and clears the token in one
	// conditional write. It returns a 404 error when the token no longer
	// matches, so a token can be used once.
	ConsumeResetToken(ctx context.Context, id domain.UserId, tokenHash string, now time.Time, passHash string) error
}

type RequestStorage interface {
	CreateRequest(ctx context.Context, request domain.Request) (domain.Request, error)
	Request(ctx context.Context, id domain.RequestId) (domain.Request, error)
	// RequestsByOwner returns newest first.
	RequestsByOwner(ctx context.Context, owner domain.UserId) ([]domain.Request, error)
	// UpdateRequest only touches a pending request of owner: 404 when the
	// request is missing or foreign, 409 when it is no longer pending.
	UpdateRequest(ctx context.Context, id domain.RequestId, owner domain.UserId, update domain.RequestUpdate, now time.Time) (domain.Request, error)
}

type PendingStore interface {
	Put(ctx context.Context, p domain.PendingRegistration) error
	Get(ctx context.Context, email domain.Email) (domain.PendingRegistration, error)
	Delete(ctx context.Context, email domain.Email) error
}

type Email interface {
	Send(recipientEmail, subject, body string) error
	IsCorrect(email domain.Email) error
}

type Jwt interface {
	NewToken(user domain.User) (string, error)
}
