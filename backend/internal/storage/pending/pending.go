// Package pending keeps registrations that are waiting for their OTP.
//
// Expiry is lazy: Get still returns an entry whose OTP window has passed so
// the caller can tell "expired" from "never registered". Entries are only
// forgotten once they are older than expires + grace.
package pending

import (
	"context"

	"github.com/vpportal/vpportal/shared/domain"
	"github.com/vpportal/vpportal/shared/errors"
)

var ErrNotFound = errors.NotFound("Pending registration not found")

type Store interface {
	// Put stores p under its normalized email, replacing any previous entry.
	Put(ctx context.Context, p domain.PendingRegistration) error
	Get(ctx context.Context, email domain.Email) (domain.PendingRegistration, error)
	Delete(ctx context.Context, email domain.Email) error
}
