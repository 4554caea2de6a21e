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
	errRequestNotFound    = internal_errors.NotFound("Request not found")
	errRequestIdTaken     = internal_errors.Conflict("Request id already exists")
	errRequestNotEditable = internal_errors.Conflict("Only pending requests can be edited")
)

const requestColumns = "id, request_id, subject, description, status, owner_id, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Storage) CreateRequest(ctx context.Context, request domain.Request) (domain.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	request.Id = uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO requests(id, request_id, subject, description, status, owner_id, created_at, updated_at)
        VALUES($1, $2, $3, $4, $5, $6, $7, $8)`,
		request.Id, request.RequestId, request.Subject, request.Description, request.Status, request.Owner,
		request.CreatedAt, request.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Request{}, errRequestIdTaken
		}
		return domain.Request{}, fmt.Errorf("failed to insert request: %w", err)
	}
	return request, nil
}

func (s *Storage) Request(ctx context.Context, id domain.RequestId) (domain.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return domain.Request{}, errRequestNotFound
	}
	return scanRequest(s.db.QueryRowContext(ctx, "SELECT "+requestColumns+" FROM requests WHERE id = $1", id))
}

func (s *Storage) RequestsByOwner(ctx context.Context, owner domain.UserId) ([]domain.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := uuid.Parse(owner); err != nil {
		return []domain.Request{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE owner_id = $1 ORDER BY created_at DESC, id DESC", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	requests := []domain.Request{}
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate requests: %w", err)
	}
	return requests, nil
}

// UpdateRequest changes subject and description of a pending request owned
// by owner. The status check is part of the UPDATE so an approval that lands
// in between is never overwritten.
func (s *Storage) UpdateRequest(ctx context.Context, id domain.RequestId, owner domain.UserId, update domain.RequestUpdate, now time.Time) (domain.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return domain.Request{}, errRequestNotFound
	}
	var updated domain.Request
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		updated, err = s.updateRequest(ctx, tx, id, owner, update, now)
		return err
	})
	return updated, err
}

func (s *Storage) updateRequest(ctx context.Context, q sharedpg.Querier, id domain.RequestId, owner domain.UserId, update domain.RequestUpdate, now time.Time) (domain.Request, error) {
	updated, err := scanRequest(q.QueryRowContext(ctx, `
        UPDATE requests SET subject = $1, description = $2, updated_at = $3
        WHERE id = $4 AND owner_id = $5 AND status = 'pending'
        RETURNING `+requestColumns,
		update.Subject, update.Description, now, id, owner,
	))
	if err == nil || !internal_errors.IsNotFound(err) {
		return updated, err
	}

	// Nothing matched: tell a missing request from a locked one.
	current, err := scanRequest(q.QueryRowContext(ctx, "SELECT "+requestColumns+" FROM requests WHERE id = $1", id))
	if err != nil {
		return domain.Request{}, err
	}
	if current.Owner != owner {
		return domain.Request{}, errRequestNotFound
	}
	return domain.Request{}, errRequestNotEditable
}

func scanRequest(row rowScanner) (domain.Request, error) {
	var request domain.Request
	err := row.Scan(&request.Id, &request.RequestId, &request.Subject, &request.Description, &request.Status,
		&request.Owner, &request.CreatedAt, &request.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Request{}, errRequestNotFound
		}
		return domain.Request{}, fmt.Errorf("failed to scan request: %w", err)
	}
	request.CreatedAt = request.CreatedAt.UTC()
	request.UpdatedAt = request.UpdatedAt.UTC()
	return request, nil
}
