package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/vpportal/vpportal/backend/internal/service/utils"
	"github.com/vpportal/vpportal/shared/domain"
	"github.com/vpportal/vpportal/shared/errors"
	"github.com/vpportal/vpportal/shared/logger"
	sharedutils "github.com/vpportal/vpportal/shared/utils"
)

const (
	MaxSubjectLength     = 200
	MaxDescriptionLength = 5000

	requestIdAttempts = 3
)

var (
	ErrRequestNotFound    = errors.NotFound("Request not found")
	ErrRequestNotEditable = errors.Conflict("Only pending requests can be edited")
	ErrSubjectRequired    = errors.BadRequest("Subject is required")
	ErrDescriptionMissing = errors.BadRequest("Description is required")
)

type RequestService interface {
	MyRequests(ctx context.Context, owner domain.UserId) ([]domain.Request, error)
	Request(ctx context.Context, owner domain.UserId, id domain.RequestId) (domain.Request, error)
	CreateRequest(ctx context.Context, owner domain.UserId, subject, description string) (domain.Request, error)
	UpdateRequest(ctx context.Context, owner domain.UserId, id domain.RequestId, subject, description string) (domain.Request, error)
}

type Requests struct {
	storage RequestStorage
	now     func() time.Time
}

func NewRequests(storage RequestStorage) *Requests {
	return &Requests{storage: storage, now: time.Now}
}

var _ RequestService = (*Requests)(nil)

func (s *Requests) MyRequests(ctx context.Context, owner domain.UserId) ([]domain.Request, error) {
	requests, err := s.storage.RequestsByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []domain.Request{}
	}
	return requests, nil
}

// Request hides requests of other users behind the same 404 as missing ones.
func (s *Requests) Request(ctx context.Context, owner domain.UserId, id domain.RequestId) (domain.Request, error) {
	request, err := s.storage.Request(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return domain.Request{}, ErrRequestNotFound
		}
		return domain.Request{}, err
	}
	if request.Owner != owner {
		return domain.Request{}, ErrRequestNotFound
	}
	return request, nil
}

func (s *Requests) CreateRequest(ctx context.Context, owner domain.UserId, subject, description string) (domain.Request, error) {
	update, err := cleanRequestText(subject, description)
	if err != nil {
		return domain.Request{}, err
	}

	now := s.now().UTC()
	request := domain.Request{
		Subject:     update.Subject,
		Description: update.Description,
		Status:      domain.StatusPending,
		Owner:       owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for attempt := 1; ; attempt++ {
		request.RequestId = sharedutils.GenerateRequestId()
		created, err := s.storage.CreateRequest(ctx, request)
		if err == nil {
			return created, nil
		}
		if !errors.IsConflict(err) || attempt == requestIdAttempts {
			return domain.Request{}, err
		}
		logger.Log.Warn("request id collision, retrying", "request_id", request.RequestId, "attempt", attempt)
	}
}

// UpdateRequest edits subject and description. Status is never changed by
// the owner and only pending requests can be edited.
func (s *Requests) UpdateRequest(ctx context.Context, owner domain.UserId, id domain.RequestId, subject, description string) (domain.Request, error) {
	current, err := s.Request(ctx, owner, id)
	if err != nil {
		return domain.Request{}, err
	}
	if current.Status != domain.StatusPending {
		return domain.Request{}, ErrRequestNotEditable
	}

	update, err := cleanRequestText(subject, description)
	if err != nil {
		return domain.Request{}, err
	}

	updated, err := s.storage.UpdateRequest(ctx, id, owner, update, s.now().UTC())
	if err != nil {
		switch {
		case errors.IsNotFound(err):
			return domain.Request{}, ErrRequestNotFound
		case errors.IsConflict(err):
			return domain.Request{}, ErrRequestNotEditable
		}
		return domain.Request{}, err
	}
	return updated, nil
}

func cleanRequestText(subject, description string) (domain.RequestUpdate, error) {
	subject = utils.SanitizeText(subject)
	description = utils.SanitizeText(description)

	if subject == "" {
		return domain.RequestUpdate{}, ErrSubjectRequired
	}
	if description == "" {
		return domain.RequestUpdate{}, ErrDescriptionMissing
	}
	if utf8.RuneCountInString(subject) > MaxSubjectLength {
		return domain.RequestUpdate{}, errors.BadRequest(fmt.Sprintf("Subject must be at most %d characters", MaxSubjectLength))
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return domain.RequestUpdate{}, errors.BadRequest(fmt.Sprintf("Description must be at most %d characters", MaxDescriptionLength))
	}
	return domain.RequestUpdate{Subject: subject, Description: description}, nil
}
