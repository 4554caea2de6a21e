package service

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/vpportal/vpportal/shared/domain"
	internal_errors "github.com/vpportal/vpportal/shared/errors"
)

// --- Mocks ---

type MockUserStorage struct {
	CreateUserFunc        func(ctx context.Context, user domain.User) (domain.UserId, error)
	UserByEmailFunc       func(ctx context.Context, email domain.Email) (domain.User, error)
	UserByIdFunc          func(ctx context.Context, id domain.UserId) (domain.User, error)
	MarkEmailVerifiedFunc func(ctx context.Context, id domain.UserId) error
	SetResetTokenFunc     func(ctx context.Context, id domain.UserId, tokenHash string, expires time.Time) error
	UserByResetTokenFunc  func(ctx context.Context, tokenHash string, now time.Time) (domain.User, error)
	ConsumeResetTokenFunc func(ctx context.Context, id domain.UserId, tokenHash string, now time.Time, passHash string) error
}

var errUserNotFoundInStorage = &internal_errors.ErrorWithStatusCode{Message: "User not found", StatusCode: http.StatusNotFound}

func (m *MockUserStorage) CreateUser(ctx context.Context, user domain.User) (domain.UserId, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, user)
	}
	return "u1", nil
}

func (m *MockUserStorage) UserByEmail(ctx context.Context, email domain.Email) (domain.User, error) {
	if m.UserByEmailFunc != nil {
		return m.UserByEmailFunc(ctx, email)
	}
	return domain.User{}, errUserNotFoundInStorage
}

func (m *MockUserStorage) UserById(ctx context.Context, id domain.UserId) (domain.User, error) {
	if m.UserByIdFunc != nil {
		return m.UserByIdFunc(ctx, id)
	}
	return domain.User{}, errUserNotFoundInStorage
}

func (m *MockUserStorage) MarkEmailVerified(ctx context.Context, id domain.UserId) error {
	if m.MarkEmailVerifiedFunc != nil {
		return m.MarkEmailVerifiedFunc(ctx, id)
	}
	return nil
}

func (m *MockUserStorage) SetResetToken(ctx context.Context, id domain.UserId, tokenHash string, expires time.Time) error {
	if m.SetResetTokenFunc != nil {
		return m.SetResetTokenFunc(ctx, id, tokenHash, expires)
	}
	return nil
}

func (m *MockUserStorage) UserByResetToken(ctx context.Context, tokenHash string, now time.Time) (domain.User, error) {
	if m.UserByResetTokenFunc != nil {
		return m.UserByResetTokenFunc(ctx, tokenHash, now)
	}
	return domain.User{}, errUserNotFoundInStorage
}

func (m *MockUserStorage) ConsumeResetToken(ctx context.Context, id domain.UserId, tokenHash string, now time.Time, passHash string) error {
	if m.ConsumeResetTokenFunc != nil {
		return m.ConsumeResetTokenFunc(ctx, id, tokenHash, now, passHash)
	}
	return nil
}

// newUserTable wires a MockUserStorage to a map so multi-step flows can be
// exercised. Emails are unique, like the real stores.
func newUserTable() (*MockUserStorage, map[domain.UserId]*domain.User) {
	var mu sync.Mutex
	users := map[domain.UserId]*domain.User{}
	nextId := 0

	byEmail := func(email domain.Email) *domain.User {
		for _, u := range users {
			if u.Email == email {
				return u
			}
		}
		return nil
	}

	return &MockUserStorage{
		CreateUserFunc: func(ctx context.Context, user domain.User) (domain.UserId, error) {
			mu.Lock()
			defer mu.Unlock()
			if byEmail(user.Email) != nil {
				return "", internal_errors.Conflict("duplicate email")
			}
			nextId++
			user.Id = "u" + strconv.Itoa(nextId)
			users[user.Id] = &user
			return user.Id, nil
		},
		UserByEmailFunc: func(ctx context.Context, email domain.Email) (domain.User, error) {
			mu.Lock()
			defer mu.Unlock()
			if u := byEmail(email); u != nil {
				return *u, nil
			}
			return domain.User{}, errUserNotFoundInStorage
		},
		UserByIdFunc: func(ctx context.Context, id domain.UserId) (domain.User, error) {
			mu.Lock()
			defer mu.Unlock()
			if u, ok := users[id]; ok {
				return *u, nil
			}
			return domain.User{}, errUserNotFoundInStorage
		},
		MarkEmailVerifiedFunc: func(ctx context.Context, id domain.UserId) error {
			mu.Lock()
			defer mu.Unlock()
			u, ok := users[id]
			if !ok {
				return errUserNotFoundInStorage
			}
			u.EmailVerified = true
			return nil
		},
		SetResetTokenFunc: func(ctx context.Context, id domain.UserId, tokenHash string, expires time.Time) error {
			mu.Lock()
			defer mu.Unlock()
			u, ok := users[id]
			if !ok {
				return errUserNotFoundInStorage
			}
			u.ResetTokenHash, u.ResetExpires = tokenHash, expires
			return nil
		},
		UserByResetTokenFunc: func(ctx context.Context, tokenHash string, now time.Time) (domain.User, error) {
			mu.Lock()
			defer mu.Unlock()
			for _, u := range users {
				if tokenHash != "" && u.ResetTokenHash == tokenHash && u.ResetExpires.After(now) {
					return *u, nil
				}
			}
			return domain.User{}, errUserNotFoundInStorage
		},
		ConsumeResetTokenFunc: func(ctx context.Context, id domain.UserId, tokenHash string, now time.Time, passHash string) error {
			mu.Lock()
			defer mu.Unlock()
			u, ok := users[id]
			if !ok || tokenHash == "" || u.ResetTokenHash != tokenHash || !u.ResetExpires.After(now) {
				return errUserNotFoundInStorage
			}
			u.PassHash = passHash
			u.ResetTokenHash, u.ResetExpires = "", time.Time{}
			return nil
		},
	}, users
}

type sentEmail struct {
	To, Subject, Body string
}

type MockEmail struct {
	SendFunc      func(recipientEmail, subject, body string) error
	IsCorrectFunc func(email domain.Email) error

	mu   sync.Mutex
	sent []sentEmail
}

func (m *MockEmail) Send(recipientEmail, subject, body string) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(recipientEmail, subject, body); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentEmail{recipientEmail, subject, body})
	return nil
}

func (m *MockEmail) IsCorrect(email domain.Email) error {
	if m.IsCorrectFunc != nil {
		return m.IsCorrectFunc(email)
	}
	return nil
}

func (m *MockEmail) last() sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentEmail{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *MockEmail) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type MockJwt struct {
	NewTokenFunc func(user domain.User) (string, error)
}

func (m *MockJwt) NewToken(user domain.User) (string, error) {
	if m.NewTokenFunc != nil {
		return m.NewTokenFunc(user)
	}
	return "token-" + user.Id, nil
}

type MockRequestStorage struct {
	CreateRequestFunc   func(ctx context.Context, request domain.Request) (domain.Request, error)
	RequestFunc         func(ctx context.Context, id domain.RequestId) (domain.Request, error)
	RequestsByOwnerFunc func(ctx context.Context, owner domain.UserId) ([]domain.Request, error)
	UpdateRequestFunc   func(ctx context.Context, id domain.RequestId, owner domain.UserId, update domain.RequestUpdate, now time.Time) (domain.Request, error)
}

func (m *MockRequestStorage) CreateRequest(ctx context.Context, request domain.Request) (domain.Request, error) {
	if m.CreateRequestFunc != nil {
		return m.CreateRequestFunc(ctx, request)
	}
	request.Id = "r1"
	return request, nil
}

func (m *MockRequestStorage) Request(ctx context.Context, id domain.RequestId) (domain.Request, error) {
	if m.RequestFunc != nil {
		return m.RequestFunc(ctx, id)
	}
	return domain.Request{}, internal_errors.NotFound("Request not found")
}

func (m *MockRequestStorage) RequestsByOwner(ctx context.Context, owner domain.UserId) ([]domain.Request, error) {
	if m.RequestsByOwnerFunc != nil {
		return m.RequestsByOwnerFunc(ctx, owner)
	}
	return nil, nil
}

func (m *MockRequestStorage) UpdateRequest(ctx context.Context, id domain.RequestId, owner domain.UserId, update domain.RequestUpdate, now time.Time) (domain.Request, error) {
	if m.UpdateRequestFunc != nil {
		return m.UpdateRequestFunc(ctx, id, owner, update, now)
	}
	return domain.Request{Id: id, Owner: owner, Subject: update.Subject, Description: update.Description, Status: domain.StatusPending, UpdatedAt: now}, nil
}
