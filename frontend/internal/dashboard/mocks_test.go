package dashboard

import (
	"context"
	"sync/atomic"

	"github.com/vpportal/vpportal/shared/domain"
)

type MockClient struct {
	MockMe            func(ctx context.Context, token string) (domain.UserView, error)
	MockMyRequests    func(ctx context.Context, token string) ([]domain.Request, error)
	MockCreateRequest func(ctx context.Context, token, subject, description string) (domain.Request, error)
	MockUpdateRequest func(ctx context.Context, token, id, subject, description string) (domain.Request, error)
}

func (m *MockClient) Me(ctx context.Context, token string) (domain.UserView, error) {
	if m.MockMe != nil {
		return m.MockMe(ctx, token)
	}
	return domain.UserView{Id: "u1", Name: "Asha", Email: "asha@woxsen.edu.in"}, nil
}

func (m *MockClient) MyRequests(ctx context.Context, token string) ([]domain.Request, error) {
	if m.MockMyRequests != nil {
		return m.MockMyRequests(ctx, token)
	}
	return []domain.Request{}, nil
}

func (m *MockClient) CreateRequest(ctx context.Context, token, subject, description string) (domain.Request, error) {
	if m.MockCreateRequest != nil {
		return m.MockCreateRequest(ctx, token, subject, description)
	}
	panic("MockCreateRequest not set")
}

func (m *MockClient) UpdateRequest(ctx context.Context, token, id, subject, description string) (domain.Request, error) {
	if m.MockUpdateRequest != nil {
		return m.MockUpdateRequest(ctx, token, id, subject, description)
	}
	panic("MockUpdateRequest not set")
}

type MockSessions struct {
	cleared atomic.Int32
}

func (m *MockSessions) Clear() error {
	m.cleared.Add(1)
	return nil
}
