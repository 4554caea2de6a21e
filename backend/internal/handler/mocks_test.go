package handler

import (
	"context"

	"github.com/vpportal/vpportal/backend/internal/service"
	"github.com/vpportal/vpportal/shared/domain"
)

type MockAuthService struct {
	MockRegister       func(ctx context.Context, input service.RegisterInput) (domain.Email, error)
	MockVerifyEmail    func(ctx context.Context, email domain.Email, otp string) (string, domain.User, error)
	MockResendOTP      func(ctx context.Context, userId domain.UserId, email domain.Email) error
	MockLogin          func(ctx context.Context, email domain.Email, password domain.Password) (string, domain.User, error)
	MockMe             func(ctx context.Context, userId domain.UserId) (domain.User, error)
	MockForgotPassword func(ctx context.Context, email domain.Email, origin string) error
	MockResetPassword  func(ctx context.Context, rawToken string, password domain.Password) (string, error)
}

func (m *MockAuthService) Register(ctx context.Context, input service.RegisterInput) (domain.Email, error) {
	if m.MockRegister != nil {
		return m.MockRegister(ctx, input)
	}
	return input.Email, nil
}

func (m *MockAuthService) VerifyEmail(ctx context.Context, email domain.Email, otp string) (string, domain.User, error) {
	if m.MockVerifyEmail != nil {
		return m.MockVerifyEmail(ctx, email, otp)
	}
	return "", domain.User{}, nil
}

func (m *MockAuthService) ResendOTP(ctx context.Context, userId domain.UserId, email domain.Email) error {
	if m.MockResendOTP != nil {
		return m.MockResendOTP(ctx, userId, email)
	}
	return nil
}

func (m *MockAuthService) Login(ctx context.Context, email domain.Email, password domain.Password) (string, domain.User, error) {
	if m.MockLogin != nil {
		return m.MockLogin(ctx, email, password)
	}
	return "", domain.User{}, nil
}

func (m *MockAuthService) Me(ctx context.Context, userId domain.UserId) (domain.User, error) {
	if m.MockMe != nil {
		return m.MockMe(ctx, userId)
	}
	return domain.User{Id: userId}, nil
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email domain.Email, origin string) error {
	if m.MockForgotPassword != nil {
		return m.MockForgotPassword(ctx, email, origin)
	}
	return nil
}

func (m *MockAuthService) ResetPassword(ctx context.Context, rawToken string, password domain.Password) (string, error) {
	if m.MockResetPassword != nil {
		return m.MockResetPassword(ctx, rawToken, password)
	}
	return "", nil
}

type MockRequestService struct {
	MockMyRequests    func(ctx context.Context, owner domain.UserId) ([]domain.Request, error)
	MockRequest       func(ctx context.Context, owner domain.UserId, id domain.RequestId) (domain.Request, error)
	MockCreateRequest func(ctx context.Context, owner domain.UserId, subject, description string) (domain.Request, error)
	MockUpdateRequest func(ctx context.Context, owner domain.UserId, id domain.RequestId, subject, description string) (domain.Request, error)
}

func (m *MockRequestService) MyRequests(ctx context.Context, owner domain.UserId) ([]domain.Request, error) {
	if m.MockMyRequests != nil {
		return m.MockMyRequests(ctx, owner)
	}
	return []domain.Request{}, nil
}

func (m *MockRequestService) Request(ctx context.Context, owner domain.UserId, id domain.RequestId) (domain.Request, error) {
	if m.MockRequest != nil {
		return m.MockRequest(ctx, owner, id)
	}
	return domain.Request{Id: id, Owner: owner}, nil
}

func (m *MockRequestService) CreateRequest(ctx context.Context, owner domain.UserId, subject, description string) (domain.Request, error) {
	if m.MockCreateRequest != nil {
		return m.MockCreateRequest(ctx, owner, subject, description)
	}
	return domain.Request{Owner: owner, Subject: subject, Description: description}, nil
}

func (m *MockRequestService) UpdateRequest(ctx context.Context, owner domain.UserId, id domain.RequestId, subject, description string) (domain.Request, error) {
	if m.MockUpdateRequest != nil {
		return m.MockUpdateRequest(ctx, owner, id, subject, description)
	}
	return domain.Request{Id: id, Owner: owner, Subject: subject, Description: description}, nil
}

type MockPinger struct {
	err error
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.err
}

var (
	_ service.AuthService    = (*MockAuthService)(nil)
	_ service.RequestService = (*MockRequestService)(nil)
)
