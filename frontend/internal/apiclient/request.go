package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/vpportal/vpportal/shared/api"
	"github.com/vpportal/vpportal/shared/domain"
)

// === Request Methods ===

func (c *APIClient) MyRequests(ctx context.Context, token string) ([]domain.Request, error) {
	var response api.RequestListResponse
	if err := c.do(ctx, http.MethodGet, "/requests/me", token, nil, &response); err != nil {
		return nil, err
	}
	if response.Data == nil {
		return []domain.Request{}, nil
	}
	return response.Data, nil
}

func (c *APIClient) GetRequest(ctx context.Context, token, id string) (domain.Request, error) {
	var response api.RequestResponse
	err := c.do(ctx, http.MethodGet, "/requests/"+url.PathEscape(id), token, nil, &response)
	return response.Data, err
}

func (c *APIClient) CreateRequest(ctx context.Context, token, subject, description string) (domain.Request, error) {
	var response api.RequestResponse
	body := api.CreateRequestRequest{Subject: subject, Description: description}
	err := c.do(ctx, http.MethodPost, "/requests", token, body, &response)
	return response.Data, err
}

func (c *APIClient) UpdateRequest(ctx context.Context, token, id, subject, description string) (domain.Request, error) {
	var response api.RequestResponse
	body := api.UpdateRequestRequest{Subject: subject, Description: description}
	err := c.do(ctx, http.MethodPut, "/requests/"+url.PathEscape(id), token, body, &response)
	return response.Data, err
}
