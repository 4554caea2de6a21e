package api

import "github.com/vpportal/vpportal/shared/domain"

type CreateRequestRequest struct {
	Subject     string `json:"subject" validate:"required"`
	Description string `json:"description" validate:"required"`
}

type UpdateRequestRequest struct {
	Subject     string `json:"subject" validate:"required"`
	Description string `json:"description" validate:"required"`
}

type RequestResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    domain.Request `json:"data"`
}

type RequestListResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Data    []domain.Request `json:"data"`
}
