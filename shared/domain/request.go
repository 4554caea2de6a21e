package domain

import "time"

type Request struct {
	Id          RequestId     `json:"id"`
	RequestId   string        `json:"requestId"`
	Subject     string        `json:"subject"`
	Description string        `json:"description"`
	Status      RequestStatus `json:"status"`
	Owner       UserId        `json:"owner"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type RequestUpdate struct {
	Subject     string
	Description string
}
