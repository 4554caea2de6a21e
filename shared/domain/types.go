package domain

type (
	Email    = string
	Password = string
	UserId   = string
	Role     = string

	RequestId     = string
	RequestStatus = string
)

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)
