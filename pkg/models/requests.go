package models

import "timecapsule/pkg/media"

// CreateCapsuleRequest is the body of POST /v1/capsules.
type CreateCapsuleRequest struct {
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	Content      string      `json:"content,omitempty"`
	Media        []media.Ref `json:"media,omitempty"`
	LockDate     string      `json:"lock_date,omitempty"`
	MemberEmails []Member    `json:"member_emails,omitempty"`
	Type         Kind        `json:"type"`
}

// CreateEntryRequest is the body of POST /v1/capsules/{id}/entries.
type CreateEntryRequest struct {
	Content  string      `json:"content"`
	LockDate string      `json:"lock_date,omitempty"`
	Media    []media.Ref `json:"media,omitempty"`
}

// RegisterUserRequest is the body of POST /v1/users.
type RegisterUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SignRequest is the body of POST /v1/_sign.
type SignRequest struct {
	UserID string `json:"userId"`
}

// SignResponse carries the HMAC signature for a user id.
type SignResponse struct {
	UserID    string `json:"userId"`
	Signature string `json:"signature"`
}

// UploadResponse is returned by a successful media upload.
type UploadResponse struct {
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}
