package view

import (
	"timecapsule/pkg/aggregate"
	"timecapsule/pkg/models"
)

// CreateCapsuleResponse is returned by POST /v1/capsules. MemberStatus is
// set for collaborative capsules.
type CreateCapsuleResponse struct {
	Capsule      Capsule           `json:"capsule"`
	MemberStatus *models.Partition `json:"member_status,omitempty"`
}

// CreateEntryResponse is returned by POST /v1/capsules/{id}/entries.
type CreateEntryResponse struct {
	Entry Entry `json:"entry"`
}

// TreeResponse is returned by GET /v1/capsules/tree.
type TreeResponse = aggregate.Tree[Capsule]
