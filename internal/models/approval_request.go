package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalTTL is how long a pending request stays decidable. A request whose age is
// strictly greater than the TTL is expired; exactly ApprovalTTL is still valid.
const ApprovalTTL = 30 * time.Second

// UnknownUser is recorded when the requesting endpoint cannot be resolved.
const UnknownUser = "unknown"

// RequestStatus is the stored state of an approval request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDenied   RequestStatus = "denied"
	// RequestRejected is set only by the expiry sweep, never by an operator.
	RequestRejected RequestStatus = "rejected"
)

// AgentStatus is the vocabulary reported to polling agents.
type AgentStatus string

const (
	AgentPending  AgentStatus = "pending"
	AgentApproved AgentStatus = "approved"
	AgentDenied   AgentStatus = "denied"
	AgentExpired  AgentStatus = "expired"
)

// IsTerminal reports whether the status can no longer change.
func (s RequestStatus) IsTerminal() bool {
	return s != RequestPending
}

// AgentView maps a stored status onto the agent-facing vocabulary. Timeouts and
// anything unrecognised read as expired.
func (s RequestStatus) AgentView() AgentStatus {
	switch s {
	case RequestPending:
		return AgentPending
	case RequestApproved:
		return AgentApproved
	case RequestDenied:
		return AgentDenied
	default:
		return AgentExpired
	}
}

// Outcome is an operator decision.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeDenied   Outcome = "denied"
)

// Valid reports whether o is one of the two allowed decisions.
func (o Outcome) Valid() bool {
	return o == OutcomeApproved || o == OutcomeDenied
}

// Status returns the terminal request status an outcome produces.
func (o Outcome) Status() RequestStatus {
	if o == OutcomeApproved {
		return RequestApproved
	}
	return RequestDenied
}

// ApprovalRequest tracks one blocked command awaiting an operator decision.
// UserName is copied from the endpoint at creation so the audit record stays
// stable when the endpoint later changes or disappears.
type ApprovalRequest struct {
	ID         string        `json:"id" gorm:"primaryKey"`
	EndpointID string        `json:"endpoint_id" gorm:"index;not null"`
	UserName   string        `json:"user_name"`
	Command    string        `json:"command" gorm:"not null"`
	Status     RequestStatus `json:"status" gorm:"index;not null;default:pending"`
	CreatedAt  time.Time     `json:"created_at" gorm:"index"`
	UpdatedAt  *time.Time    `json:"updated_at,omitempty" gorm:"autoUpdateTime:false"`
}

func (r *ApprovalRequest) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = RequestPending
	}
	return
}

// ExpiredAt reports whether a pending request created at r.CreatedAt has outlived
// the TTL at now. A zero creation time cannot be trusted and counts as expired.
func (r *ApprovalRequest) ExpiredAt(now time.Time) bool {
	if r.CreatedAt.IsZero() {
		return true
	}
	return now.Sub(r.CreatedAt) > ApprovalTTL
}
