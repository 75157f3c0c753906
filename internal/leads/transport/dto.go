// Package transport defines the leads module's HTTP request/response shapes.
package transport

import (
	"time"

	"funnel_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// CreateLeadRequest is the landing-page form payload.
type CreateLeadRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Name   string `json:"name" validate:"required,min=1,max=200"`
	Phone  string `json:"phone" validate:"omitempty,max=32"`
	Source string `json:"source" validate:"omitempty,oneof=lp line referral"`
}

// LeadResponse is the public lead representation.
type LeadResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone,omitempty"`
	Source    string    `json:"source"`
	Status    string    `json:"status"`
	Linked    bool      `json:"linked"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToLeadResponse maps a stored lead to its public shape. The messaging user
// ID itself is never exposed, only whether a link exists.
func ToLeadResponse(lead *repository.Lead) LeadResponse {
	return LeadResponse{
		ID:        lead.ID,
		Email:     lead.Email,
		Name:      lead.Name,
		Phone:     lead.Phone,
		Source:    lead.Source,
		Status:    string(lead.Status),
		Linked:    lead.MessagingUserID != nil,
		CreatedAt: lead.CreatedAt,
	}
}
