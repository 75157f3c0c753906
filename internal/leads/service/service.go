// Package service implements the lead lifecycle engine: it owns every
// Lead.status transition and is the single authority for what state a lead
// is in. All other modules advance leads through this service.
package service

import (
	"context"
	"strings"

	"funnel_backend/internal/events"
	"funnel_backend/internal/leads/domain"
	"funnel_backend/internal/leads/repository"
	"funnel_backend/platform/apperr"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/phone"

	"github.com/google/uuid"
)

// casAttempts bounds the compare-and-swap retry loop. Per-lead contention is
// a few concurrent webhooks at most, so a losing writer converges quickly.
const casAttempts = 3

// Store is the persistence surface the engine needs. *repository.Repository
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	Create(ctx context.Context, email, name string, phoneNumber *string, source string) (*repository.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Lead, error)
	FindByEmail(ctx context.Context, email string) (*repository.Lead, error)
	FindByMessagingUserID(ctx context.Context, messagingUserID string) (*repository.Lead, error)
	BindMessagingUser(ctx context.Context, leadID uuid.UUID, messagingUserID string) error
	AdvanceStatus(ctx context.Context, id uuid.UUID, from, to domain.Status) (bool, error)
}

// Service is the lead lifecycle engine.
type Service struct {
	store Store
	bus   events.Bus
	log   *logger.Logger
}

// New creates the lifecycle engine.
func New(store Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, bus: bus, log: log}
}

// CreateLeadInput carries the landing-page form fields.
type CreateLeadInput struct {
	Email  string
	Name   string
	Phone  string
	Source string
}

// CreateLead registers a new prospect in status "new" and announces it.
func (s *Service) CreateLead(ctx context.Context, in CreateLeadInput) (*repository.Lead, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	name := strings.TrimSpace(in.Name)
	if email == "" {
		return nil, apperr.Validation("email is required")
	}
	if name == "" {
		return nil, apperr.Validation("name is required")
	}

	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = "lp"
	}

	var phoneNumber *string
	if trimmed := strings.TrimSpace(in.Phone); trimmed != "" {
		normalized := phone.NormalizeE164(trimmed)
		phoneNumber = &normalized
	}

	lead, err := s.store.Create(ctx, email, name, phoneNumber, source)
	if err != nil {
		s.log.DatabaseError("leads.create", err)
		return nil, apperr.Wrap(apperr.KindInternal, "failed to create lead", err)
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Email:     lead.Email,
		Name:      lead.Name,
		Source:    lead.Source,
	})

	return lead, nil
}

// GetLead fetches a lead by ID.
func (s *Service) GetLead(ctx context.Context, id uuid.UUID) (*repository.Lead, error) {
	lead, err := s.store.GetByID(ctx, id)
	if err == repository.ErrNotFound {
		return nil, apperr.NotFound("lead not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}
	return lead, nil
}

// Exists reports whether a lead with the given ID is on record.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.store.GetByID(ctx, id)
	if err == repository.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}
	return true, nil
}

// Advance moves the lead forward to target. The call is idempotent: when the
// lead already is at or past target (duplicate or out-of-order event
// delivery), it returns nil without touching the row. Concurrent transitions
// for the same lead are serialized through a status compare-and-swap.
func (s *Service) Advance(ctx context.Context, leadID uuid.UUID, target domain.Status) error {
	if !target.Valid() {
		return apperr.Internal("invalid target status").WithOp("leads.Advance")
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		lead, err := s.store.GetByID(ctx, leadID)
		if err == repository.ErrNotFound {
			return apperr.NotFound("lead not found")
		}
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
		}

		switch domain.Classify(lead.Status, target) {
		case domain.AlreadySettled:
			s.log.Debug("lead transition already settled",
				"lead_id", leadID.String(), "status", string(lead.Status), "target", string(target))
			return nil
		case domain.Rejected:
			return apperr.Internal("lead has unknown status").WithOp("leads.Advance")
		}

		applied, err := s.store.AdvanceStatus(ctx, leadID, lead.Status, target)
		if err != nil {
			s.log.DatabaseError("leads.advance_status", err)
			return apperr.Wrap(apperr.KindInternal, "failed to advance lead", err)
		}
		if applied {
			s.log.Info("lead advanced",
				"lead_id", leadID.String(), "from", string(lead.Status), "to", string(target))
			return nil
		}
		// Lost the CAS race; re-read and re-classify.
	}

	s.log.StateConflict(leadID.String(), "", string(target))
	return apperr.Conflict("lead status is changing concurrently, retry")
}

// EnsureNotBeyond rejects with ConflictingState when the lead has already
// advanced past limit. Used by callers applying compensating actions (e.g.,
// a booking cancellation must not land on a paid lead).
func (s *Service) EnsureNotBeyond(ctx context.Context, leadID uuid.UUID, limit domain.Status) error {
	lead, err := s.store.GetByID(ctx, leadID)
	if err == repository.ErrNotFound {
		return apperr.NotFound("lead not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}
	if lead.Status.Rank() > limit.Rank() {
		s.log.StateConflict(leadID.String(), string(lead.Status), string(limit))
		return apperr.Conflict("lead has already advanced past " + string(limit))
	}
	return nil
}

// LinkResult is the outcome of an identity link attempt.
type LinkResult struct {
	Outcome LinkOutcome
	LeadID  uuid.UUID
	Email   string
}

// LinkOutcome enumerates identity-linking outcomes.
type LinkOutcome int

const (
	// LinkNoMatch means no lead matched the candidate token; by policy no
	// lead is auto-created from an unverified chat message.
	LinkNoMatch LinkOutcome = iota
	// LinkLinked means the identity was bound (or was already bound to the
	// same lead, which settles the same way).
	LinkLinked
	// LinkAlreadyLinked means a different binding exists; nothing mutated.
	LinkAlreadyLinked
)

// LinkIdentity correlates a messaging identity with a lead via an email
// token. Each messaging identity maps to at most one lead and a lead's
// identity binds at most once; violations return LinkAlreadyLinked with no
// mutation on either side.
func (s *Service) LinkIdentity(ctx context.Context, messagingUserID, email string) (LinkResult, error) {
	if existing, err := s.store.FindByMessagingUserID(ctx, messagingUserID); err == nil {
		if strings.EqualFold(existing.Email, email) {
			return LinkResult{Outcome: LinkLinked, LeadID: existing.ID, Email: existing.Email}, nil
		}
		return LinkResult{Outcome: LinkAlreadyLinked, LeadID: existing.ID}, nil
	} else if err != repository.ErrNotFound {
		return LinkResult{}, apperr.Wrap(apperr.KindInternal, "failed to look up messaging identity", err)
	}

	lead, err := s.store.FindByEmail(ctx, email)
	if err == repository.ErrNotFound {
		return LinkResult{Outcome: LinkNoMatch}, nil
	}
	if err != nil {
		return LinkResult{}, apperr.Wrap(apperr.KindInternal, "failed to look up lead by email", err)
	}

	err = s.store.BindMessagingUser(ctx, lead.ID, messagingUserID)
	switch err {
	case nil:
		// fallthrough to advance below
	case repository.ErrAlreadyBound, repository.ErrIdentityTaken:
		return LinkResult{Outcome: LinkAlreadyLinked, LeadID: lead.ID}, nil
	default:
		return LinkResult{}, apperr.Wrap(apperr.KindInternal, "failed to bind messaging identity", err)
	}

	if err := s.Advance(ctx, lead.ID, domain.StatusLinked); err != nil {
		return LinkResult{}, err
	}

	s.bus.Publish(ctx, events.LeadLinked{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          lead.ID,
		MessagingUserID: messagingUserID,
		Email:           lead.Email,
	})

	return LinkResult{Outcome: LinkLinked, LeadID: lead.ID, Email: lead.Email}, nil
}
