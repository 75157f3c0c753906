// Package feedback is the reward engine: it accepts post-consultation
// feedback exactly once per submission and grants the configured points.
package feedback

import (
	"context"
	"strings"

	"funnel_backend/internal/events"
	"funnel_backend/internal/leads/domain"
	leadrepo "funnel_backend/internal/leads/repository"
	"funnel_backend/platform/apperr"
	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"

	"github.com/google/uuid"
)

const rewardReason = "feedback"

// Store is the persistence surface the reward engine needs. *Repository
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	CreateFeedback(ctx context.Context, id, leadID uuid.UUID, rating int, comment string) (bool, error)
	GetFeedback(ctx context.Context, id uuid.UUID) (*Feedback, error)
	GrantReward(ctx context.Context, leadID, feedbackID uuid.UUID, points int, reason string) (bool, error)
	GetRewardByFeedbackID(ctx context.Context, feedbackID uuid.UUID) (*Reward, error)
	TotalPoints(ctx context.Context, leadID uuid.UUID) (int, error)
}

// LeadGate is the slice of the lead lifecycle engine this module needs.
type LeadGate interface {
	GetLead(ctx context.Context, id uuid.UUID) (*leadrepo.Lead, error)
	Advance(ctx context.Context, leadID uuid.UUID, target domain.Status) error
}

// Service is the reward engine.
type Service struct {
	store Store
	leads LeadGate
	bus   events.Bus
	cfg   config.RewardConfig
	log   *logger.Logger
}

// NewService creates the reward engine.
func NewService(store Store, leads LeadGate, bus events.Bus, cfg config.RewardConfig, log *logger.Logger) *Service {
	return &Service{store: store, leads: leads, bus: bus, cfg: cfg, log: log}
}

// SubmitFeedbackInput carries one feedback submission. FeedbackID is optional:
// clients that retry supply their own ID so retries settle on one row.
type SubmitFeedbackInput struct {
	FeedbackID uuid.UUID
	LeadID     uuid.UUID
	Rating     int
	Comment    string
}

// SubmitResult reports what the submission did.
type SubmitResult struct {
	Feedback      *Feedback
	PointsAwarded int
	Duplicate     bool
}

// SubmitFeedback records feedback and grants its reward. Resubmission of the
// same feedback ID returns the stored outcome without a second grant. Storage
// failures propagate; a submission never pretends to have succeeded.
func (s *Service) SubmitFeedback(ctx context.Context, in SubmitFeedbackInput) (*SubmitResult, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}
	if in.LeadID == uuid.Nil {
		return nil, apperr.Validation("leadId is required")
	}

	if _, err := s.leads.GetLead(ctx, in.LeadID); err != nil {
		return nil, err
	}

	feedbackID := in.FeedbackID
	if feedbackID == uuid.Nil {
		feedbackID = uuid.New()
	}

	comment := strings.TrimSpace(in.Comment)
	created, err := s.store.CreateFeedback(ctx, feedbackID, in.LeadID, in.Rating, comment)
	if err != nil {
		s.log.DatabaseError("feedback.create", err)
		return nil, apperr.Wrap(apperr.KindInternal, "failed to store feedback", err)
	}

	if !created {
		existing, err := s.store.GetFeedback(ctx, feedbackID)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to load feedback", err)
		}
		if existing.LeadID != in.LeadID {
			return nil, apperr.Conflict("feedback id belongs to another lead")
		}
		reward, err := s.store.GetRewardByFeedbackID(ctx, feedbackID)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to load reward", err)
		}
		points := 0
		if reward != nil {
			points = reward.Points
		}
		return &SubmitResult{Feedback: existing, PointsAwarded: points, Duplicate: true}, nil
	}

	points := s.cfg.GetFeedbackRewardPoints()
	granted, err := s.store.GrantReward(ctx, in.LeadID, feedbackID, points, rewardReason)
	if err != nil {
		s.log.DatabaseError("feedback.grant_reward", err)
		return nil, apperr.Wrap(apperr.KindInternal, "failed to grant reward", err)
	}
	if !granted {
		points = 0
	}

	if err := s.leads.Advance(ctx, in.LeadID, domain.StatusFeedbackGiven); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.FeedbackSubmitted{
		BaseEvent:     events.NewBaseEvent(),
		FeedbackID:    feedbackID,
		LeadID:        in.LeadID,
		Rating:        in.Rating,
		PointsAwarded: points,
	})

	feedback, err := s.store.GetFeedback(ctx, feedbackID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load feedback", err)
	}
	return &SubmitResult{Feedback: feedback, PointsAwarded: points}, nil
}

// FormTarget is who a feedback-form token points at.
type FormTarget struct {
	LeadID uuid.UUID
	Name   string
	Points int
}

// ResolveFormToken verifies a feedback-link token and returns the lead's form
// context.
func (s *Service) ResolveFormToken(ctx context.Context, tokens *LinkTokens, token string) (*FormTarget, error) {
	leadID, err := tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	lead, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	points, err := s.store.TotalPoints(ctx, leadID)
	if err != nil {
		s.log.DatabaseError("feedback.total_points", err)
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load points", err)
	}

	return &FormTarget{LeadID: lead.ID, Name: lead.Name, Points: points}, nil
}
