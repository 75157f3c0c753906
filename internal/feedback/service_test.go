package feedback

import (
	"context"
	"testing"
	"time"

	"funnel_backend/internal/events"
	"funnel_backend/internal/leads/domain"
	leadrepo "funnel_backend/internal/leads/repository"
	"funnel_backend/platform/apperr"
	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeFeedbackStore struct {
	feedbacks map[uuid.UUID]*Feedback
	rewards   map[uuid.UUID]*Reward
}

func newFakeFeedbackStore() *fakeFeedbackStore {
	return &fakeFeedbackStore{feedbacks: make(map[uuid.UUID]*Feedback), rewards: make(map[uuid.UUID]*Reward)}
}

func (f *fakeFeedbackStore) CreateFeedback(_ context.Context, id, leadID uuid.UUID, rating int, comment string) (bool, error) {
	if _, ok := f.feedbacks[id]; ok {
		return false, nil
	}
	f.feedbacks[id] = &Feedback{ID: id, LeadID: leadID, Rating: rating, Comment: comment, CreatedAt: time.Now()}
	return true, nil
}

func (f *fakeFeedbackStore) GetFeedback(_ context.Context, id uuid.UUID) (*Feedback, error) {
	fb, ok := f.feedbacks[id]
	if !ok {
		return nil, apperr.NotFound("feedback not found")
	}
	copied := *fb
	return &copied, nil
}

func (f *fakeFeedbackStore) GrantReward(_ context.Context, leadID, feedbackID uuid.UUID, points int, reason string) (bool, error) {
	if _, ok := f.rewards[feedbackID]; ok {
		return false, nil
	}
	for _, r := range f.rewards {
		if r.LeadID == leadID && r.Reason == reason {
			return false, nil
		}
	}
	f.rewards[feedbackID] = &Reward{ID: uuid.New(), LeadID: leadID, FeedbackID: feedbackID, Points: points, Reason: reason, CreatedAt: time.Now()}
	return true, nil
}

func (f *fakeFeedbackStore) GetRewardByFeedbackID(_ context.Context, feedbackID uuid.UUID) (*Reward, error) {
	r, ok := f.rewards[feedbackID]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (f *fakeFeedbackStore) TotalPoints(_ context.Context, leadID uuid.UUID) (int, error) {
	total := 0
	for _, r := range f.rewards {
		if r.LeadID == leadID {
			total += r.Points
		}
	}
	return total, nil
}

type fakeFeedbackLeads struct {
	leads    map[uuid.UUID]*leadrepo.Lead
	advances []domain.Status
}

func (f *fakeFeedbackLeads) GetLead(_ context.Context, id uuid.UUID) (*leadrepo.Lead, error) {
	l, ok := f.leads[id]
	if !ok {
		return nil, apperr.NotFound("lead not found")
	}
	return l, nil
}

func (f *fakeFeedbackLeads) Advance(_ context.Context, _ uuid.UUID, target domain.Status) error {
	f.advances = append(f.advances, target)
	return nil
}

func rewardTestConfig() *config.Config {
	return &config.Config{
		FeedbackRewardPoints: 100,
		PublicLinkSecret:     "link-secret",
		PublicLinkTTL:        time.Hour,
	}
}

func newTestFeedbackService(store *fakeFeedbackStore, gate *fakeFeedbackLeads) *Service {
	log := logger.New("test")
	return NewService(store, gate, events.NewInMemoryBus(log), rewardTestConfig(), log)
}

func TestSubmitFeedbackValidation(t *testing.T) {
	leadID := uuid.New()
	gate := &fakeFeedbackLeads{leads: map[uuid.UUID]*leadrepo.Lead{leadID: {ID: leadID, Status: domain.StatusPaid}}}
	svc := newTestFeedbackService(newFakeFeedbackStore(), gate)

	tests := []struct {
		name string
		in   SubmitFeedbackInput
		kind apperr.Kind
	}{
		{"rating zero", SubmitFeedbackInput{LeadID: leadID, Rating: 0}, apperr.KindValidation},
		{"rating negative", SubmitFeedbackInput{LeadID: leadID, Rating: -1}, apperr.KindValidation},
		{"rating too high", SubmitFeedbackInput{LeadID: leadID, Rating: 6}, apperr.KindValidation},
		{"missing lead id", SubmitFeedbackInput{Rating: 5}, apperr.KindValidation},
		{"unknown lead", SubmitFeedbackInput{LeadID: uuid.New(), Rating: 5}, apperr.KindNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.SubmitFeedback(context.Background(), tc.in); !apperr.Is(err, tc.kind) {
				t.Errorf("expected %v error, got %v", tc.kind, err)
			}
		})
	}
}

func TestSubmitFeedbackGrantsRewardOnce(t *testing.T) {
	leadID := uuid.New()
	gate := &fakeFeedbackLeads{leads: map[uuid.UUID]*leadrepo.Lead{leadID: {ID: leadID, Status: domain.StatusPaid}}}
	store := newFakeFeedbackStore()
	svc := newTestFeedbackService(store, gate)

	feedbackID := uuid.New()
	in := SubmitFeedbackInput{FeedbackID: feedbackID, LeadID: leadID, Rating: 5, Comment: "  great session  "}

	result, err := svc.SubmitFeedback(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Duplicate {
		t.Error("first submission marked duplicate")
	}
	if result.PointsAwarded != 100 {
		t.Errorf("points = %d, want 100", result.PointsAwarded)
	}
	if result.Feedback.Comment != "great session" {
		t.Errorf("comment = %q, want trimmed", result.Feedback.Comment)
	}
	if len(gate.advances) != 1 || gate.advances[0] != domain.StatusFeedbackGiven {
		t.Errorf("advances = %v, want [feedback_given]", gate.advances)
	}

	// The retry settles on the stored outcome without a second grant.
	again, err := svc.SubmitFeedback(context.Background(), in)
	if err != nil {
		t.Fatalf("resubmission errored: %v", err)
	}
	if !again.Duplicate {
		t.Error("resubmission not marked duplicate")
	}
	if again.PointsAwarded != 100 {
		t.Errorf("resubmission points = %d, want stored 100", again.PointsAwarded)
	}
	if len(store.rewards) != 1 {
		t.Fatalf("rewards = %d, want exactly one", len(store.rewards))
	}
	if len(gate.advances) != 1 {
		t.Errorf("resubmission advanced the lead again: %v", gate.advances)
	}
}

func TestSubmitFeedbackRatingBounds(t *testing.T) {
	leadID := uuid.New()
	gate := &fakeFeedbackLeads{leads: map[uuid.UUID]*leadrepo.Lead{leadID: {ID: leadID, Status: domain.StatusPaid}}}
	svc := newTestFeedbackService(newFakeFeedbackStore(), gate)

	for _, rating := range []int{1, 5} {
		if _, err := svc.SubmitFeedback(context.Background(), SubmitFeedbackInput{LeadID: leadID, Rating: rating}); err != nil {
			t.Errorf("rating %d rejected: %v", rating, err)
		}
	}
}

func TestSecondFeedbackEarnsNoSecondReward(t *testing.T) {
	leadID := uuid.New()
	gate := &fakeFeedbackLeads{leads: map[uuid.UUID]*leadrepo.Lead{leadID: {ID: leadID, Status: domain.StatusPaid}}}
	store := newFakeFeedbackStore()
	svc := newTestFeedbackService(store, gate)

	if _, err := svc.SubmitFeedback(context.Background(), SubmitFeedbackInput{LeadID: leadID, Rating: 5}); err != nil {
		t.Fatalf("first submission failed: %v", err)
	}

	second, err := svc.SubmitFeedback(context.Background(), SubmitFeedbackInput{LeadID: leadID, Rating: 3, Comment: "followup"})
	if err != nil {
		t.Fatalf("second submission failed: %v", err)
	}
	if second.PointsAwarded != 0 {
		t.Errorf("second submission points = %d, want 0", second.PointsAwarded)
	}
	if len(store.rewards) != 1 {
		t.Errorf("rewards = %d, want exactly one", len(store.rewards))
	}
}

func TestSubmitFeedbackForeignIDConflicts(t *testing.T) {
	leadA := uuid.New()
	leadB := uuid.New()
	gate := &fakeFeedbackLeads{leads: map[uuid.UUID]*leadrepo.Lead{
		leadA: {ID: leadA, Status: domain.StatusPaid},
		leadB: {ID: leadB, Status: domain.StatusPaid},
	}}
	svc := newTestFeedbackService(newFakeFeedbackStore(), gate)

	feedbackID := uuid.New()
	if _, err := svc.SubmitFeedback(context.Background(), SubmitFeedbackInput{FeedbackID: feedbackID, LeadID: leadA, Rating: 4}); err != nil {
		t.Fatalf("seed submission failed: %v", err)
	}

	_, err := svc.SubmitFeedback(context.Background(), SubmitFeedbackInput{FeedbackID: feedbackID, LeadID: leadB, Rating: 4})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestResolveFormToken(t *testing.T) {
	leadID := uuid.New()
	gate := &fakeFeedbackLeads{leads: map[uuid.UUID]*leadrepo.Lead{leadID: {ID: leadID, Name: "Tanaka", Status: domain.StatusPaid}}}
	store := newFakeFeedbackStore()
	svc := newTestFeedbackService(store, gate)
	tokens := NewLinkTokens(rewardTestConfig())

	if _, err := svc.SubmitFeedback(context.Background(), SubmitFeedbackInput{LeadID: leadID, Rating: 5}); err != nil {
		t.Fatalf("seed submission failed: %v", err)
	}

	token, err := tokens.Issue(leadID)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	target, err := svc.ResolveFormToken(context.Background(), tokens, token)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if target.LeadID != leadID || target.Name != "Tanaka" {
		t.Errorf("target = %+v", target)
	}
	if target.Points != 100 {
		t.Errorf("points = %d, want 100", target.Points)
	}

	if _, err := svc.ResolveFormToken(context.Background(), tokens, "garbage"); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("expected unauthorized for garbage token, got %v", err)
	}
}
