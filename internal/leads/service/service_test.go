package service

import (
	"context"
	"testing"

	"funnel_backend/internal/events"
	"funnel_backend/internal/leads/domain"
	"funnel_backend/internal/leads/repository"
	"funnel_backend/platform/apperr"
	"funnel_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	leads map[uuid.UUID]*repository.Lead
	// casFailures makes the next N AdvanceStatus calls lose the race.
	casFailures int
}

func newFakeStore() *fakeStore {
	return &fakeStore{leads: make(map[uuid.UUID]*repository.Lead)}
}

func (f *fakeStore) add(email string, status domain.Status) *repository.Lead {
	lead := &repository.Lead{ID: uuid.New(), Email: email, Name: "Test Lead", Status: status}
	f.leads[lead.ID] = lead
	return lead
}

func (f *fakeStore) Create(_ context.Context, email, name string, phone *string, source string) (*repository.Lead, error) {
	lead := &repository.Lead{ID: uuid.New(), Email: email, Name: name, Phone: phone, Source: source, Status: domain.StatusNew}
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *lead
	return &copied, nil
}

func (f *fakeStore) FindByEmail(_ context.Context, email string) (*repository.Lead, error) {
	for _, lead := range f.leads {
		if lead.Email == email {
			copied := *lead
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) FindByMessagingUserID(_ context.Context, messagingUserID string) (*repository.Lead, error) {
	for _, lead := range f.leads {
		if lead.MessagingUserID != nil && *lead.MessagingUserID == messagingUserID {
			copied := *lead
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) BindMessagingUser(_ context.Context, leadID uuid.UUID, messagingUserID string) error {
	for _, lead := range f.leads {
		if lead.MessagingUserID != nil && *lead.MessagingUserID == messagingUserID && lead.ID != leadID {
			return repository.ErrIdentityTaken
		}
	}
	lead, ok := f.leads[leadID]
	if !ok {
		return repository.ErrNotFound
	}
	if lead.MessagingUserID != nil {
		if *lead.MessagingUserID == messagingUserID {
			return nil
		}
		return repository.ErrAlreadyBound
	}
	lead.MessagingUserID = &messagingUserID
	return nil
}

func (f *fakeStore) AdvanceStatus(_ context.Context, id uuid.UUID, from, to domain.Status) (bool, error) {
	if f.casFailures > 0 {
		f.casFailures--
		return false, nil
	}
	lead, ok := f.leads[id]
	if !ok || lead.Status != from {
		return false, nil
	}
	lead.Status = to
	return true, nil
}

func newTestService(store *fakeStore) *Service {
	log := logger.New("test")
	return New(store, events.NewInMemoryBus(log), log)
}

func TestAdvanceMovesForward(t *testing.T) {
	store := newFakeStore()
	lead := store.add("a@example.com", domain.StatusNew)
	svc := newTestService(store)

	if err := svc.Advance(context.Background(), lead.ID, domain.StatusLinked); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.leads[lead.ID].Status != domain.StatusLinked {
		t.Errorf("status = %q, want linked", store.leads[lead.ID].Status)
	}
}

func TestAdvanceIsIdempotent(t *testing.T) {
	store := newFakeStore()
	lead := store.add("a@example.com", domain.StatusPaid)
	svc := newTestService(store)

	// Re-applying an earlier transition is a duplicate delivery, not an error.
	for _, target := range []domain.Status{domain.StatusPaid, domain.StatusBooked, domain.StatusLinked} {
		if err := svc.Advance(context.Background(), lead.ID, target); err != nil {
			t.Errorf("Advance to %q: unexpected error %v", target, err)
		}
	}
	if store.leads[lead.ID].Status != domain.StatusPaid {
		t.Errorf("status changed to %q, want paid untouched", store.leads[lead.ID].Status)
	}
}

func TestAdvanceAllowsForwardSkip(t *testing.T) {
	store := newFakeStore()
	lead := store.add("a@example.com", domain.StatusNew)
	svc := newTestService(store)

	if err := svc.Advance(context.Background(), lead.ID, domain.StatusPaid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.leads[lead.ID].Status != domain.StatusPaid {
		t.Errorf("status = %q, want paid", store.leads[lead.ID].Status)
	}
}

func TestAdvanceRetriesLostCAS(t *testing.T) {
	store := newFakeStore()
	lead := store.add("a@example.com", domain.StatusNew)
	store.casFailures = 1
	svc := newTestService(store)

	if err := svc.Advance(context.Background(), lead.ID, domain.StatusLinked); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestAdvanceConflictAfterExhaustedRetries(t *testing.T) {
	store := newFakeStore()
	lead := store.add("a@example.com", domain.StatusNew)
	store.casFailures = casAttempts
	svc := newTestService(store)

	err := svc.Advance(context.Background(), lead.ID, domain.StatusLinked)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAdvanceUnknownLead(t *testing.T) {
	svc := newTestService(newFakeStore())
	err := svc.Advance(context.Background(), uuid.New(), domain.StatusLinked)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEnsureNotBeyond(t *testing.T) {
	store := newFakeStore()
	booked := store.add("booked@example.com", domain.StatusBooked)
	paid := store.add("paid@example.com", domain.StatusPaid)
	svc := newTestService(store)

	if err := svc.EnsureNotBeyond(context.Background(), booked.ID, domain.StatusBooked); err != nil {
		t.Errorf("lead at limit should pass, got %v", err)
	}
	err := svc.EnsureNotBeyond(context.Background(), paid.ID, domain.StatusBooked)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("lead past limit should conflict, got %v", err)
	}
}

func TestCreateLeadNormalizesInput(t *testing.T) {
	svc := newTestService(newFakeStore())

	lead, err := svc.CreateLead(context.Background(), CreateLeadInput{
		Email: "  Taro@Example.COM ",
		Name:  " Taro ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead.Email != "taro@example.com" {
		t.Errorf("email = %q, want lowercase trimmed", lead.Email)
	}
	if lead.Source != "lp" {
		t.Errorf("source = %q, want default lp", lead.Source)
	}
}

func TestCreateLeadValidation(t *testing.T) {
	svc := newTestService(newFakeStore())

	for _, in := range []CreateLeadInput{
		{Email: "", Name: "x"},
		{Email: "a@example.com", Name: "  "},
	} {
		if _, err := svc.CreateLead(context.Background(), in); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("CreateLead(%+v): expected validation error, got %v", in, err)
		}
	}
}

func TestLinkIdentityBindsOnce(t *testing.T) {
	store := newFakeStore()
	lead := store.add("a@example.com", domain.StatusNew)
	svc := newTestService(store)

	result, err := svc.LinkIdentity(context.Background(), "U1", "a@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != LinkLinked || result.LeadID != lead.ID {
		t.Fatalf("result = %+v, want linked to %s", result, lead.ID)
	}
	if store.leads[lead.ID].Status != domain.StatusLinked {
		t.Errorf("status = %q, want linked", store.leads[lead.ID].Status)
	}

	// Same identity, same email: settles as linked again.
	again, err := svc.LinkIdentity(context.Background(), "U1", "a@example.com")
	if err != nil || again.Outcome != LinkLinked {
		t.Errorf("relink = %+v, %v; want linked, nil", again, err)
	}
}

func TestLinkIdentityNoMatch(t *testing.T) {
	svc := newTestService(newFakeStore())

	result, err := svc.LinkIdentity(context.Background(), "U1", "nobody@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != LinkNoMatch {
		t.Errorf("outcome = %v, want no match", result.Outcome)
	}
}

func TestLinkIdentityConflictLeavesBothLeadsUntouched(t *testing.T) {
	store := newFakeStore()
	first := store.add("first@example.com", domain.StatusNew)
	second := store.add("second@example.com", domain.StatusNew)
	svc := newTestService(store)

	if _, err := svc.LinkIdentity(context.Background(), "U1", "first@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The same messaging identity cannot claim a second lead.
	result, err := svc.LinkIdentity(context.Background(), "U1", "second@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != LinkAlreadyLinked {
		t.Errorf("outcome = %v, want already linked", result.Outcome)
	}
	if store.leads[second.ID].MessagingUserID != nil {
		t.Error("second lead gained a messaging identity")
	}
	if store.leads[second.ID].Status != domain.StatusNew {
		t.Errorf("second lead status = %q, want new", store.leads[second.ID].Status)
	}

	// A different identity cannot rebind an already linked lead.
	result, err = svc.LinkIdentity(context.Background(), "U2", "first@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != LinkAlreadyLinked {
		t.Errorf("outcome = %v, want already linked", result.Outcome)
	}
	if got := *store.leads[first.ID].MessagingUserID; got != "U1" {
		t.Errorf("first lead identity = %q, want U1", got)
	}
}
