package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"

	leadsvc "funnel_backend/internal/leads/service"
	"funnel_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeLinker struct {
	result leadsvc.LinkResult
	err    error
	calls  []string
}

func (f *fakeLinker) LinkIdentity(_ context.Context, messagingUserID, email string) (leadsvc.LinkResult, error) {
	f.calls = append(f.calls, messagingUserID+":"+email)
	return f.result, f.err
}

type fakeReplier struct {
	replies []string
	err     error
}

func (f *fakeReplier) Reply(_ context.Context, _, text string) error {
	f.replies = append(f.replies, text)
	return f.err
}

func newTestMessagingService(linker *fakeLinker, replier *fakeReplier) *Service {
	return NewService(linker, replier, logger.New("test"))
}

func TestExtractEmailToken(t *testing.T) {
	tests := []struct {
		text  string
		want  string
		found bool
	}{
		{"taro@example.com", "taro@example.com", true},
		{"my email is Taro@Example.com thanks", "taro@example.com", true},
		{"reach me: a.b+c@sub.example.co.jp!", "a.b+c@sub.example.co.jp", true},
		{"no token here", "", false},
		{"almost@an", "", false},
		{"", "", false},
	}

	for _, tc := range tests {
		got, found := ExtractEmailToken(tc.text)
		if got != tc.want || found != tc.found {
			t.Errorf("ExtractEmailToken(%q) = %q, %v; want %q, %v", tc.text, got, found, tc.want, tc.found)
		}
	}
}

func TestHandleEventFollowPrompts(t *testing.T) {
	replier := &fakeReplier{}
	svc := newTestMessagingService(&fakeLinker{}, replier)

	svc.HandleEvent(context.Background(), InboundEvent{Type: EventTypeFollow, ReplyToken: "rt"})

	if len(replier.replies) != 1 || replier.replies[0] != replyFollowPrompt {
		t.Errorf("replies = %v, want follow prompt", replier.replies)
	}
}

func TestHandleEventMessageLinks(t *testing.T) {
	leadID := uuid.New()
	linker := &fakeLinker{result: leadsvc.LinkResult{Outcome: leadsvc.LinkLinked, LeadID: leadID, Email: "taro@example.com"}}
	replier := &fakeReplier{}
	svc := newTestMessagingService(linker, replier)

	event := InboundEvent{Type: EventTypeMessage, ReplyToken: "rt"}
	event.Source.UserID = "U1"
	event.Message.Type = "text"
	event.Message.Text = "my email is taro@example.com"
	svc.HandleEvent(context.Background(), event)

	if len(linker.calls) != 1 || linker.calls[0] != "U1:taro@example.com" {
		t.Fatalf("linker calls = %v", linker.calls)
	}
	if len(replier.replies) != 1 || !strings.Contains(replier.replies[0], "taro@example.com") {
		t.Errorf("replies = %v, want confirmation naming the email", replier.replies)
	}
}

func TestHandleEventMessageOutcomeReplies(t *testing.T) {
	tests := []struct {
		name    string
		outcome leadsvc.LinkOutcome
		want    string
	}{
		{"no match", leadsvc.LinkNoMatch, replyNoMatch},
		{"already linked", leadsvc.LinkAlreadyLinked, replyAlreadyLinked},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			replier := &fakeReplier{}
			svc := newTestMessagingService(&fakeLinker{result: leadsvc.LinkResult{Outcome: tc.outcome}}, replier)

			event := InboundEvent{Type: EventTypeMessage, ReplyToken: "rt"}
			event.Source.UserID = "U1"
			event.Message.Type = "text"
			event.Message.Text = "x@example.com"
			svc.HandleEvent(context.Background(), event)

			if len(replier.replies) != 1 || replier.replies[0] != tc.want {
				t.Errorf("replies = %v, want %q", replier.replies, tc.want)
			}
		})
	}
}

func TestHandleEventMessageWithoutToken(t *testing.T) {
	linker := &fakeLinker{}
	replier := &fakeReplier{}
	svc := newTestMessagingService(linker, replier)

	event := InboundEvent{Type: EventTypeMessage, ReplyToken: "rt"}
	event.Message.Type = "text"
	event.Message.Text = "hello there"
	svc.HandleEvent(context.Background(), event)

	if len(linker.calls) != 0 {
		t.Error("linker called without an email token")
	}
	if len(replier.replies) != 1 || replier.replies[0] != replyGenericPrompt {
		t.Errorf("replies = %v, want generic prompt", replier.replies)
	}
}

func TestHandleEventLinkerFailureStaysGeneric(t *testing.T) {
	linker := &fakeLinker{err: errors.New("db down")}
	replier := &fakeReplier{}
	svc := newTestMessagingService(linker, replier)

	event := InboundEvent{Type: EventTypeMessage, ReplyToken: "rt"}
	event.Message.Type = "text"
	event.Message.Text = "x@example.com"
	svc.HandleEvent(context.Background(), event)

	// Internal failure text must not cross the trust boundary.
	if len(replier.replies) != 1 || replier.replies[0] != replyGenericPrompt {
		t.Errorf("replies = %v, want generic prompt", replier.replies)
	}
}

func TestHandleEventNonTextIgnored(t *testing.T) {
	linker := &fakeLinker{}
	replier := &fakeReplier{}
	svc := newTestMessagingService(linker, replier)

	event := InboundEvent{Type: EventTypeMessage, ReplyToken: "rt"}
	event.Message.Type = "sticker"
	svc.HandleEvent(context.Background(), event)

	if len(linker.calls) != 0 || len(replier.replies) != 0 {
		t.Error("sticker message should be ignored")
	}
}
