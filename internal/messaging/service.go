// Package messaging is the messaging-platform bounded context: it verifies
// signed webhook deliveries, runs the identity-linking conversation, and
// talks back through the reply API.
package messaging

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	leadsvc "funnel_backend/internal/leads/service"
	"funnel_backend/platform/logger"
)

// Event types delivered by the messaging platform.
const (
	EventTypeFollow  = "follow"
	EventTypeMessage = "message"
)

// Reply texts for the linking conversation.
const (
	replyFollowPrompt  = "Thanks for adding us! To link your account, please send the email address you registered with."
	replyGenericPrompt = "How can we help? If you want to link your account, send your registered email address."
	replyNoMatch       = "We couldn't find a registration for that email address. Please check it and try again."
	replyAlreadyLinked = "That account is already linked to a different registration, so nothing was changed."
	replyLinkedFmt     = "Your email %s has been confirmed. Your account is now linked."
)

// emailToken matches an @-shaped token inside a free-form chat message.
var emailToken = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// IdentityLinker is the slice of the lead lifecycle engine this module needs.
type IdentityLinker interface {
	LinkIdentity(ctx context.Context, messagingUserID, email string) (leadsvc.LinkResult, error)
}

// Replier sends a reply to the user who triggered an event.
type Replier interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// InboundEvent is one event from the webhook envelope.
type InboundEvent struct {
	Type       string `json:"type"`
	ReplyToken string `json:"replyToken"`
	Source     struct {
		UserID string `json:"userId"`
	} `json:"source"`
	Message struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
}

// WebhookEnvelope is the signed webhook body.
type WebhookEnvelope struct {
	Events []InboundEvent `json:"events"`
}

// Service handles verified messaging events.
type Service struct {
	linker  IdentityLinker
	replier Replier
	log     *logger.Logger
}

// NewService creates the messaging event service.
func NewService(linker IdentityLinker, replier Replier, log *logger.Logger) *Service {
	return &Service{linker: linker, replier: replier, log: log}
}

// HandleEvent processes one verified event. Reply failures are logged, never
// propagated: the webhook was authentic and parsed, so the delivery must be
// acknowledged regardless of outbound messaging health.
func (s *Service) HandleEvent(ctx context.Context, event InboundEvent) {
	switch event.Type {
	case EventTypeFollow:
		s.reply(ctx, event.ReplyToken, replyFollowPrompt)
	case EventTypeMessage:
		s.handleMessage(ctx, event)
	default:
		s.log.WebhookEvent("messaging", event.Type, false)
	}
}

func (s *Service) handleMessage(ctx context.Context, event InboundEvent) {
	if event.Message.Type != "" && event.Message.Type != "text" {
		s.log.WebhookEvent("messaging", "message."+event.Message.Type, false)
		return
	}

	email, ok := ExtractEmailToken(event.Message.Text)
	if !ok {
		s.reply(ctx, event.ReplyToken, replyGenericPrompt)
		return
	}

	result, err := s.linker.LinkIdentity(ctx, event.Source.UserID, email)
	if err != nil {
		// Internal failures are never surfaced to the chat user.
		s.log.Error("identity link failed", "error", err.Error())
		s.reply(ctx, event.ReplyToken, replyGenericPrompt)
		return
	}

	switch result.Outcome {
	case leadsvc.LinkLinked:
		s.reply(ctx, event.ReplyToken, fmt.Sprintf(replyLinkedFmt, result.Email))
	case leadsvc.LinkAlreadyLinked:
		s.reply(ctx, event.ReplyToken, replyAlreadyLinked)
	default:
		s.reply(ctx, event.ReplyToken, replyNoMatch)
	}
}

func (s *Service) reply(ctx context.Context, replyToken, text string) {
	if replyToken == "" {
		return
	}
	if err := s.replier.Reply(ctx, replyToken, text); err != nil {
		s.log.CollaboratorError("messaging", "reply", err)
	}
}

// ExtractEmailToken pulls the first @-shaped token out of a chat message.
func ExtractEmailToken(text string) (string, bool) {
	match := emailToken.FindString(text)
	if match == "" {
		return "", false
	}
	return strings.ToLower(match), true
}
