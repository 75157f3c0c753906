package feedback

import (
	"net/http"
	"time"

	"funnel_backend/platform/httpkit"
	"funnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles feedback HTTP requests.
type Handler struct {
	service *Service
	tokens  *LinkTokens
	val     *validator.Validator
}

// NewHandler creates a new feedback handler.
func NewHandler(service *Service, tokens *LinkTokens, val *validator.Validator) *Handler {
	return &Handler{service: service, tokens: tokens, val: val}
}

// SubmitRequest is one feedback submission. FeedbackID lets retrying clients
// make the submission idempotent.
type SubmitRequest struct {
	FeedbackID uuid.UUID `json:"feedbackId"`
	LeadID     uuid.UUID `json:"leadId" validate:"required"`
	Rating     int       `json:"rating" validate:"required"`
	Comment    string    `json:"comment" validate:"max=2000"`
}

// SubmitResponse reports the stored feedback and the points granted.
type SubmitResponse struct {
	FeedbackID    uuid.UUID `json:"feedbackId"`
	LeadID        uuid.UUID `json:"leadId"`
	Rating        int       `json:"rating"`
	PointsAwarded int       `json:"pointsAwarded"`
	Duplicate     bool      `json:"duplicate,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// HandleSubmitFeedback records feedback and its reward.
// POST /api/v1/feedback
func (h *Handler) HandleSubmitFeedback(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	result, err := h.service.SubmitFeedback(c.Request.Context(), SubmitFeedbackInput{
		FeedbackID: req.FeedbackID,
		LeadID:     req.LeadID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, SubmitResponse{
		FeedbackID:    result.Feedback.ID,
		LeadID:        result.Feedback.LeadID,
		Rating:        result.Feedback.Rating,
		PointsAwarded: result.PointsAwarded,
		Duplicate:     result.Duplicate,
		CreatedAt:     result.Feedback.CreatedAt,
	})
}

// FormResponse is the form context behind a feedback link.
type FormResponse struct {
	LeadID uuid.UUID `json:"leadId"`
	Name   string    `json:"name"`
	Points int       `json:"points"`
}

// HandleResolveForm resolves a signed feedback-link token.
// GET /api/v1/feedback/form/:token
func (h *Handler) HandleResolveForm(c *gin.Context) {
	target, err := h.service.ResolveFormToken(c.Request.Context(), h.tokens, c.Param("token"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, FormResponse{LeadID: target.LeadID, Name: target.Name, Points: target.Points})
}
