package booking

import (
	"net/http"
	"time"

	"funnel_backend/platform/httpkit"
	"funnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const dateFormat = "2006-01-02"

// Handler handles booking HTTP requests.
type Handler struct {
	service *Service
	val     *validator.Validator
}

// NewHandler creates a new booking handler.
func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// SlotsRequest asks for the slot grid of one day.
type SlotsRequest struct {
	Date string `json:"date" validate:"required"`
}

// SlotsResponse carries one day's slot grid with availability flags.
type SlotsResponse struct {
	Date  string `json:"date"`
	Slots []Slot `json:"slots"`
}

// HandleGetSlots returns the consultation slot grid for a day.
// POST /api/v1/calendar/slots
func (h *Handler) HandleGetSlots(c *gin.Context) {
	var req SlotsRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	date, err := time.ParseInLocation(dateFormat, req.Date, time.Local)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD", nil)
		return
	}

	slots, err := h.service.GetAvailableSlots(c.Request.Context(), date)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, SlotsResponse{Date: req.Date, Slots: slots})
}

// BookRequest reserves one slot for a lead.
type BookRequest struct {
	LeadID    uuid.UUID `json:"leadId" validate:"required"`
	SlotStart time.Time `json:"slotStart" validate:"required"`
	SlotEnd   time.Time `json:"slotEnd" validate:"required"`
	Email     string    `json:"email" validate:"omitempty,email"`
	Name      string    `json:"name" validate:"omitempty,max=200"`
}

// BookingResponse is the wire form of a booking.
type BookingResponse struct {
	ID        uuid.UUID `json:"id"`
	LeadID    uuid.UUID `json:"leadId"`
	SlotStart time.Time `json:"slotStart"`
	SlotEnd   time.Time `json:"slotEnd"`
	Status    string    `json:"status"`
}

// HandleCreateBooking reserves a slot.
// POST /api/v1/calendar/book
func (h *Handler) HandleCreateBooking(c *gin.Context) {
	var req BookRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	b, err := h.service.CreateBooking(c.Request.Context(), CreateBookingInput{
		LeadID:    req.LeadID,
		SlotStart: req.SlotStart,
		SlotEnd:   req.SlotEnd,
		Email:     req.Email,
		Name:      req.Name,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, toBookingResponse(b))
}

// HandleGetBooking fetches one booking.
// GET /api/v1/calendar/book/:bookingId
func (h *Handler) HandleGetBooking(c *gin.Context) {
	id, ok := h.parseBookingID(c)
	if !ok {
		return
	}

	b, err := h.service.GetBooking(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toBookingResponse(b))
}

// HandleCancelBooking cancels a booking.
// DELETE /api/v1/calendar/book/:bookingId
func (h *Handler) HandleCancelBooking(c *gin.Context) {
	id, ok := h.parseBookingID(c)
	if !ok {
		return
	}

	if err := h.service.CancelBooking(c.Request.Context(), id, "cancelled via api"); err != nil {
		httpkit.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "booking cancelled"})
}

func toBookingResponse(b *Booking) BookingResponse {
	return BookingResponse{
		ID:        b.ID,
		LeadID:    b.LeadID,
		SlotStart: b.SlotStart,
		SlotEnd:   b.SlotEnd,
		Status:    b.Status,
	}
}

func (h *Handler) parseBookingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("bookingId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid booking ID", nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func (h *Handler) bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return false
	}
	return true
}
