// Package calendarapi is the outbound client for the calendar collaborator.
package calendarapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"funnel_backend/internal/booking"
	"funnel_backend/platform/apperr"
	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"
)

// Client talks to the calendar collaborator over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

// NewClient creates the calendar API client.
func NewClient(cfg config.CalendarConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.GetCalendarAPIURL(), "/"),
		apiKey:  cfg.GetCalendarAPIKey(),
		http:    &http.Client{Timeout: cfg.GetCollaboratorTimeout()},
		log:     log,
	}
}

type freeBusyRequest struct {
	TimeMin time.Time `json:"timeMin"`
	TimeMax time.Time `json:"timeMax"`
}

type freeBusyResponse struct {
	Busy []struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	} `json:"busy"`
}

// ListBusyWindows fetches the occupied intervals in a range.
func (c *Client) ListBusyWindows(ctx context.Context, from, to time.Time) ([]booking.Window, error) {
	var resp freeBusyResponse
	if err := c.do(ctx, http.MethodPost, "/freeBusy", freeBusyRequest{TimeMin: from, TimeMax: to}, &resp); err != nil {
		return nil, err
	}

	windows := make([]booking.Window, 0, len(resp.Busy))
	for _, b := range resp.Busy {
		windows = append(windows, booking.Window{Start: b.Start, End: b.End})
	}
	return windows, nil
}

type createEventRequest struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendee    string    `json:"attendee,omitempty"`
}

type createEventResponse struct {
	ID string `json:"id"`
}

// CreateEvent creates a calendar event and returns its ID.
func (c *Client) CreateEvent(ctx context.Context, input booking.EventInput) (string, error) {
	var resp createEventResponse
	err := c.do(ctx, http.MethodPost, "/events", createEventRequest{
		Summary:     input.Summary,
		Description: input.Description,
		Start:       input.Start,
		End:         input.End,
		Attendee:    input.Attendee,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", apperr.Unavailable("calendar returned no event id")
	}
	return resp.ID, nil
}

// DeleteEvent removes a calendar event. Deleting an already removed event is
// not an error.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	err := c.do(ctx, http.MethodDelete, "/events/"+eventID, nil, nil)
	if apperr.GetKind(err) == apperr.KindNotFound {
		return nil
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal calendar payload: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "calendar is unreachable", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return apperr.NotFound("calendar resource not found")
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return apperr.Unavailable(fmt.Sprintf("calendar returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("calendar returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "calendar response unreadable", err)
	}
	return nil
}

// Compile-time check that Client implements booking.CalendarClient
var _ booking.CalendarClient = (*Client)(nil)
