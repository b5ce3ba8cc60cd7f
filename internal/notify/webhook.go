package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"onfa-ticketing/internal/logger"
	"onfa-ticketing/internal/models"
)

const webhookUserAgent = "onfa-ticket-webhook/1.0"

// WebhookClient posts status changes to the spreadsheet automation.
// One attempt per change; the caller's context bounds it.
type WebhookClient struct {
	URL    string
	HTTP   *http.Client
	Logger *logger.Logger
	now    func() time.Time
}

func NewWebhookClient(url string, timeout time.Duration, log *logger.Logger) *WebhookClient {
	return &WebhookClient{
		URL:    url,
		HTTP:   &http.Client{Timeout: timeout},
		Logger: log,
		now:    time.Now,
	}
}

func (w *WebhookClient) Payload(ticket models.Ticket, action models.WebhookAction) models.WebhookPayload {
	changedAt := ticket.UpdatedAt
	if changedAt.IsZero() {
		changedAt = w.now().UTC()
	}
	return models.WebhookPayload{
		Event:              "ticket_status_changed",
		Action:             action,
		ShouldUpdateSheets: true,
		Ticket: models.WebhookTicket{
			ID:              ticket.ID,
			Name:            ticket.Name,
			Email:           ticket.Email,
			Phone:           ticket.Phone,
			DOB:             ticket.DOB,
			Tier:            ticket.Tier.Label(),
			Status:          ticket.Status,
			RegisteredAt:    ticket.RegisteredAt,
			StatusChangedAt: changedAt,
		},
		Timestamp: w.now().UTC(),
	}
}

// Notify treats 2xx and 4xx as delivered (a 4xx will not get better on
// retry); 5xx and transport errors are returned.
func (w *WebhookClient) Notify(ctx context.Context, ticket models.Ticket, action models.WebhookAction) error {
	if w.URL == "" {
		return ErrSkipped
	}

	body, err := json.Marshal(w.Payload(ticket, action))
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)

	resp, err := w.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		w.Logger.Warn("WEBHOOK", fmt.Sprintf("%s rejected %s (%s): %d %s", w.URL, ticket.ID, action, resp.StatusCode, snippet))
		return nil
	default:
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, snippet)
	}
}
