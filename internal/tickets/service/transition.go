package tickets

import (
	"context"
	"fmt"

	"onfa-ticketing/internal/metrics"
	"onfa-ticketing/internal/models"
)

const maxCASAttempts = 3

// ApplyTransition overwrites status and/or tier. Any status may replace any
// other; writing the current values back is a no-op without side effects.
func (s *TicketService) ApplyTransition(ctx context.Context, id string, req models.TransitionRequest) (*models.Ticket, error) {
	if req.Status == nil && req.Tier == nil {
		return nil, missingField("status or tier")
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if req.Tier != nil && !req.Tier.Valid() {
		return nil, ErrInvalidTier
	}
	return s.transition(ctx, id, req, nil)
}

// CheckIn marks the ticket CHECKED_IN immediately. The guard is re-evaluated
// on every attempt, so of two concurrent scans only one succeeds.
func (s *TicketService) CheckIn(ctx context.Context, id string) (*models.Ticket, error) {
	status := models.StatusCheckedIn
	return s.transition(ctx, id, models.TransitionRequest{Status: &status}, func(t *models.Ticket) error {
		if t.Status == models.StatusCheckedIn {
			return ErrAlreadyCheckedIn
		}
		return nil
	})
}

func (s *TicketService) transition(ctx context.Context, id string, req models.TransitionRequest, guard func(*models.Ticket) error) (*models.Ticket, error) {
	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if guard != nil {
			if err := guard(current); err != nil {
				return nil, err
			}
		}

		next := *current
		if req.Status != nil {
			next.Status = *req.Status
		}
		if req.Tier != nil {
			next.Tier = *req.Tier
		}
		if next.State() == current.State() {
			return current, nil
		}

		now := s.now()
		next.UpdatedAt = now
		switch {
		case next.Status == models.StatusCheckedIn && current.Status != models.StatusCheckedIn:
			next.CheckedInAt = &now
		case next.Status != models.StatusCheckedIn:
			next.CheckedInAt = nil
		}

		ok, err := s.DB.UpdateTicketState(ctx, current.State(), &next)
		if err != nil {
			return nil, persistence("update ticket", err)
		}
		if !ok {
			s.Logger.Debug("TICKET", fmt.Sprintf("Concurrent update on %s, re-evaluating (attempt %d)", id, attempt))
			continue
		}

		effects := PlanEffects(*current, next)
		metrics.TrackTransition(string(current.Status), string(next.Status))
		s.Logger.LogTicket("TRANSITION", id, fmt.Sprintf("%s/%s -> %s/%s, effects %v",
			current.Status, current.Tier, next.Status, next.Tier, effects))

		if s.Notifier != nil && len(effects) > 0 {
			s.Notifier.Dispatch(next, current.State(), effects)
		}
		return &next, nil
	}
	return nil, ErrConcurrentUpdate
}

// PlanEffects lists the side effects owed for a committed change from
// before to after. It is empty when neither status nor tier changed.
func PlanEffects(before, after models.Ticket) []models.Effect {
	if before.State() == after.State() {
		return nil
	}

	var effects []models.Effect
	statusChanged := before.Status != after.Status
	switch {
	case statusChanged && after.Status == models.StatusPaid:
		effects = append(effects,
			models.Effect{Kind: models.EffectEmail},
			models.Effect{Kind: models.EffectWebhook, Action: models.WebhookAppend})
	case statusChanged && after.Status == models.StatusCheckedIn:
		effects = append(effects,
			models.Effect{Kind: models.EffectWebhook, Action: models.WebhookUpdate},
			models.Effect{Kind: models.EffectRealtime})
	default:
		effects = append(effects, models.Effect{Kind: models.EffectWebhook, Action: models.WebhookAppend})
	}
	return append(effects, models.Effect{Kind: models.EffectAudit})
}
