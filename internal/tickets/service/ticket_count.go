package tickets

import (
	"context"

	"onfa-ticketing/internal/models"
)

// GetStats projects one snapshot of the ticket table. The returned list is
// the same snapshot, newest first.
func (s *TicketService) GetStats(ctx context.Context) (*models.Stats, []models.Ticket, error) {
	list, err := s.DB.ListTickets(ctx)
	if err != nil {
		return nil, nil, persistence("list tickets", err)
	}
	if list == nil {
		list = []models.Ticket{}
	}
	return s.Aggregate(list), list, nil
}

func (s *TicketService) Aggregate(list []models.Ticket) *models.Stats {
	stats := &models.Stats{
		Tiers:           make(map[models.Tier]models.TierInfo, len(models.AllTiers)),
		ByStatus:        make(map[models.Status]int, len(models.AllStatuses)),
		TotalRegistered: len(list),
	}
	for _, st := range models.AllStatuses {
		stats.ByStatus[st] = 0
	}

	counts := make(map[models.Tier]int, len(models.AllTiers))
	for _, t := range list {
		counts[t.Tier]++
		stats.ByStatus[t.Status]++
		if t.Status == models.StatusCheckedIn {
			stats.TotalCheckedIn++
		}
	}

	for _, tier := range models.AllTiers {
		stats.Tiers[tier] = s.tierInfo(tier, counts[tier])
	}
	return stats
}

// TierAvailability is the public view used by the registration form.
func (s *TicketService) TierAvailability(ctx context.Context) ([]models.TierInfo, error) {
	out := make([]models.TierInfo, 0, len(models.AllTiers))
	for _, tier := range models.AllTiers {
		n, err := s.DB.CountByTier(ctx, tier)
		if err != nil {
			return nil, persistence("count tier", err)
		}
		out = append(out, s.tierInfo(tier, n))
	}
	return out, nil
}

func (s *TicketService) tierInfo(tier models.Tier, count int) models.TierInfo {
	limit := s.limits[tier]
	return models.TierInfo{
		Tier:      tier,
		Label:     tier.Label(),
		Count:     count,
		Limit:     limit,
		Remaining: max(0, limit-count),
	}
}
