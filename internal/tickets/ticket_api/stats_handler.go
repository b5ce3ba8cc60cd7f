package ticket_api

import (
	"net/http"

	"onfa-ticketing/internal/models"
)

// Stats returns the dashboard counters together with the ticket list they
// were computed from. Payment images are left out of the list.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, list, err := h.TicketService.GetStats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.StatsResponse{Stats: stats, Tickets: list})
}

func (h *Handler) Tiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.TicketService.TierAvailability(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tiers": tiers})
}
