package models

// Stats is derived from a single snapshot of the ticket table.
type Stats struct {
	Tiers           map[Tier]TierInfo `json:"tiers"`
	ByStatus        map[Status]int    `json:"byStatus"`
	TotalRegistered int               `json:"totalRegistered"`
	TotalCheckedIn  int               `json:"totalCheckedIn"`
}

type StatsResponse struct {
	Stats   *Stats   `json:"stats"`
	Tickets []Ticket `json:"tickets"`
}
