package domain

// Counters are the durable totals maintained by the sorter.
type Counters struct {
	Lifetime int64 `json:"moves"`
	Monthly  int64 `json:"monthly_moves"`
	Failed   int64 `json:"failed_reads"`
}

// Status is the snapshot served to the control surface.
type Status struct {
	Running        bool     `json:"sorting_active"`
	Stopping       bool     `json:"stopping"`
	Counters       Counters `json:"counters"`
	LastCardURL    string   `json:"card_identified_url"`
	LastCardName   string   `json:"last_card_name,omitempty"`
	ArchiveEnabled bool     `json:"archive_enabled"`
}
