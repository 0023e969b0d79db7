package domain

const (
	// BinCount is the number of physical output bins.
	BinCount = 10

	// DefaultBin receives every card that matches no criteria or could not be identified.
	DefaultBin = 10

	// NoTypeFilter is the sentinel the control panel submits when no type is selected.
	NoTypeFilter = "-none-"

	// Colorless is the color marker that selects cards without any color.
	Colorless = "C"
)
