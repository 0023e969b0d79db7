package domain

import (
	"sort"
	"strings"
)

// Card is the structured record returned by the recognizer for an identified card.
type Card struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Colors   []string `json:"colors"`
	CMC      float64  `json:"cmc"`
	SetCode  string   `json:"set_symbol"`
	ImageURL string   `json:"card_identified_url,omitempty"`
}

// ColorKey returns the card colors as a sorted, de-duplicated, comma separated string.
func (c Card) ColorKey() string {
	return ColorKey(c.Colors)
}

// ColorKey normalizes a color list into a stable key.
func ColorKey(colors []string) string {
	set := ColorSet(colors)
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// ColorSet converts a color list into a set, trimming and upper-casing each entry.
func ColorSet(colors []string) map[string]struct{} {
	set := make(map[string]struct{}, len(colors))
	for _, c := range colors {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		set[c] = struct{}{}
	}
	return set
}

// Identification is the outcome of one recognizer call.
// Exactly one of Card or Failure is meaningful.
type Identification struct {
	Card    Card
	Failure string
}

// Failed reports whether the recognizer returned an explicit failure marker.
func (i Identification) Failed() bool {
	return i.Failure != ""
}
