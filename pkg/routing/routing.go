// Package routing decides which bin an identified card goes to.
//
// Route is a pure function: bins are checked in ascending order and the first bin whose
// criteria all match wins. Cards that match nothing go to domain.DefaultBin.
package routing

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/cardsort/pkg/domain"
)

// Route returns the bin (1-10) for card.
func Route(card domain.Card, table domain.CriteriaTable) int {
	for i, c := range table {
		if Matches(card, c) {
			return i + 1
		}
	}
	return domain.DefaultBin
}

// Decision records the outcome of checking one bin.
type Decision struct {
	Bin     int
	Matched bool
}

// Explain checks every bin and reports each outcome, for tracing.
// The routed bin is the first matched entry, or domain.DefaultBin.
func Explain(card domain.Card, table domain.CriteriaTable) []Decision {
	out := make([]Decision, 0, len(table))
	for i, c := range table {
		out = append(out, Decision{Bin: i + 1, Matched: Matches(card, c)})
	}
	return out
}

// Matches reports whether card satisfies every non-empty field of c.
// Empty criteria never match.
func Matches(card domain.Card, c domain.BinCriteria) bool {
	if c.IsEmpty() {
		return false
	}
	if name := strings.TrimSpace(c.Name); name != "" && !matchName(card.Name, name) {
		return false
	}
	if c.HasTypeFilter() && !containsFold(card.Type, strings.TrimSpace(c.Type)) {
		return false
	}
	if cmc := strings.TrimSpace(c.CMC); cmc != "" && !matchCMC(card.CMC, cmc) {
		return false
	}
	if set := strings.TrimSpace(c.SetCode); set != "" && !containsFold(card.SetCode, set) {
		return false
	}
	if len(domain.ColorSet(c.Colors)) > 0 && !matchColors(card.Colors, c.Colors) {
		return false
	}
	return true
}

// matchName handles "<letter>-<letter>" ranges against the first letter of the name.
// Anything else, including malformed ranges, is a substring filter.
func matchName(name, filter string) bool {
	name = strings.TrimSpace(name)
	if lo, hi, ok := parseRange(filter); ok {
		if name == "" {
			return false
		}
		first, _ := utf8.DecodeRuneInString(name)
		first = unicode.ToUpper(first)
		return first >= lo && first <= hi
	}
	return containsFold(name, filter)
}

func parseRange(filter string) (lo, hi rune, ok bool) {
	parts := strings.Split(filter, "-")
	if len(parts) != 2 {
		return 0, 0, false
	}
	a, b := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if utf8.RuneCountInString(a) != 1 || utf8.RuneCountInString(b) != 1 {
		return 0, 0, false
	}
	lo, _ = utf8.DecodeRuneInString(a)
	hi, _ = utf8.DecodeRuneInString(b)
	lo, hi = unicode.ToUpper(lo), unicode.ToUpper(hi)
	if !unicode.IsLetter(lo) || !unicode.IsLetter(hi) || lo > hi {
		return 0, 0, false
	}
	return lo, hi, true
}

func matchCMC(value float64, filter string) bool {
	want, err := strconv.ParseFloat(filter, 64)
	if err != nil {
		return false
	}
	return want == value
}

// matchColors requires exact set equality; the colorless marker alone selects cards
// with no colors at all.
func matchColors(cardColors, filter []string) bool {
	want := domain.ColorSet(filter)
	have := domain.ColorSet(cardColors)
	if _, colorless := want[domain.Colorless]; colorless && len(want) == 1 {
		return len(have) == 0
	}
	if len(want) != len(have) {
		return false
	}
	for c := range want {
		if _, ok := have[c]; !ok {
			return false
		}
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
