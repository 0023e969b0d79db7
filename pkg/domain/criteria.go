package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// BinCriteria holds the operator filters for one bin.
// Empty fields are ignored; a criteria with every field empty never matches.
type BinCriteria struct {
	Name    string   `json:"name" yaml:"name" mapstructure:"name"`
	Type    string   `json:"type" yaml:"type" mapstructure:"type"`
	Colors  []string `json:"colors" yaml:"colors" mapstructure:"colors"`
	CMC     string   `json:"cmc" yaml:"cmc" mapstructure:"cmc"`
	SetCode string   `json:"set_symbol" yaml:"set_symbol" mapstructure:"set_symbol"`
}

// IsEmpty reports whether no filter field is set.
// A type equal to NoTypeFilter counts as unset.
func (c BinCriteria) IsEmpty() bool {
	return strings.TrimSpace(c.Name) == "" &&
		!c.HasTypeFilter() &&
		strings.TrimSpace(c.CMC) == "" &&
		strings.TrimSpace(c.SetCode) == "" &&
		len(ColorSet(c.Colors)) == 0
}

// HasTypeFilter reports whether the type field constrains the match.
func (c BinCriteria) HasTypeFilter() bool {
	t := strings.TrimSpace(c.Type)
	return t != "" && !strings.EqualFold(t, NoTypeFilter)
}

// CriteriaTable is the full set of bin criteria, index 0 holding bin 1.
type CriteriaTable [BinCount]BinCriteria

// Clone returns a copy that shares no color slices with t.
func (t CriteriaTable) Clone() CriteriaTable {
	for i := range t {
		if t[i].Colors != nil {
			t[i].Colors = append([]string(nil), t[i].Colors...)
		}
	}
	return t
}

// Bin returns the criteria for a 1-based bin number.
func (t CriteriaTable) Bin(bin int) (BinCriteria, error) {
	if bin < 1 || bin > BinCount {
		return BinCriteria{}, fmt.Errorf("%w: %d", ErrInvalidBin, bin)
	}
	return t[bin-1], nil
}

// TableFromMap builds a table from a bin-number keyed map. Missing bins stay empty.
func TableFromMap(m map[int]BinCriteria) (CriteriaTable, error) {
	var t CriteriaTable
	for bin, c := range m {
		if bin < 1 || bin > BinCount {
			return CriteriaTable{}, fmt.Errorf("%w: %d", ErrInvalidBin, bin)
		}
		t[bin-1] = c
	}
	return t, nil
}

// Map returns the table keyed by 1-based bin number.
func (t CriteriaTable) Map() map[int]BinCriteria {
	m := make(map[int]BinCriteria, BinCount)
	for i, c := range t {
		m[i+1] = c
	}
	return m
}

// MarshalJSON encodes the table as an object keyed by bin number ("1" to "10").
func (t CriteriaTable) MarshalJSON() ([]byte, error) {
	raw := make(map[string]BinCriteria, BinCount)
	for bin, c := range t.Map() {
		raw[strconv.Itoa(bin)] = c
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes an object keyed by bin number. Missing bins are left empty.
func (t *CriteriaTable) UnmarshalJSON(data []byte) error {
	var raw map[string]BinCriteria
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	byBin := make(map[int]BinCriteria, len(raw))
	for k, c := range raw {
		bin, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidBin, k)
		}
		byBin[bin] = c
	}
	table, err := TableFromMap(byBin)
	if err != nil {
		return err
	}
	*t = table
	return nil
}
