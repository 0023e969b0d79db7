package process

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/cardsort/pkg/domain"
)

// UnknownSet is the set code used when the recognizer's value is unusable.
const UnknownSet = "Unknown"

// output is the JSON object printed by the recognizer.
type output struct {
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Colors   []string  `json:"colors"`
	CMC      flexFloat `json:"cmc"`
	SetCode  string    `json:"set_symbol"`
	ImageURL string    `json:"card_identified_url"`
	Error    *string   `json:"error"`
}

// flexFloat accepts a JSON number, a numeric string, or any other string (as zero).
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// Parse decodes recognizer stdout. The recognizer may print diagnostics before its result,
// so the last line holding a JSON object wins.
func Parse(stdout []byte) (domain.Identification, error) {
	var last []byte
	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) > 0 && line[0] == '{' {
			last = append(last[:0], line...)
		}
	}
	if err := scanner.Err(); err != nil {
		return domain.Identification{}, fmt.Errorf("%w: %v", domain.ErrIdentificationParse, err)
	}
	if last == nil {
		return domain.Identification{}, fmt.Errorf("%w: no JSON object in output", domain.ErrIdentificationParse)
	}

	var out output
	if err := json.Unmarshal(last, &out); err != nil {
		return domain.Identification{}, fmt.Errorf("%w: %v", domain.ErrIdentificationParse, err)
	}
	if out.Error != nil {
		msg := strings.TrimSpace(*out.Error)
		if msg == "" {
			msg = "recognizer reported an error"
		}
		return domain.Identification{Failure: msg}, nil
	}
	if strings.TrimSpace(out.Name) == "" {
		return domain.Identification{}, fmt.Errorf("%w: card has no name", domain.ErrIdentificationParse)
	}

	return domain.Identification{Card: domain.Card{
		Name:     out.Name,
		Type:     out.Type,
		Colors:   out.Colors,
		CMC:      float64(out.CMC),
		SetCode:  NormalizeSetCode(out.SetCode),
		ImageURL: out.ImageURL,
	}}, nil
}

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]+`)

// NormalizeSetCode keeps the first alphanumeric token of a set code, upper-cased and cut to
// five characters. Tokens shorter than three characters become UnknownSet.
func NormalizeSetCode(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch s {
	case "", "UNKNOWN", "N/A", "NONE", "NULL", "SET NOT FOUND":
		return UnknownSet
	}
	token := nonAlnum.Split(s, 2)[0]
	if len(token) < 3 {
		return UnknownSet
	}
	if len(token) > 5 {
		token = token[:5]
	}
	return token
}
