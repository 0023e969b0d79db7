package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cardsort/pkg/adapters/memory"
	"github.com/aretw0/cardsort/pkg/domain"
)

func TestExplainRoute(t *testing.T) {
	var table domain.CriteriaTable
	table[1] = domain.BinCriteria{Type: "Instant"}
	table[4] = domain.BinCriteria{Colors: []string{"R"}}
	store := memory.NewCriteriaStore(table)

	var out bytes.Buffer
	err := explainRoute(context.Background(), store,
		strings.NewReader(`{"name":"Lightning Bolt","type":"Instant","colors":["R"],"cmc":1}`), &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "[x] bin 2\n")
	assert.Contains(t, out.String(), "[x] bin 5\n")
	assert.Contains(t, out.String(), "[ ] bin 1\n")
	assert.Contains(t, out.String(), "Lightning Bolt -> bin 2\n")
}

func TestExplainRoute_Unmatched(t *testing.T) {
	store := memory.NewCriteriaStore(domain.CriteriaTable{})

	var out bytes.Buffer
	require.NoError(t, explainRoute(context.Background(), store, strings.NewReader(`{"name":"Sol Ring"}`), &out))
	assert.Contains(t, out.String(), "Sol Ring -> bin 10\n")
}

func TestExplainRoute_BadRecord(t *testing.T) {
	store := memory.NewCriteriaStore(domain.CriteriaTable{})
	err := explainRoute(context.Background(), store, strings.NewReader(`not json`), &bytes.Buffer{})
	assert.ErrorContains(t, err, "invalid card record")
}
