package sensor_test

import (
	"testing"

	"github.com/aretw0/cardsort/pkg/adapters/memory"
	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/aretw0/cardsort/pkg/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe_Polarity(t *testing.T) {
	board := memory.NewBoard()

	tests := []struct {
		name      string
		activeLow bool
		raw       domain.Level
		triggered bool
	}{
		{"active high blocked", false, domain.High, true},
		{"active high clear", false, domain.Low, false},
		{"active low blocked", true, domain.Low, true},
		{"active low clear", true, domain.High, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board.SetInput(8, tt.raw)
			p := sensor.Probe{Board: board, Pin: 8, ActiveLow: tt.activeLow}

			r, err := p.Read()
			require.NoError(t, err)
			assert.Equal(t, 8, r.Pin)
			assert.Equal(t, tt.raw, r.Raw)
			assert.Equal(t, tt.triggered, r.Triggered)
		})
	}
}
