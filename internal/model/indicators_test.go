package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReading(t *testing.T) {
	assert.Nil(t, Reading(math.NaN()))
	assert.Nil(t, Reading(math.Inf(1)))
	assert.Nil(t, Reading(math.Inf(-1)))
	require.NotNil(t, Reading(0))
	assert.Equal(t, 0.0, *Reading(0))
}

func TestIndicatorSnapshot_JSONKeys(t *testing.T) {
	snap := IndicatorSnapshot{RSI: Reading(25), EMA: Reading(101), SMA: Reading(99)}
	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rsi":25,"ema":101,"sma":99}`, string(raw))
}
