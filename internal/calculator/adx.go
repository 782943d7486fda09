package calculator

import (
	"errors"
	"math"

	"CryptoSentinel/internal/model"
)

// ErrInsufficientData is returned when there are too few bars for a calculation.
var ErrInsufficientData = errors.New("not enough data")

// CalculateADX computes the Wilder-smoothed Average Directional Index over the given period.
// Requires at least 2*period bars.
func CalculateADX(bars []model.OHLCV, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(bars) < 2*period {
		return 0, ErrInsufficientData
	}

	n := len(bars) - 1
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < len(bars); i++ {
		cur, prev := bars[i], bars[i-1]
		tr[i-1] = math.Max(cur.High-cur.Low, math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))

		up := cur.High - prev.High
		down := prev.Low - cur.Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}

	// Initial sums over the first `period` moves
	var atr, pdm, mdm float64
	for i := 0; i < period; i++ {
		atr += tr[i]
		pdm += plusDM[i]
		mdm += minusDM[i]
	}
	dxs := []float64{directionalIndex(atr, pdm, mdm)}

	// Wilder smoothing for remaining moves
	p := float64(period)
	for i := period; i < n; i++ {
		atr = atr - atr/p + tr[i]
		pdm = pdm - pdm/p + plusDM[i]
		mdm = mdm - mdm/p + minusDM[i]
		dxs = append(dxs, directionalIndex(atr, pdm, mdm))
	}

	var adx float64
	for i := 0; i < period; i++ {
		adx += dxs[i]
	}
	adx /= p
	for i := period; i < len(dxs); i++ {
		adx = (adx*(p-1) + dxs[i]) / p
	}
	return adx, nil
}

func directionalIndex(atr, pdm, mdm float64) float64 {
	if atr == 0 {
		return 0
	}
	plusDI := 100 * pdm / atr
	minusDI := 100 * mdm / atr
	sum := plusDI + minusDI
	if sum == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / sum
}
