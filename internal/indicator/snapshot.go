package indicator

import (
	"polymarket-scanner/pkg/types"
)

// BuildSnapshot assembles the full per-tick indicator set from a candle
// series and the YES-token book summary. Returns the zero snapshot when
// the series is empty; pointer fields stay nil when the series is too
// short for the underlying indicator.
func BuildSnapshot(candles []types.Candle, depth DepthSummary) types.IndicatorSnapshot {
	var snap types.IndicatorSnapshot
	if len(candles) == 0 {
		return snap
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	snap.LastClose = closes[len(closes)-1]

	vwaps := VWAPSeries(candles)
	snap.VWAP = vwaps[len(vwaps)-1]
	snap.VWAPSlope = VWAPSlope(vwaps, SlopeLookback)
	snap.VWAPCrossCount = VWAPCrossCount(candles, vwaps, CrossWindow)
	snap.FailedVWAPReclaim = FailedVWAPReclaim(candles, vwaps)

	rsiSeries := RSISeries(closes, RSIPeriod)
	snap.RSI = rsiSeries[len(rsiSeries)-1]
	snap.RSISlope = RSISlope(rsiSeries, SlopeLookback)

	snap.MACD = MACD(closes, MACDFast, MACDSlow, MACDSignal)

	ha := HeikenAshi(candles)
	snap.HeikenColor, snap.HeikenStreak = CountConsecutive(ha)

	snap.ATR = ATR(candles, ATRPeriod)
	snap.ATRPct = ATRPct(snap.ATR, snap.LastClose)

	snap.BollWidth, snap.Squeeze = BollWidth(closes, BollPeriod, BollMult)

	snap.RecentVolume, snap.AvgVolume = volumeStats(candles, VolumeWindow)
	snap.OBImbalance = depth.Imbalance()

	return snap
}

// volumeStats returns the mean volume of the last window bars and the mean
// over the whole series.
func volumeStats(candles []types.Candle, window int) (recent, avg float64) {
	n := len(candles)
	if n == 0 {
		return 0, 0
	}
	var total float64
	for _, c := range candles {
		total += c.Volume
	}
	avg = total / float64(n)

	start := n - window
	if start < 0 {
		start = 0
	}
	var recentSum float64
	for _, c := range candles[start:] {
		recentSum += c.Volume
	}
	recent = recentSum / float64(n-start)
	return recent, avg
}

// Rebucket aggregates candles into wider bars (e.g. 1m → 5m) by grouping
// factor consecutive candles. Used for multi-timeframe confluence.
func Rebucket(candles []types.Candle, factor int) []types.Candle {
	if factor <= 1 || len(candles) == 0 {
		return candles
	}
	out := make([]types.Candle, 0, len(candles)/factor+1)
	for i := 0; i < len(candles); i += factor {
		end := i + factor
		if end > len(candles) {
			end = len(candles)
		}
		group := candles[i:end]
		agg := types.Candle{
			Open:  group[0].Open,
			High:  group[0].High,
			Low:   group[0].Low,
			Close: group[len(group)-1].Close,
			Start: group[0].Start,
		}
		for _, c := range group {
			if c.High > agg.High {
				agg.High = c.High
			}
			if c.Low < agg.Low {
				agg.Low = c.Low
			}
			agg.Volume += c.Volume
		}
		out = append(out, agg)
	}
	return out
}
