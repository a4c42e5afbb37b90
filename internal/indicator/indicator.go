// Package indicator implements the pure numeric functions behind the scanner:
// VWAP, RSI (Wilder), MACD, Heiken-Ashi, ATR, Bollinger width, VWAP-cross
// counting and orderbook imbalance, plus the bucketing of raw price-history
// ticks into synthetic candles.
//
// Everything here is a pure function over a candle sequence — no state, no
// I/O. The poller assembles the per-tick IndicatorSnapshot via BuildSnapshot.
package indicator

import (
	"math"
	"time"

	"polymarket-scanner/pkg/types"
)

// Default periods. These match the horizon the scorer was calibrated on.
const (
	RSIPeriod     = 14
	MACDFast      = 12
	MACDSlow      = 26
	MACDSignal    = 9
	ATRPeriod     = 14
	BollPeriod    = 20
	BollMult      = 2.0
	CrossWindow   = 20
	VolumeWindow  = 5 // "recent" volume = mean of last 5 bars
	SlopeLookback = 3
)

// squeezeWidth is the Bollinger width below which a squeeze is flagged.
const squeezeWidth = 0.02

// ————————————————————————————————————————————————————————————————————————
// Candle bucketing
// ————————————————————————————————————————————————————————————————————————

// BucketTicks converts price-history points into fixed-width synthetic
// candles. Volume counts ticks, not USD. Points must be in ascending time
// order; empty buckets are skipped (no fill-forward).
func BucketTicks(points []types.PricePoint, width time.Duration) []types.Candle {
	if len(points) == 0 || width <= 0 {
		return nil
	}

	sec := int64(width.Seconds())
	var candles []types.Candle
	var cur *types.Candle
	var curBucket int64 = -1

	for _, p := range points {
		bucket := p.T / sec
		if bucket != curBucket {
			if cur != nil {
				candles = append(candles, *cur)
			}
			cur = &types.Candle{
				Open:   p.P,
				High:   p.P,
				Low:    p.P,
				Close:  p.P,
				Volume: 1,
				Start:  time.Unix(bucket*sec, 0).UTC(),
			}
			curBucket = bucket
			continue
		}
		cur.High = math.Max(cur.High, p.P)
		cur.Low = math.Min(cur.Low, p.P)
		cur.Close = p.P
		cur.Volume++
	}
	if cur != nil {
		candles = append(candles, *cur)
	}
	return candles
}

// ————————————————————————————————————————————————————————————————————————
// VWAP
// ————————————————————————————————————————————————————————————————————————

// VWAPSeries returns the session VWAP at each bar: cumulative
// (typical price × volume) / cumulative volume. Bars with zero cumulative
// volume fall back to the running mean of typical prices (synthetic candles
// always carry volume, so this only matters for degenerate inputs).
func VWAPSeries(candles []types.Candle) []float64 {
	out := make([]float64, len(candles))
	var cumPV, cumVol, cumTypical float64
	for i, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		cumPV += typical * c.Volume
		cumVol += c.Volume
		cumTypical += typical
		if cumVol > 0 {
			out[i] = cumPV / cumVol
		} else {
			out[i] = cumTypical / float64(i+1)
		}
	}
	return out
}

// VWAPSlope returns (vwap[now] − vwap[now−lookback]) / lookback.
// Returns 0 when the series is shorter than lookback+1.
func VWAPSlope(vwaps []float64, lookback int) float64 {
	if lookback <= 0 || len(vwaps) <= lookback {
		return 0
	}
	last := len(vwaps) - 1
	return (vwaps[last] - vwaps[last-lookback]) / float64(lookback)
}

// VWAPCrossCount counts sign changes of (close − vwap) across the last
// window bars.
func VWAPCrossCount(candles []types.Candle, vwaps []float64, window int) int {
	n := len(candles)
	if n < 2 || len(vwaps) != n {
		return 0
	}
	start := n - window
	if start < 0 {
		start = 0
	}
	count := 0
	prev := 0.0
	for i := start; i < n; i++ {
		diff := candles[i].Close - vwaps[i]
		if i > start && diff*prev < 0 {
			count++
		}
		if diff != 0 {
			prev = diff
		}
	}
	return count
}

// FailedVWAPReclaim reports a failed reclaim: last close below vwap while
// the prior close was above the prior vwap.
func FailedVWAPReclaim(candles []types.Candle, vwaps []float64) bool {
	n := len(candles)
	if n < 2 || len(vwaps) != n {
		return false
	}
	return candles[n-1].Close < vwaps[n-1] && candles[n-2].Close > vwaps[n-2]
}

// ————————————————————————————————————————————————————————————————————————
// RSI (Wilder's smoothing)
// ————————————————————————————————————————————————————————————————————————

// RSISeries returns Wilder-smoothed RSI values aligned to closes.
// Entries are nil until at least period+1 closes exist.
func RSISeries(closes []float64, period int) []*float64 {
	out := make([]*float64, len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out[period] = rsiFrom(avgGain, avgLoss)
	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFrom(avgGain, avgLoss)
	}
	return out
}

func rsiFrom(avgGain, avgLoss float64) *float64 {
	var v float64
	if avgLoss == 0 {
		if avgGain == 0 {
			v = 50 // flat but not pinned; degeneracy comes from pinning
		} else {
			v = 100
		}
	} else {
		rs := avgGain / avgLoss
		v = 100 - 100/(1+rs)
	}
	return &v
}

// RSISlope returns the per-bar slope of RSI over lookback bars, or 0 when
// fewer than lookback+1 RSI values exist.
func RSISlope(series []*float64, lookback int) float64 {
	n := len(series)
	if lookback <= 0 || n <= lookback {
		return 0
	}
	last, prior := series[n-1], series[n-1-lookback]
	if last == nil || prior == nil {
		return 0
	}
	return (*last - *prior) / float64(lookback)
}

// ————————————————————————————————————————————————————————————————————————
// MACD
// ————————————————————————————————————————————————————————————————————————

// MACD computes the standard EMA-of-EMAs MACD and returns the latest values
// including the histogram delta (hist minus prior hist). Returns nil when
// fewer than slow+1 closes exist.
func MACD(closes []float64, fast, slow, signal int) *types.MACDResult {
	if len(closes) < slow+1 || fast <= 0 || slow <= fast || signal <= 0 {
		return nil
	}

	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)

	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := emaSeries(macdLine, signal)

	n := len(closes) - 1
	hist := macdLine[n] - signalLine[n]
	prevHist := macdLine[n-1] - signalLine[n-1]

	return &types.MACDResult{
		MACD:      macdLine[n],
		Signal:    signalLine[n],
		Hist:      hist,
		HistDelta: hist - prevHist,
	}
}

// emaSeries computes an exponential moving average with the standard
// 2/(period+1) smoothing, seeded with the first value.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// ————————————————————————————————————————————————————————————————————————
// Heiken-Ashi
// ————————————————————————————————————————————————————————————————————————

// HeikenAshi applies the standard recurrence and returns the transformed
// candles. The first HA open is (open+close)/2 of the first real candle.
func HeikenAshi(candles []types.Candle) []types.Candle {
	out := make([]types.Candle, len(candles))
	for i, c := range candles {
		haClose := (c.Open + c.High + c.Low + c.Close) / 4
		var haOpen float64
		if i == 0 {
			haOpen = (c.Open + c.Close) / 2
		} else {
			haOpen = (out[i-1].Open + out[i-1].Close) / 2
		}
		out[i] = types.Candle{
			Open:   haOpen,
			High:   math.Max(c.High, math.Max(haOpen, haClose)),
			Low:    math.Min(c.Low, math.Min(haOpen, haClose)),
			Close:  haClose,
			Volume: c.Volume,
			Start:  c.Start,
		}
	}
	return out
}

// CountConsecutive returns the color of the last Heiken-Ashi candle and the
// streak of consecutive same-color candles ending at it.
func CountConsecutive(ha []types.Candle) (types.HeikenColor, int) {
	if len(ha) == 0 {
		return types.HeikenGreen, 0
	}
	color := candleColor(ha[len(ha)-1])
	streak := 0
	for i := len(ha) - 1; i >= 0; i-- {
		if candleColor(ha[i]) != color {
			break
		}
		streak++
	}
	return color, streak
}

func candleColor(c types.Candle) types.HeikenColor {
	if c.Close >= c.Open {
		return types.HeikenGreen
	}
	return types.HeikenRed
}

// ————————————————————————————————————————————————————————————————————————
// ATR
// ————————————————————————————————————————————————————————————————————————

// ATR returns the EMA-smoothed average true range, or 0 when fewer than
// two candles exist.
func ATR(candles []types.Candle, period int) float64 {
	if len(candles) < 2 || period <= 0 {
		return 0
	}
	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		trs = append(trs, trueRange(candles[i], candles[i-1]))
	}
	smoothed := emaSeries(trs, period)
	return smoothed[len(smoothed)-1]
}

func trueRange(c, prev types.Candle) float64 {
	hl := c.High - c.Low
	hc := math.Abs(c.High - prev.Close)
	lc := math.Abs(c.Low - prev.Close)
	return math.Max(hl, math.Max(hc, lc))
}

// ATRPct returns ATR as a percentage of the last close.
func ATRPct(atr, lastClose float64) float64 {
	if lastClose == 0 {
		return 0
	}
	return atr / lastClose * 100
}

// ————————————————————————————————————————————————————————————————————————
// Bollinger width
// ————————————————————————————————————————————————————————————————————————

// BollWidth returns (upper − lower) / middle for the given period and
// multiplier, and whether the band is in a squeeze. Returns (0, false)
// when fewer than period closes exist or the middle band is zero.
func BollWidth(closes []float64, period int, mult float64) (float64, bool) {
	if len(closes) < period || period <= 0 {
		return 0, false
	}
	window := closes[len(closes)-period:]

	var sum float64
	for _, v := range window {
		sum += v
	}
	mean := sum / float64(period)
	if mean == 0 {
		return 0, false
	}

	var variance float64
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))

	width := (2 * mult * sd) / mean
	return width, width < squeezeWidth
}
