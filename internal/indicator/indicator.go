package indicator

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/mfcastro/ativo/internal/core"
)

// RiskLevel is a coarse classification derived from annualized volatility.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
	RiskUnknown  RiskLevel = "unknown"
)

// Indicators is the stateless aggregate computed fresh per call from a
// historical series. Windowed fields are nil when the series is too
// short for their window; they are never extrapolated from partial data.
type Indicators struct {
	Volatility  *float64 `json:"volatility,omitempty"`
	MaxDrawdown float64  `json:"maxDrawdown"`

	SMA20  *float64 `json:"sma20,omitempty"`
	SMA50  *float64 `json:"sma50,omitempty"`
	SMA200 *float64 `json:"sma200,omitempty"`

	EMA12 *float64 `json:"ema12,omitempty"`
	EMA26 *float64 `json:"ema26,omitempty"`
	MACD  *float64 `json:"macd,omitempty"`

	RSI14 *float64 `json:"rsi14,omitempty"`

	BollingerUpper  *float64 `json:"bollingerUpper,omitempty"`
	BollingerMiddle *float64 `json:"bollingerMiddle,omitempty"`
	BollingerLower  *float64 `json:"bollingerLower,omitempty"`

	ATR14 *float64 `json:"atr14,omitempty"`

	Risk RiskLevel `json:"risk"`
}

const (
	rsiPeriod       = 14
	atrPeriod       = 14
	bollingerPeriod = 20
	bollingerWidth  = 2.0

	// tradingDays annualizes daily return volatility.
	tradingDays = 252
)

// Calculate derives all indicators from an ascending daily series.
// Pure and deterministic; safe to run inline on any goroutine.
func Calculate(series []core.PricePoint) Indicators {
	closes := make([]float64, 0, len(series))
	for _, p := range series {
		closes = append(closes, p.Close)
	}

	ind := Indicators{
		MaxDrawdown: maxDrawdown(closes),
		SMA20:       last(SMA(closes, 20)),
		SMA50:       last(SMA(closes, 50)),
		SMA200:      last(SMA(closes, 200)),
		EMA12:       last(EMA(closes, 12)),
		EMA26:       last(EMA(closes, 26)),
		Risk:        RiskUnknown,
	}

	returns := dailyReturns(closes)
	if len(returns) >= 2 {
		vol := stat.StdDev(returns, nil) * math.Sqrt(tradingDays) * 100
		ind.Volatility = &vol
		ind.Risk = classifyRisk(vol)
	}

	if ind.EMA12 != nil && ind.EMA26 != nil {
		macd := *ind.EMA12 - *ind.EMA26
		ind.MACD = &macd
	}

	ind.RSI14 = rsi(returns, rsiPeriod)
	ind.BollingerMiddle, ind.BollingerUpper, ind.BollingerLower = bollinger(closes, bollingerPeriod, bollingerWidth)
	ind.ATR14 = atr(series, atrPeriod)

	return ind
}

// dailyReturns computes r_i = (close_i - close_i-1) / close_i-1.
func dailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	return returns
}

// maxDrawdown scans left to right tracking the running peak and returns
// the largest percentage decline from it.
func maxDrawdown(closes []float64) float64 {
	var maxDD, peak float64
	for _, c := range closes {
		if c > peak {
			peak = c
		}
		if peak > 0 {
			dd := (peak - c) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// rsi computes the Relative Strength Index over the last period return
// samples: average gain divided by average absolute loss. A window with
// no losses saturates at 100.
func rsi(returns []float64, period int) *float64 {
	if len(returns) < period {
		return nil
	}

	window := returns[len(returns)-period:]
	var gains, losses float64
	for _, r := range window {
		if r > 0 {
			gains += r
		} else {
			losses += -r
		}
	}

	if losses == 0 {
		v := 100.0
		return &v
	}

	rs := (gains / float64(period)) / (losses / float64(period))
	v := 100 - 100/(1+rs)
	return &v
}

// bollinger returns the middle/upper/lower bands: SMA(period) flanked
// by width standard deviations of the last period closes.
func bollinger(closes []float64, period int, width float64) (middle, upper, lower *float64) {
	if len(closes) < period {
		return nil, nil, nil
	}

	window := closes[len(closes)-period:]
	m := stat.Mean(window, nil)
	sd := stat.StdDev(window, nil)

	u := m + width*sd
	l := m - width*sd
	return &m, &u, &l
}

// atr computes the Average True Range: the mean of
// max(high-low, |high-prevClose|, |low-prevClose|) over the last period
// samples. Needs period+1 points for the first previous close.
func atr(series []core.PricePoint, period int) *float64 {
	if len(series) < period+1 {
		return nil
	}

	window := series[len(series)-period-1:]
	var sum float64
	for i := 1; i < len(window); i++ {
		tr := window[i].High - window[i].Low
		if v := math.Abs(window[i].High - window[i-1].Close); v > tr {
			tr = v
		}
		if v := math.Abs(window[i].Low - window[i-1].Close); v > tr {
			tr = v
		}
		sum += tr
	}

	v := sum / float64(period)
	return &v
}

func classifyRisk(volatility float64) RiskLevel {
	switch {
	case volatility < 15:
		return RiskLow
	case volatility < 25:
		return RiskModerate
	case volatility < 40:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}
