package indicator

import "math"

func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

// StdDev with ddof degrees of freedom removed (0 = population, 1 = sample).
// Returns 0 when there are not enough observations.
func StdDev(x []float64, ddof int) float64 {
	n := len(x) - ddof
	if n <= 0 || len(x) == 0 {
		return 0
	}
	m := Mean(x)
	var ss float64
	for _, v := range x {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n))
}

// AnnualizedVolatility is the population stdev of daily returns scaled by √252.
func AnnualizedVolatility(returns []float64) float64 {
	return StdDev(returns, 0) * math.Sqrt(TradingDays)
}

// Returns converts closes into simple returns; len(out) == len(closes)-1.
func Returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out[i-1] = closes[i]/closes[i-1] - 1
	}
	return out
}
