package indicator

import "math"

// TradingDays is the annualization factor for daily series.
const TradingDays = 252

// EMA uses the standard smoothing 2/(p+1) seeded with the first observation,
// so every index has a value. The seeding rule is shared by every caller.
func EMA(x []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	k := 2.0 / float64(p+1)
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = x[i]*k + out[i-1]*(1-k)
	}
	return out
}

// SMA over the last `p` points; NaNs for warmup.
func SMA(x []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	var sum float64
	for i := range x {
		sum += x[i]
		if i >= p {
			sum -= x[i-p]
		}
		if i < p-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(p)
	}
	return out
}

// RSI with Wilder smoothing. NaNs until index p; nil if there is not enough data.
func RSI(x []float64, p int) []float64 {
	if p <= 0 || len(x) < p+1 {
		return nil
	}
	out := make([]float64, len(x))
	for i := 0; i < p; i++ {
		out[i] = math.NaN()
	}

	var avgGain, avgLoss float64
	for i := 1; i <= p; i++ {
		gain, loss := change(x[i-1], x[i])
		avgGain += gain
		avgLoss += loss
	}
	avgGain /= float64(p)
	avgLoss /= float64(p)
	out[p] = rsiValue(avgGain, avgLoss)

	for i := p + 1; i < len(x); i++ {
		gain, loss := change(x[i-1], x[i])
		avgGain = (avgGain*float64(p-1) + gain) / float64(p)
		avgLoss = (avgLoss*float64(p-1) + loss) / float64(p)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func change(prev, cur float64) (gain, loss float64) {
	d := cur - prev
	if d > 0 {
		return d, 0
	}
	return 0, -d
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
