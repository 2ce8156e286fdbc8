package mseed

import "math"

// Rate decodes a SEED sample rate factor and multiplier into samples per
// second. A zero factor or multiplier means the record carries no timing
// information and decodes to 0.
func Rate(factor, multiplier int16) float64 {
	if factor == 0 || multiplier == 0 {
		return 0
	}
	var rate float64
	if factor > 0 {
		rate = float64(factor)
	} else {
		rate = 1 / -float64(factor)
	}
	if multiplier > 0 {
		rate *= float64(multiplier)
	} else {
		rate /= -float64(multiplier)
	}
	return rate
}

// FactorMultiplier picks a factor and multiplier pair that decodes back to
// rate. Rates of 1 Hz and above keep two decimal places where int16 allows;
// slower rates are written as a scaled period.
func FactorMultiplier(rate float64) (int16, int16) {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, 0
	}
	if rate >= 1 {
		for _, div := range []float64{100, 10, 1} {
			if f := math.Round(rate * div); f <= math.MaxInt16 {
				return int16(f), int16(-div)
			}
		}
		for mult := 10.0; mult <= math.MaxInt16; mult *= 10 {
			if f := math.Round(rate / mult); f <= math.MaxInt16 {
				return int16(f), int16(mult)
			}
		}
		return math.MaxInt16, math.MaxInt16
	}
	if math.Abs(rate-1.0/60) < 1e-9 {
		return -60, 1
	}

	period := 1 / rate
	if period > math.MaxInt16 {
		// slower than one sample every ~9 hours: divide instead of multiply
		div := 10.0
		for math.Round(period/div) > math.MaxInt16 && div < math.MaxInt16/10 {
			div *= 10
		}
		return int16(-math.Round(period / div)), int16(-div)
	}
	mult := 1.0
	for mult*10 <= math.MaxInt16 && math.Round(period*mult*10) <= math.MaxInt16 {
		mult *= 10
	}
	return int16(-math.Round(period * mult)), int16(mult)
}
