// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Normality is the outcome of a normality test.
type Normality struct {
	Test      string `json:"test"`
	Statistic Float  `json:"statistic"`
	PValue    Float  `json:"p_value"`
	Critical  Float  `json:"critical_value,omitempty"`
	Normal    bool   `json:"normal"`
	N         int    `json:"n"`
}

const maxShapiroN = 5000

var (
	swC1 = []float64{0, 0.221157, -0.147981, -2.071190, 4.434685, -2.706056}
	swC2 = []float64{0, 0.042981, -0.293762, -1.752461, 5.682633, -3.582633}
	swC3 = []float64{0.544, -0.39978, 0.025054, -6.714e-4}
	swC4 = []float64{1.3822, -0.77857, 0.062767, -0.0020322}
	swC5 = []float64{-1.5861, -0.31082, -0.083751, 0.0038915}
	swC6 = []float64{-0.4803, -0.082676, 0.0030302}
)

func poly(c []float64, x float64) float64 {
	r := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		r = r*x + c[i]
	}
	return r
}

// shapiroCoefficients returns the first n/2 Shapiro-Wilk weights using
// Royston's approximation.
func shapiroCoefficients(n int) []float64 {
	half := n / 2
	a := make([]float64, half)
	if n == 3 {
		a[0] = math.Sqrt2 / 2
		return a
	}
	an := float64(n)
	m := make([]float64, half)
	summ2 := 0.0
	for i := range m {
		m[i] = distuv.UnitNormal.Quantile((float64(i+1) - 0.375) / (an + 0.25))
		summ2 += m[i] * m[i]
	}
	summ2 *= 2
	ssumm2 := math.Sqrt(summ2)
	rsn := 1 / math.Sqrt(an)
	a1 := poly(swC1, rsn) - m[0]/ssumm2

	first := 1
	var fac float64
	if n > 5 {
		first = 2
		a2 := -m[1]/ssumm2 + poly(swC2, rsn)
		fac = math.Sqrt((summ2 - 2*m[0]*m[0] - 2*m[1]*m[1]) / (1 - 2*a1*a1 - 2*a2*a2))
		a[1] = a2
	} else {
		fac = math.Sqrt((summ2 - 2*m[0]*m[0]) / (1 - 2*a1*a1))
	}
	a[0] = a1
	for i := first; i < half; i++ {
		a[i] = -m[i] / fac
	}
	return a
}

// ShapiroWilk computes the W statistic and its p-value (Royston 1995).
// The sample is normal when p > alpha.
func ShapiroWilk(x []float64, alpha float64) (Normality, error) {
	n := len(x)
	res := Normality{Test: "shapiro-wilk", N: n, Critical: Float(math.NaN())}
	if n < 3 {
		return res, fmt.Errorf("shapiro-wilk needs at least 3 values, got %d: %w", n, ErrInsufficientData)
	}
	if n > maxShapiroN {
		return res, fmt.Errorf("shapiro-wilk accepts at most %d values, got %d: %w", maxShapiroN, n, ErrTooManyValues)
	}
	s := sortedCopy(x)
	if s[n-1]-s[0] == 0 {
		return res, fmt.Errorf("shapiro-wilk: %w", ErrZeroVariance)
	}
	a := shapiroCoefficients(n)
	mean := stat.Mean(s, nil)
	ss := 0.0
	for _, v := range s {
		ss += (v - mean) * (v - mean)
	}
	num := 0.0
	for i, ai := range a {
		num += ai * (s[n-1-i] - s[i])
	}
	w := num * num / ss
	if w > 1 {
		w = 1
	}
	p := shapiroPValue(w, n)
	res.Statistic = Float(w)
	res.PValue = Float(p)
	res.Normal = p > alpha
	return res, nil
}

func shapiroPValue(w float64, n int) float64 {
	if n == 3 {
		p := 6 / math.Pi * (math.Asin(math.Sqrt(w)) - math.Pi/3)
		return math.Max(0, math.Min(1, p))
	}
	an := float64(n)
	y := math.Log(1 - w)
	var mu, sigma float64
	if n <= 11 {
		gamma := -2.273 + 0.459*an
		if y >= gamma {
			return 0
		}
		y = -math.Log(gamma - y)
		mu = poly(swC3, an)
		sigma = math.Exp(poly(swC4, an))
	} else {
		ln := math.Log(an)
		mu = poly(swC5, ln)
		sigma = math.Exp(poly(swC6, ln))
	}
	return distuv.UnitNormal.Survival((y - mu) / sigma)
}

var adCritical = []float64{0.576, 0.656, 0.787, 0.918, 1.092}

// AndersonDarling computes A² against a normal with estimated mean and
// standard deviation. Normal is decided at the 5% critical value; the
// p-value uses the D'Agostino-Stephens approximation on the adjusted A².
func AndersonDarling(x []float64) (Normality, error) {
	n := len(x)
	res := Normality{Test: "anderson-darling", N: n}
	if n < 8 {
		return res, fmt.Errorf("anderson-darling needs at least 8 values, got %d: %w", n, ErrInsufficientData)
	}
	s := sortedCopy(x)
	mean, std := stat.MeanStdDev(s, nil)
	if std == 0 {
		return res, fmt.Errorf("anderson-darling: %w", ErrZeroVariance)
	}
	an := float64(n)
	sum := 0.0
	for i := 0; i < n; i++ {
		lo := (s[i] - mean) / std
		hi := (s[n-1-i] - mean) / std
		sum += float64(2*i+1) * (math.Log(distuv.UnitNormal.CDF(lo)) + math.Log(distuv.UnitNormal.Survival(hi)))
	}
	a2 := -an - sum/an
	crit := adCritical[2] / (1 + 4/an - 25/(an*an))

	res.Statistic = Float(a2)
	res.Critical = Float(crit)
	res.PValue = Float(andersonPValue(a2 * (1 + 0.75/an + 2.25/(an*an))))
	res.Normal = a2 < crit
	return res, nil
}

// andersonPValue is 0 past the turning point of the upper quadratic, which
// also covers an A² that overflowed to +Inf.
func andersonPValue(a float64) float64 {
	var p float64
	switch {
	case a >= 153:
		return 0
	case a >= 0.6:
		p = math.Exp(1.2937 - 5.709*a + 0.0186*a*a)
	case a >= 0.34:
		p = math.Exp(0.9177 - 4.279*a - 1.38*a*a)
	case a >= 0.2:
		p = 1 - math.Exp(-8.318+42.796*a-59.938*a*a)
	default:
		p = 1 - math.Exp(-13.436+101.14*a-223.73*a*a)
	}
	return math.Max(0, math.Min(1, p))
}
