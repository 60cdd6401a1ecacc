package traceenergy

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
)

// directCorrelationWork is the len(signal)*len(pattern) product above which
// correlation switches from direct summation to FFT.
const directCorrelationWork = 1 << 24

// peakTolerance is the relative slack used when picking the first maximum of
// an FFT correlation, whose values carry rounding noise.
const peakTolerance = 1e-9

// Correlate returns the valid-mode cross-correlation of signal against
// pattern: out[k] = sum_j signal[k+j]*pattern[j], k = 0..len(signal)-len(pattern).
func Correlate(signal, pattern []float64) ([]float64, error) {
	if len(pattern) == 0 || len(signal) < len(pattern) {
		return nil, ErrPatternTooLong
	}
	if !usesFFT(len(signal), len(pattern)) {
		return correlateDirect(signal, pattern), nil
	}
	return correlateFFT(signal, pattern), nil
}

func usesFFT(signalLen, patternLen int) bool {
	return signalLen*patternLen > directCorrelationWork
}

func correlateDirect(signal, pattern []float64) []float64 {
	n := len(signal) - len(pattern) + 1
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		out[k] = floats.Dot(signal[k:k+len(pattern)], pattern)
	}
	return out
}

func correlateFFT(signal, pattern []float64) []float64 {
	size := nextPow2(len(signal) + len(pattern) - 1)
	a := make([]float64, size)
	b := make([]float64, size)
	copy(a, signal)
	copy(b, pattern)

	fa := fft.FFTReal(a)
	fb := fft.FFTReal(b)
	for i := range fa {
		fa[i] *= cmplx.Conj(fb[i])
	}
	inv := fft.IFFT(fa)

	n := len(signal) - len(pattern) + 1
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		out[k] = real(inv[k])
	}
	return out
}

// FirstPeak returns the lowest index holding the maximum of values.
func FirstPeak(values []float64) (int, float64) {
	return firstPeakWithin(values, 0)
}

// firstPeakWithin treats values within tol (relative to the maximum) of the
// maximum as ties.
func firstPeakWithin(values []float64, tol float64) (int, float64) {
	if len(values) == 0 {
		return -1, math.NaN()
	}
	peak := floats.Max(values)
	slack := tol * math.Max(math.Abs(peak), 1)
	for i, v := range values {
		if v >= peak-slack {
			return i, v
		}
	}
	return floats.MaxIdx(values), peak
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
