// Package features extracts simple per-frame audio features (volume,
// pitch, spectral centroid proxy, zero-crossing rate) used to drive voice
// activity detection and multi-signal fusion.
package features

import "math"

// Features holds the per-frame measurements extracted from a window of
// float32 PCM samples.
type Features struct {
	VolumeDB          float32
	PitchHz           float32
	SpectralCentroid  float32
	ZeroCrossingRate  float32
}

// IsLikelySpeech reports whether the combination of pitch and volume falls
// within the typical range for human speech.
func (f Features) IsLikelySpeech() bool {
	return f.PitchHz > 50 && f.PitchHz < 400 && f.VolumeDB > -50
}

// Extract computes all features for a frame at the given sample rate.
func Extract(audio []float32, sampleRate int) Features {
	return Features{
		VolumeDB:         Volume(audio),
		PitchHz:          EstimatePitch(audio, sampleRate),
		SpectralCentroid: SpectralCentroid(audio, sampleRate),
		ZeroCrossingRate: ZeroCrossingRate(audio),
	}
}

// Volume returns the frame's RMS level in decibels full scale. An empty
// frame, or one whose RMS is exactly zero (pure silence), returns negative
// infinity.
func Volume(audio []float32) float32 {
	if len(audio) == 0 {
		return float32(math.Inf(-1))
	}
	var meanSquare float64
	for _, x := range audio {
		meanSquare += float64(x) * float64(x)
	}
	meanSquare /= float64(len(audio))
	rms := math.Sqrt(meanSquare)
	if rms > 0 {
		return float32(20 * math.Log10(rms))
	}
	return float32(math.Inf(-1))
}

// EstimatePitch estimates the fundamental frequency in Hz via normalized
// autocorrelation over the period range implied by [50Hz, 400Hz], with
// periods capped below half the frame length. It returns 0 if the frame has
// fewer than 100 samples, the capped period range is empty, or no period
// clears the 0.6 correlation threshold.
func EstimatePitch(audio []float32, sampleRate int) float32 {
	if len(audio) < 100 {
		return 0
	}

	minPeriod := sampleRate / 400
	maxPeriod := sampleRate / 50

	limit := maxPeriod
	if half := len(audio) / 2; half < limit {
		limit = half
	}
	if minPeriod >= limit {
		return 0
	}

	bestCorrelation := float32(0)
	bestPeriod := 0

	for period := minPeriod; period < limit; period++ {
		var correlation, norm1, norm2 float64
		for i := 0; i < len(audio)-period; i++ {
			correlation += float64(audio[i]) * float64(audio[i+period])
			norm1 += float64(audio[i]) * float64(audio[i])
			norm2 += float64(audio[i+period]) * float64(audio[i+period])
		}

		var normalized float64
		if norm1 > 0 && norm2 > 0 {
			normalized = correlation / (math.Sqrt(norm1) * math.Sqrt(norm2))
		}

		if float32(normalized) > bestCorrelation {
			bestCorrelation = float32(normalized)
			bestPeriod = period
		}
	}

	if bestPeriod > 0 && bestCorrelation > 0.6 {
		return float32(sampleRate) / float32(bestPeriod)
	}
	return 0
}

// ZeroCrossingRate returns the fraction of adjacent sample pairs that
// straddle zero, in [0, 1]. A frame shorter than two samples returns 0.
func ZeroCrossingRate(audio []float32) float32 {
	if len(audio) < 2 {
		return 0
	}
	crossings := 0
	for i := 0; i < len(audio)-1; i++ {
		a, b := audio[i], audio[i+1]
		if (a >= 0 && b < 0) || (a < 0 && b >= 0) {
			crossings++
		}
	}
	return float32(crossings) / float32(len(audio)-1)
}

// SpectralCentroid approximates spectral centroid without an FFT by
// scaling the zero-crossing rate to the Nyquist frequency. This is a
// coarse proxy, not a true frequency-domain centroid.
func SpectralCentroid(audio []float32, sampleRate int) float32 {
	if len(audio) == 0 {
		return 0
	}
	zcr := ZeroCrossingRate(audio)
	return zcr * float32(sampleRate) / 2
}
