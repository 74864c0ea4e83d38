// Package vad implements an energy-based Voice Activity Detector for mono
// float32 PCM audio. Unlike a hangover-gated boolean detector, it reports a
// continuously smoothed speech probability so downstream fusion can weigh
// it against other signals.
package vad

import "math"

const (
	// DefaultThreshold is the energy (mean square) level below which a
	// frame contributes zero raw probability.
	DefaultThreshold = float32(0.001)

	// DefaultSmoothingFactor weights the current frame's raw probability
	// against the previous smoothed probability.
	DefaultSmoothingFactor = float32(0.7)

	// logScale divides the log energy ratio before clamping to [0, 1];
	// larger values make the detector less sensitive to energy above
	// threshold.
	logScale = 5.0
)

// VAD is a single-channel, smoothed energy-based voice activity detector.
// Zero value is not usable; use New().
type VAD struct {
	threshold       float32
	smoothingFactor float32
	previousProb    float32
	framesProcessed uint64
}

// New returns a VAD using DefaultThreshold and DefaultSmoothingFactor.
func New() *VAD {
	return &VAD{
		threshold:       DefaultThreshold,
		smoothingFactor: DefaultSmoothingFactor,
	}
}

// WithThreshold returns a VAD using a custom energy threshold.
func WithThreshold(threshold float32) *VAD {
	return &VAD{
		threshold:       threshold,
		smoothingFactor: DefaultSmoothingFactor,
	}
}

// Process computes the frame's energy, derives a raw probability via
// logarithmic scaling above threshold, smooths it against the previous
// result, and returns the smoothed probability in [0, 1]. An empty frame
// returns 0 without touching smoothing state.
func (v *VAD) Process(audio []float32) float32 {
	if len(audio) == 0 {
		return 0
	}
	v.framesProcessed++

	var sum float64
	for _, x := range audio {
		sum += float64(x) * float64(x)
	}
	energy := float32(sum / float64(len(audio)))

	var rawProb float32
	if energy > v.threshold {
		ratio := math.Log(float64(energy / v.threshold))
		rawProb = clamp01(float32(ratio / logScale))
	}

	smoothed := v.smoothingFactor*rawProb + (1-v.smoothingFactor)*v.previousProb
	v.previousProb = smoothed
	return smoothed
}

// ProcessPCM converts PCM samples to float32 and processes them.
func (v *VAD) ProcessPCM(pcm []int16) float32 {
	audio := make([]float32, len(pcm))
	for i, s := range pcm {
		audio[i] = float32(s) / 32768
	}
	return v.Process(audio)
}

// Reset clears smoothing state and the processed-frame counter, leaving
// the threshold and smoothing factor unchanged.
func (v *VAD) Reset() {
	v.previousProb = 0
	v.framesProcessed = 0
}

// AdaptThreshold sets the energy threshold to twice the given noise floor.
func (v *VAD) AdaptThreshold(noiseFloor float32) {
	v.threshold = noiseFloor * 2
}

// FramesProcessed returns the number of frames passed to Process since
// creation or the last Reset.
func (v *VAD) FramesProcessed() uint64 {
	return v.framesProcessed
}

// Threshold returns the current energy threshold.
func (v *VAD) Threshold() float32 {
	return v.threshold
}

// RMS returns the root-mean-square of a float32 PCM frame.
func RMS(frame []float32) float32 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(frame))))
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
