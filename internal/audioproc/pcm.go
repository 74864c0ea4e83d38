// Package audioproc converts between PCM and float audio representations
// and hosts the pluggable voice-isolation transform applied before feature
// extraction.
package audioproc

import "math"

// PCMToFloat converts 16-bit signed PCM samples to float32 samples in
// [-1, 1], matching the Opus decoder's native output domain: f = i/32768.
func PCMToFloat(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768
	}
	return out
}

// FloatToPCM converts float32 samples back to 16-bit signed PCM:
// i = clamp(round(f*32767), -32768, 32767). Round-tripping PCMToFloat then
// FloatToPCM differs from the original by at most 1 LSB.
func FloatToPCM(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * 32767)
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
