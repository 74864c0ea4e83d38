// Package fusion combines VAD probability, extracted audio features, and
// conversation context into a single turn-taking confidence score.
package fusion

import "voicepipe/internal/features"

const (
	// DefaultVADWeight, DefaultVolumeWeight, DefaultPitchWeight, and
	// DefaultContextWeight are the default weighted-combination factors.
	DefaultVADWeight     = 0.5
	DefaultVolumeWeight  = 0.3
	DefaultPitchWeight   = 0.1
	DefaultContextWeight = 0.1
)

// Context is a coarse conversation-state label used to bias the fused
// score. The zero value (empty string) is treated as neutral.
type Context string

const (
	ContextExpectingResponse Context = "expecting_response"
	ContextUserSpeaking      Context = "user_speaking"
	ContextThinking          Context = "thinking"
	ContextPlayingAudio      Context = "playing_audio"
)

// contextBoost returns the additive boost for a conversation context
// before context weighting is applied.
func contextBoost(ctx Context) float32 {
	switch ctx {
	case ContextExpectingResponse:
		return 0.2
	case ContextUserSpeaking:
		return 0.1
	case ContextThinking:
		return -0.1
	case ContextPlayingAudio:
		return -0.2
	default:
		return 0
	}
}

// ConfidenceLevel classifies a fused score into a coarse tier.
type ConfidenceLevel int

const (
	VeryLow ConfidenceLevel = iota
	Low
	Medium
	High
)

func (c ConfidenceLevel) String() string {
	switch c {
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	default:
		return "very_low"
	}
}

// Fusion combines signals into a fused confidence score. Zero value is not
// usable; use New().
type Fusion struct {
	vadWeight     float32
	volumeWeight  float32
	pitchWeight   float32
	contextWeight float32
}

// New returns a Fusion processor using the default weights.
func New() *Fusion {
	return &Fusion{
		vadWeight:     DefaultVADWeight,
		volumeWeight:  DefaultVolumeWeight,
		pitchWeight:   DefaultPitchWeight,
		contextWeight: DefaultContextWeight,
	}
}

// WithWeights returns a Fusion processor using custom weights.
func WithWeights(vad, volume, pitch, context float32) *Fusion {
	return &Fusion{
		vadWeight:     vad,
		volumeWeight:  volume,
		pitchWeight:   pitch,
		contextWeight: context,
	}
}

// SetWeights updates the weighted-combination factors in place.
func (f *Fusion) SetWeights(vad, volume, pitch, context float32) {
	f.vadWeight = vad
	f.volumeWeight = volume
	f.pitchWeight = pitch
	f.contextWeight = context
}

// FuseSignals combines vadProb, feats, and ctx into a fused score in
// [0, 1].
func (f *Fusion) FuseSignals(vadProb float32, feats features.Features, ctx Context) float32 {
	volumeNormalized := clamp01((feats.VolumeDB + 50) / 50)

	var pitchScore float32
	switch {
	case feats.PitchHz > 50 && feats.PitchHz < 400:
		pitchScore = 1.0
	case feats.PitchHz > 0:
		pitchScore = 0.3
	}

	baseScore := vadProb*f.vadWeight + volumeNormalized*f.volumeWeight + pitchScore*f.pitchWeight
	fused := baseScore + contextBoost(ctx)*f.contextWeight
	return clamp01(fused)
}

// ConfidenceLevelOf classifies a fused score into a ConfidenceLevel tier
// using thresholds 0.8/0.5/0.2.
func (f *Fusion) ConfidenceLevelOf(score float32) ConfidenceLevel {
	switch {
	case score >= 0.8:
		return High
	case score >= 0.5:
		return Medium
	case score >= 0.2:
		return Low
	default:
		return VeryLow
	}
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
