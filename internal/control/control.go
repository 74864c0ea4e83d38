// Package control defines the orchestration commands an external
// controller can send to a running session: play/stop audio, clear
// conversational context, and adjust VAD sensitivity.
package control

// Kind identifies which command variant a Command carries.
type Kind string

const (
	KindPlayAudio     Kind = "play_audio"
	KindStopAudio     Kind = "stop_audio"
	KindClearContext  Kind = "clear_context"
	KindAdjustVAD     Kind = "adjust_vad"
)

// Command mirrors the orchestration command schema. Only the fields
// relevant to Kind are populated.
type Command struct {
	Kind      Kind   `json:"type"`
	SessionID string `json:"session_id"`

	// PlayAudio
	AudioData   []byte `json:"audio_data,omitempty"`
	AudioFormat string `json:"audio_format,omitempty"`

	// StopAudio
	Reason string `json:"reason,omitempty"`

	// ClearContext
	ContextType string `json:"context_type,omitempty"`

	// AdjustVAD
	Sensitivity float32 `json:"sensitivity,omitempty"`
	ThresholdMs uint32  `json:"threshold_ms,omitempty"`
}
