package turn

import (
	"testing"

	"voicepipe/internal/features"
)

func feat(volumeDB float32) features.Features {
	return features.Features{VolumeDB: volumeDB, PitchHz: 200}
}

func TestInitialStateIsIdle(t *testing.T) {
	e := New(DefaultConfig())
	if e.State() != Idle {
		t.Errorf("expected Idle, got %v", e.State())
	}
}

func TestIdleToSpeaking(t *testing.T) {
	e := New(DefaultConfig())
	event := e.Process(0.8, feat(-20), 20)
	if event != EventTurnStarted {
		t.Errorf("expected EventTurnStarted, got %v", event)
	}
	if e.State() != Speaking {
		t.Errorf("expected Speaking, got %v", e.State())
	}
}

func TestIdleStaysIdleBelowThreshold(t *testing.T) {
	e := New(DefaultConfig())
	event := e.Process(0.1, feat(-20), 20)
	if event != EventNone || e.State() != Idle {
		t.Errorf("expected to remain Idle, got state=%v event=%v", e.State(), event)
	}
}

func TestIdleStaysIdleIfTooQuiet(t *testing.T) {
	e := New(DefaultConfig())
	event := e.Process(0.9, feat(-50), 20) // above VAD threshold but too quiet
	if event != EventNone || e.State() != Idle {
		t.Errorf("expected to remain Idle when too quiet, got state=%v event=%v", e.State(), event)
	}
}

func TestSpeakingToSilenceGap(t *testing.T) {
	e := New(DefaultConfig())
	e.Process(0.8, feat(-20), 20)
	e.Process(0.1, feat(-20), 20)
	if e.State() != SilenceGap {
		t.Errorf("expected SilenceGap, got %v", e.State())
	}
}

func TestTurnEnded(t *testing.T) {
	config := Config{
		VADThresholdEnter:    0.6,
		VADThresholdExit:     0.3,
		MinSpeechDurationMs:  100,
		MaxSilenceDurationMs: 200,
		VolumeThresholdDB:    -40.0,
	}
	e := New(config)
	e.Process(0.8, feat(-20), 20)
	for i := 0; i < 10; i++ {
		e.Process(0.8, feat(-20), 20)
	}
	e.Process(0.1, feat(-20), 20) // enter silence gap

	turnEnded := false
	for i := 0; i < 15; i++ {
		if e.Process(0.1, feat(-20), 20) == EventTurnEnded {
			turnEnded = true
			break
		}
	}
	if !turnEnded {
		t.Fatal("expected a TurnEnded event")
	}
	if e.State() != Idle {
		t.Errorf("expected Idle after turn ended, got %v", e.State())
	}
}

func TestShortSpeechSuppressesTurnEnded(t *testing.T) {
	config := Config{
		VADThresholdEnter:    0.6,
		VADThresholdExit:     0.3,
		MinSpeechDurationMs:  1000, // much longer than the speech burst below
		MaxSilenceDurationMs: 100,
		VolumeThresholdDB:    -40.0,
	}
	e := New(config)
	e.Process(0.8, feat(-20), 20) // speech started, only 20ms so far

	turnEnded := false
	for i := 0; i < 15; i++ {
		if e.Process(0.1, feat(-20), 20) == EventTurnEnded {
			turnEnded = true
		}
	}
	if turnEnded {
		t.Error("short speech burst should not produce a TurnEnded event")
	}
	if e.State() != Idle {
		t.Errorf("expected Idle after silence timeout regardless, got %v", e.State())
	}
}

func TestSpeechResume(t *testing.T) {
	e := New(DefaultConfig())
	e.Process(0.8, feat(-20), 20)
	e.Process(0.1, feat(-20), 20)
	if e.State() != SilenceGap {
		t.Fatalf("expected SilenceGap, got %v", e.State())
	}
	e.Process(0.8, feat(-20), 20)
	if e.State() != Speaking {
		t.Errorf("expected Speaking after resume, got %v", e.State())
	}
}

func TestReset(t *testing.T) {
	e := New(DefaultConfig())
	e.Process(0.8, feat(-20), 20)
	if e.State() != Speaking {
		t.Fatalf("expected Speaking before reset")
	}
	e.Reset()
	if e.State() != Idle {
		t.Errorf("expected Idle after reset, got %v", e.State())
	}
	if e.SpeechDurationMs() != 0 {
		t.Errorf("expected speech duration reset to 0, got %d", e.SpeechDurationMs())
	}
}

func TestAverageVADBounded(t *testing.T) {
	e := New(DefaultConfig())
	for i := 0; i < maxHistorySize+10; i++ {
		e.Process(1.0, feat(-60), 20) // too quiet to transition, just feeds history
	}
	if len(e.vadHistory) != maxHistorySize {
		t.Errorf("history len: got %d, want %d", len(e.vadHistory), maxHistorySize)
	}
	if avg := e.AverageVAD(); avg != 1.0 {
		t.Errorf("average vad: got %f, want 1.0", avg)
	}
}

func TestAverageVADEmptyIsZero(t *testing.T) {
	e := New(DefaultConfig())
	if avg := e.AverageVAD(); avg != 0 {
		t.Errorf("expected 0 average on empty history, got %f", avg)
	}
}

func TestBargeInOnlyFiresWhileSpeaking(t *testing.T) {
	e := New(DefaultConfig())
	e.SignalPotentialBargeIn() // no-op while Idle
	if e.CheckBargeIn() {
		t.Error("barge-in should not fire while Idle")
	}

	e.Process(0.8, feat(-20), 20) // now Speaking
	e.SignalPotentialBargeIn()
	if !e.CheckBargeIn() {
		t.Error("expected barge-in to fire while Speaking")
	}
	if e.CheckBargeIn() {
		t.Error("expected barge-in flag to be consumed after first check")
	}
}

func TestTurnStartedCapturesTriggeringVADProbability(t *testing.T) {
	e := New(DefaultConfig())
	e.Process(0.87, feat(-20), 20)
	if got := e.TriggerVADProbability(); got != 0.87 {
		t.Errorf("expected trigger VAD probability 0.87, got %f", got)
	}
}

func TestTurnEndedDurationSurvivesCounterReset(t *testing.T) {
	config := Config{
		VADThresholdEnter:    0.6,
		VADThresholdExit:     0.3,
		MinSpeechDurationMs:  100,
		MaxSilenceDurationMs: 200,
		VolumeThresholdDB:    -40.0,
	}
	e := New(config)
	e.Process(0.8, feat(-20), 20)
	for i := 0; i < 10; i++ {
		e.Process(0.8, feat(-20), 20) // speech so far: 11*20 = 220ms
	}
	// The first quiet frame below is still handled in Speaking, which adds
	// its 20ms before dropping to SilenceGap, so the turn lasts 240ms.

	var ended bool
	for i := 0; i < 15; i++ {
		if e.Process(0.1, feat(-20), 20) == EventTurnEnded {
			ended = true
			break
		}
	}
	if !ended {
		t.Fatal("expected TurnEnded")
	}
	if e.SpeechDurationMs() != 0 {
		t.Errorf("expected live speech duration counter reset to 0, got %d", e.SpeechDurationMs())
	}
	if got := e.LastTurnDurationMs(); got != 240 {
		t.Errorf("expected LastTurnDurationMs to retain 240, got %d", got)
	}
}

func TestSetMaxSilenceDurationMs(t *testing.T) {
	config := Config{
		VADThresholdEnter:    0.6,
		VADThresholdExit:     0.3,
		MinSpeechDurationMs:  20,
		MaxSilenceDurationMs: 10_000, // effectively never times out at default
		VolumeThresholdDB:    -40.0,
	}
	e := New(config)
	e.Process(0.8, feat(-20), 20)
	e.Process(0.1, feat(-20), 20) // enter SilenceGap

	e.SetMaxSilenceDurationMs(20) // lower it so the very next frame trips it

	if got := e.Process(0.1, feat(-20), 20); got != EventTurnEnded {
		t.Errorf("expected TurnEnded after lowering max silence duration, got %v", got)
	}
}

func TestIsSpeaking(t *testing.T) {
	e := New(DefaultConfig())
	if e.IsSpeaking() {
		t.Error("should not be speaking initially")
	}
	e.Process(0.8, feat(-20), 20)
	if !e.IsSpeaking() {
		t.Error("should be speaking after transition")
	}
}
