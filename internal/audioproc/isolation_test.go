package audioproc

import "testing"

func TestIdentityIsolatorPassesThrough(t *testing.T) {
	frame := []float32{0.1, 0.2, 0.3}
	iso := IdentityIsolator{}
	got := iso.Process(frame)
	for i, v := range got {
		if v != frame[i] {
			t.Errorf("sample %d: got %f, want %f", i, v, frame[i])
		}
	}
}

func TestNoiseGateIsolatorAttenuatesQuietFrame(t *testing.T) {
	iso := NewNoiseGateIsolator()
	frame := []float32{0.001, -0.001, 0.002}
	orig := append([]float32(nil), frame...)
	got := iso.Process(frame)
	if len(got) != len(orig) {
		t.Fatalf("expected length-preserving transform, got %d want %d", len(got), len(orig))
	}
	for i, v := range got {
		want := orig[i] * DefaultAttenuation
		if v != want {
			t.Errorf("sample %d: got %f, want %f", i, v, want)
		}
	}
}

func TestNoiseGateIsolatorPassesLoudFrame(t *testing.T) {
	iso := NewNoiseGateIsolator()
	frame := []float32{0.5, -0.5, 0.5}
	got := iso.Process(frame)
	for i, v := range got {
		if v != frame[i] {
			t.Errorf("loud sample %d should pass unmodified: got %f, want %f", i, v, frame[i])
		}
	}
}

func TestNoiseGateIsolatorGatesPerSampleWithinAFrame(t *testing.T) {
	iso := NewNoiseGateIsolator()
	frame := []float32{0.001, 0.5, -0.001}
	got := iso.Process(frame)
	if got[0] != 0.001*DefaultAttenuation {
		t.Errorf("quiet sample should be attenuated: got %f", got[0])
	}
	if got[1] != 0.5 {
		t.Errorf("loud sample in the same frame should pass through: got %f", got[1])
	}
	if got[2] != -0.001*DefaultAttenuation {
		t.Errorf("quiet negative sample should be attenuated: got %f", got[2])
	}
}

func TestNoiseGateIsolatorDisabledPassesThrough(t *testing.T) {
	iso := NewNoiseGateIsolator()
	iso.SetEnabled(false)
	if iso.Enabled() {
		t.Fatal("expected Enabled() to report false")
	}
	frame := []float32{0.001, 0.001}
	got := iso.Process(frame)
	if got[0] != 0.001 {
		t.Errorf("disabled gate should not attenuate: got %f", got[0])
	}
}
