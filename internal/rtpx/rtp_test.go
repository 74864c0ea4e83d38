package rtpx

import (
	"bytes"
	"testing"
)

func TestParseValidPacket(t *testing.T) {
	data := []byte{
		0x80, 0x78, 0x00, 0x01, // V=2, M=0, PT=120, seq=1
		0x00, 0x00, 0x00, 0x00, // timestamp
		0x00, 0x00, 0x00, 0x01, // ssrc
		0xAA, 0xBB, 0xCC, 0xDD, // payload
	}

	p, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Version != 2 {
		t.Errorf("version: got %d, want 2", p.Version)
	}
	if p.SequenceNumber != 1 {
		t.Errorf("sequence: got %d, want 1", p.SequenceNumber)
	}
	if p.PayloadType != 120 {
		t.Errorf("payload type: got %d, want 120", p.PayloadType)
	}
	if len(p.Payload) != 4 {
		t.Errorf("payload len: got %d, want 4", len(p.Payload))
	}
}

func TestParseTooShort(t *testing.T) {
	if _, err := Parse([]byte{0x80, 0x78, 0x00}); err == nil {
		t.Fatal("expected error for truncated packet")
	}
}

func TestParseWrongVersion(t *testing.T) {
	data := make([]byte, 12)
	data[0] = 0x40 // version 1
	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for wrong version")
	}
}

func TestParseTruncatedCSRC(t *testing.T) {
	data := make([]byte, 12)
	data[0] = 0x82 // version 2, cc=2, needs 20 bytes
	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for truncated csrc header")
	}
}

func TestSerializeRoundtrip(t *testing.T) {
	original := Packet{
		Version:        2,
		Padding:        false,
		Extension:      false,
		Marker:         true,
		PayloadType:    111,
		SequenceNumber: 1234,
		Timestamp:      5678,
		SSRC:           9012,
		Payload:        []byte{1, 2, 3, 4},
	}

	parsed, err := Parse(original.Serialize())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Version != original.Version ||
		parsed.Marker != original.Marker ||
		parsed.PayloadType != original.PayloadType ||
		parsed.SequenceNumber != original.SequenceNumber ||
		parsed.Timestamp != original.Timestamp ||
		parsed.SSRC != original.SSRC {
		t.Fatalf("roundtrip mismatch: got %+v, want %+v", parsed, original)
	}
	if !bytes.Equal(parsed.Payload, original.Payload) {
		t.Fatalf("payload mismatch: got %v, want %v", parsed.Payload, original.Payload)
	}
}

func TestRoundtripWithCSRC(t *testing.T) {
	original := Packet{
		Version:        2,
		CSRC:           []uint32{0x11111111, 0x22222222, 0x33333333},
		PayloadType:    96,
		SequenceNumber: 42,
		Timestamp:      100,
		SSRC:           7,
		Payload:        []byte{0xDE, 0xAD},
	}

	parsed, err := Parse(original.Serialize())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.CSRCCount != 3 {
		t.Errorf("csrc count: got %d, want 3", parsed.CSRCCount)
	}
	if len(parsed.CSRC) != 3 || parsed.CSRC[1] != 0x22222222 {
		t.Errorf("csrc mismatch: got %v", parsed.CSRC)
	}
	if !bytes.Equal(parsed.Payload, original.Payload) {
		t.Errorf("payload mismatch: got %v, want %v", parsed.Payload, original.Payload)
	}
}

func TestRoundtripPropertyLikeSweep(t *testing.T) {
	// Sweep a range of cc values and payload sizes — a lightweight stand-in
	// for the spec's universal round-trip property.
	for cc := 0; cc <= 15; cc++ {
		csrc := make([]uint32, cc)
		for i := range csrc {
			csrc[i] = uint32(i + 1)
		}
		for _, payloadLen := range []int{0, 1, 160, 320} {
			payload := bytes.Repeat([]byte{0x5A}, payloadLen)
			p := Packet{
				Version:        2,
				CSRC:           csrc,
				PayloadType:    111,
				SequenceNumber: uint16(cc*1000 + payloadLen),
				Timestamp:      uint32(cc),
				SSRC:           0xCAFEBABE,
				Payload:        payload,
			}
			got, err := Parse(p.Serialize())
			if err != nil {
				t.Fatalf("cc=%d payloadLen=%d: Parse: %v", cc, payloadLen, err)
			}
			if got.SequenceNumber != p.SequenceNumber || !bytes.Equal(got.Payload, p.Payload) {
				t.Fatalf("cc=%d payloadLen=%d: roundtrip mismatch", cc, payloadLen)
			}
		}
	}
}

func TestIsOpus(t *testing.T) {
	for _, pt := range []uint8{111, 96} {
		p := Packet{PayloadType: pt}
		if !p.IsOpus() {
			t.Errorf("payload type %d should be recognised as opus", pt)
		}
	}
	if (Packet{PayloadType: 0}).IsOpus() {
		t.Error("PCMU (0) should not be recognised as opus")
	}
}
