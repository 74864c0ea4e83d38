// Package rtpx parses and serialises the RTP header subset used by the
// voice pipeline (RFC 3550). It does not touch the network: callers hand it
// already-received datagram bytes and get back a structured Packet, or
// serialise a Packet back to bytes for tests and loopback tooling.
package rtpx

import (
	"encoding/binary"
	"fmt"
)

// DefaultPayloadType and AltPayloadType are the Opus payload type values
// this pipeline accepts (spec: "Opus payload type defaults to 111, also
// accept 96").
const (
	DefaultPayloadType = 111
	AltPayloadType     = 96
)

const minHeaderLen = 12

// Packet is the RTP header fields this pipeline cares about, plus the raw
// payload bytes. Padding and extension bits are recognised but their bodies
// are not trimmed — downstream treats payload as-is, per spec.
type Packet struct {
	Version        uint8
	Padding        bool
	Extension      bool
	CSRCCount      uint8
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	CSRC           []uint32
	Payload        []byte
}

// Parse decodes data into a Packet. It fails if data is shorter than 12
// bytes, the version field is not 2, or the header (12 + 4*CSRCCount bytes)
// is truncated.
func Parse(data []byte) (Packet, error) {
	if len(data) < minHeaderLen {
		return Packet{}, fmt.Errorf("rtpx: packet too short: %d bytes", len(data))
	}

	version := (data[0] >> 6) & 0x3
	if version != 2 {
		return Packet{}, fmt.Errorf("rtpx: unsupported version %d", version)
	}

	padding := data[0]&0x20 != 0
	extension := data[0]&0x10 != 0
	csrcCount := data[0] & 0x0F
	marker := data[1]&0x80 != 0
	payloadType := data[1] & 0x7F
	seq := binary.BigEndian.Uint16(data[2:4])
	ts := binary.BigEndian.Uint32(data[4:8])
	ssrc := binary.BigEndian.Uint32(data[8:12])

	headerLen := minHeaderLen + int(csrcCount)*4
	if len(data) < headerLen {
		return Packet{}, fmt.Errorf("rtpx: header incomplete: need %d bytes, have %d", headerLen, len(data))
	}

	var csrc []uint32
	if csrcCount > 0 {
		csrc = make([]uint32, csrcCount)
		for i := 0; i < int(csrcCount); i++ {
			off := minHeaderLen + i*4
			csrc[i] = binary.BigEndian.Uint32(data[off : off+4])
		}
	}

	payload := make([]byte, len(data)-headerLen)
	copy(payload, data[headerLen:])

	return Packet{
		Version:        version,
		Padding:        padding,
		Extension:      extension,
		CSRCCount:      csrcCount,
		Marker:         marker,
		PayloadType:    payloadType,
		SequenceNumber: seq,
		Timestamp:      ts,
		SSRC:           ssrc,
		CSRC:           csrc,
		Payload:        payload,
	}, nil
}

// Serialize is the inverse of Parse. The header's CC field is written from
// len(p.CSRC); p.CSRCCount is not read. parse(serialize(p)) == p holds for
// any Packet with Version == 2, len(p.CSRC) <= 15 and
// CSRCCount == len(p.CSRC).
func (p Packet) Serialize() []byte {
	csrcCount := uint8(len(p.CSRC))
	headerLen := minHeaderLen + len(p.CSRC)*4
	out := make([]byte, headerLen+len(p.Payload))

	b0 := (p.Version << 6) & 0xC0
	if p.Padding {
		b0 |= 0x20
	}
	if p.Extension {
		b0 |= 0x10
	}
	b0 |= csrcCount & 0x0F
	out[0] = b0

	b1 := p.PayloadType & 0x7F
	if p.Marker {
		b1 |= 0x80
	}
	out[1] = b1

	binary.BigEndian.PutUint16(out[2:4], p.SequenceNumber)
	binary.BigEndian.PutUint32(out[4:8], p.Timestamp)
	binary.BigEndian.PutUint32(out[8:12], p.SSRC)

	for i, c := range p.CSRC {
		off := minHeaderLen + i*4
		binary.BigEndian.PutUint32(out[off:off+4], c)
	}

	copy(out[headerLen:], p.Payload)
	return out
}

// IsOpus reports whether the packet's payload type is one of the two Opus
// payload type values this pipeline accepts.
func (p Packet) IsOpus() bool {
	return p.PayloadType == DefaultPayloadType || p.PayloadType == AltPayloadType
}
