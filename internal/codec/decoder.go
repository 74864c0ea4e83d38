// Package codec wraps Opus decoding behind a narrow interface so the
// pipeline and its tests never depend on the underlying CGo binding
// directly.
package codec

import (
	"errors"
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// ErrEmptyPayload is returned when Decode is called with an empty non-nil
// payload, or DecodeFEC with a nil or empty one. Decode(nil) is not an
// error: it requests packet-loss concealment.
var ErrEmptyPayload = errors.New("codec: empty opus payload")

// opusDecoder is the subset of *opus.Decoder this package depends on,
// narrowed so fakes can stand in for tests.
type opusDecoder interface {
	Decode(data []byte, pcm []int16) (int, error)
	DecodeFEC(data []byte, pcm []int16) error
}

// Decoder decodes Opus-encoded RTP payloads into 16-bit PCM, including
// packet-loss concealment (PLC) and forward error correction (FEC) frames.
type Decoder struct {
	dec        opusDecoder
	frameSize  int
	channels   int
}

// New creates a Decoder for the given sample rate and channel count. frameSize
// is the number of samples per channel the pipeline expects per output frame
// (e.g. 320 for 20ms @ 16kHz mono).
func New(sampleRate, channels, frameSize int) (*Decoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("codec: new decoder: %w", err)
	}
	return &Decoder{dec: dec, frameSize: frameSize, channels: channels}, nil
}

// Decode decodes one Opus frame into PCM samples. A nil data slice requests
// packet-loss concealment from the underlying decoder (per the Opus
// decoder contract); an empty, non-nil slice is rejected as caller error.
func (d *Decoder) Decode(data []byte) ([]int16, error) {
	if data != nil && len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	pcm := make([]int16, d.frameSize*d.channels)
	n, err := d.dec.Decode(data, pcm)
	if err != nil {
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	return pcm[:n*d.channels], nil
}

// DecodeFEC recovers a frame that the previous packet carried redundantly
// via in-band forward error correction, using the just-arrived packet as
// the carrier of the FEC data for the frame immediately preceding it.
func (d *Decoder) DecodeFEC(data []byte) ([]int16, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	pcm := make([]int16, d.frameSize*d.channels)
	if err := d.dec.DecodeFEC(data, pcm); err != nil {
		return nil, fmt.Errorf("codec: decode fec: %w", err)
	}
	return pcm, nil
}
