// Package interceptor provides a Pion WebRTC interceptor that computes
// adaptive playout delay targets for received audio streams.
package interceptor

import (
	"errors"

	"github.com/pion/interceptor"
)

// PlayoutDelayURI is the URI for the playout-delay extension (3-byte).
// The sender uses it to signal minimum and maximum playout delay limits,
// both carried as 12-bit values in 10 ms units.
// It is registered during SDP negotiation and its ID is provided via
// StreamInfo.RTPHeaderExtensions.
const PlayoutDelayURI = "http://www.webrtc.org/experiments/rtp-hdrext/playout-delay"

const (
	playoutDelayExtensionSize = 3
	playoutDelayGranularityMs = 10
	playoutDelayMaxMs         = 0xFFF * playoutDelayGranularityMs // 40950
)

var (
	// ErrPlayoutDelayInvalid is returned by Marshal when a delay is negative,
	// above the representable 40950 ms, or the minimum exceeds the maximum.
	ErrPlayoutDelayInvalid = errors.New("playout-delay values out of range")

	// ErrPlayoutDelayTooSmall is returned by Unmarshal when the payload is
	// shorter than the 3-byte wire format.
	ErrPlayoutDelayTooSmall = errors.New("playout-delay payload too small")
)

// PlayoutDelayExtension is the payload of the playout-delay header extension.
//
//	 0                   1                   2
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|       MIN delay       |       MAX delay       |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// Delays are expressed in milliseconds here and quantized to 10 ms units
// on the wire.
type PlayoutDelayExtension struct {
	MinDelayMs int
	MaxDelayMs int
}

// Marshal serializes the extension payload.
func (p PlayoutDelayExtension) Marshal() ([]byte, error) {
	if p.MinDelayMs < 0 || p.MaxDelayMs < 0 ||
		p.MinDelayMs > playoutDelayMaxMs || p.MaxDelayMs > playoutDelayMaxMs ||
		p.MinDelayMs > p.MaxDelayMs {
		return nil, ErrPlayoutDelayInvalid
	}
	minUnits := uint32(p.MinDelayMs / playoutDelayGranularityMs)
	maxUnits := uint32(p.MaxDelayMs / playoutDelayGranularityMs)
	return []byte{
		byte(minUnits >> 4),
		byte(minUnits<<4) | byte(maxUnits>>8),
		byte(maxUnits),
	}, nil
}

// Unmarshal parses the extension payload.
func (p *PlayoutDelayExtension) Unmarshal(raw []byte) error {
	if len(raw) < playoutDelayExtensionSize {
		return ErrPlayoutDelayTooSmall
	}
	minUnits := uint32(raw[0])<<4 | uint32(raw[1])>>4
	maxUnits := uint32(raw[1]&0x0F)<<8 | uint32(raw[2])
	p.MinDelayMs = int(minUnits) * playoutDelayGranularityMs
	p.MaxDelayMs = int(maxUnits) * playoutDelayGranularityMs
	return nil
}

// FindExtensionID searches for an extension with the given URI in the list
// of negotiated RTP header extensions and returns its ID.
//
// Returns 0 if the extension is not found. Extension ID 0 is invalid per RFC 5285,
// so callers should treat a return value of 0 as "extension not available" and
// handle gracefully (e.g., ignore sender delay hints).
func FindExtensionID(exts []interceptor.RTPHeaderExtension, uri string) uint8 {
	for _, ext := range exts {
		if ext.URI == uri {
			return uint8(ext.ID)
		}
	}
	return 0
}

// FindPlayoutDelayID is a convenience function that searches for the
// playout-delay extension ID in the list of negotiated extensions.
//
// Returns 0 if playout-delay was not negotiated.
func FindPlayoutDelayID(exts []interceptor.RTPHeaderExtension) uint8 {
	return FindExtensionID(exts, PlayoutDelayURI)
}
