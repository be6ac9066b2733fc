package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Encoding identifies the wire format of incoming audio frames
type Encoding string

const (
	EncodingPCM16LE   Encoding = "pcm_s16le" // 16-bit signed little-endian PCM
	EncodingFloat32LE Encoding = "pcm_f32le" // 32-bit IEEE float little-endian
	EncodingMulaw     Encoding = "mulaw"     // G.711 PCMU
)

// ParseEncoding maps a client-supplied name to an Encoding.
// An empty name selects 16-bit PCM.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "pcm", "pcm16", "s16le", string(EncodingPCM16LE):
		return EncodingPCM16LE, nil
	case "f32le", "float32", string(EncodingFloat32LE):
		return EncodingFloat32LE, nil
	case "pcmu", "ulaw", string(EncodingMulaw):
		return EncodingMulaw, nil
	default:
		return "", fmt.Errorf("unsupported audio encoding %q", name)
	}
}

// Decode converts a raw frame into normalized float samples in [-1, 1]
func Decode(enc Encoding, data []byte) ([]float32, error) {
	switch enc {
	case EncodingPCM16LE:
		return DecodePCM16LE(data)
	case EncodingFloat32LE:
		return DecodeFloat32LE(data)
	case EncodingMulaw:
		return DecodeMulaw(data), nil
	default:
		return nil, fmt.Errorf("unsupported audio encoding %q", enc)
	}
}

// DecodePCM16LE converts 16-bit little-endian PCM to float samples (x / 32768)
func DecodePCM16LE(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("PCM data length must be even (16-bit samples), got %d bytes", len(data))
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(s) / 32768.0
	}
	return samples, nil
}

// DecodeFloat32LE converts little-endian float32 frames. Non-finite values become 0.
func DecodeFloat32LE(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("float32 data length must be a multiple of 4, got %d bytes", len(data))
	}

	samples := make([]float32, len(data)/4)
	for i := range samples {
		v := math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			v = 0
		}
		samples[i] = v
	}
	return samples, nil
}

// DecodeMulaw converts G.711 μ-law bytes to float samples
func DecodeMulaw(data []byte) []float32 {
	samples := make([]float32, len(data))
	for i, b := range data {
		// mulawToLinear yields a 14-bit magnitude
		samples[i] = float32(mulawToLinear(b)) / 8192.0
	}
	return samples
}

// FloatToPCM16 clamps float samples to [-1, 1] and scales them to 16-bit integers
func FloatToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out[i] = int16(math.Round(v * 32767))
	}
	return out
}

// mulawToLinear converts an 8-bit μ-law sample to a linear value
func mulawToLinear(mulawByte byte) int16 {
	// μ-law uses an inverted representation
	mulawByte = ^mulawByte

	sign := mulawByte & 0x80
	segment := int32((mulawByte >> 4) & 0x07)
	mantissa := int32(mulawByte & 0x0F)

	// step = (mantissa << (segment + 1)) + (33 << segment), minus the bias
	step := mantissa << (segment + 1)
	step += int32(33) << segment
	magnitude := step - 33

	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}
