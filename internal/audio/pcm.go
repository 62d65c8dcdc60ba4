package audio

import (
	"fmt"
)

const (
	// BytesPerSample is the size of one PCM-16 sample on the wire.
	BytesPerSample = 2

	// MaxFrameBytes bounds a single inbound audio frame (10 seconds at 16 kHz).
	MaxFrameBytes = 320000
)

// DecodePCM16 converts little-endian 16-bit PCM bytes into normalized
// float32 samples in [-1, 1]. Frames with odd length or exceeding the frame
// size bound are rejected.
func DecodePCM16(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio frame")
	}
	if len(data)%BytesPerSample != 0 {
		return nil, fmt.Errorf("audio frame length must be even (got %d bytes)", len(data))
	}
	if len(data) > MaxFrameBytes {
		return nil, fmt.Errorf("audio frame too large: %d bytes (max %d)", len(data), MaxFrameBytes)
	}

	samples := make([]float32, len(data)/BytesPerSample)
	for i := range samples {
		s := int16(data[i*2]) | int16(data[i*2+1])<<8
		samples[i] = float32(s) / 32768.0
	}
	return samples, nil
}

// EncodePCM16 converts normalized float32 samples back to little-endian
// 16-bit PCM bytes, clipping values outside [-1, 1].
func EncodePCM16(samples []float32) []byte {
	data := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		v := floatToInt16(s)
		data[i*2] = byte(v)
		data[i*2+1] = byte(v >> 8)
	}
	return data
}

func floatToInt16(s float32) int16 {
	if s > 1.0 {
		s = 1.0
	} else if s < -1.0 {
		s = -1.0
	}
	return int16(s * 32767.0)
}
