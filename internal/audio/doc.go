// Package audio handles audio buffering and format conversion.
// It implements the per-session rolling ring buffer with a growable segment
// buffer, PCM-16 decoding to normalized float samples, and WAV encoding for
// model service uploads.
package audio
