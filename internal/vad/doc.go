// Package vad provides voice activity detection for the streaming pipeline.
// It wraps an external speech-probability scorer behind a gate with a
// root-mean-square energy fallback, so the pipeline keeps working when the
// scorer service is degraded.
package vad
