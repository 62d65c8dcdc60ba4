// Package server provides the HTTP surface of the transcription service:
// the WebSocket streaming endpoint, transcript retrieval, synchronous batch
// transcription, and the monitoring endpoints (health, stats, config,
// Prometheus metrics).
package server
