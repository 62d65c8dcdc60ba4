// Package session implements the streaming transcription core: the
// per-connection segmentation state machine that turns buffered audio and
// voice-activity signals into partial and final transcript segments, the
// hallucination filter guarding emission, the post-disconnect full-session
// finalization pipeline, and the process-wide session registry.
package session
