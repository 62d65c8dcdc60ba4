// Package diarize handles speaker-turn intervals: fetching them from the
// external diarization service, pre-merge smoothing of diarizer jitter, and
// temporal alignment of turns with transcript segments.
package diarize
