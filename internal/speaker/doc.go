// Package speaker maintains persistent speaker identities across independent
// diarization passes. Raw diarizer labels are remapped to stable profile ids
// by online nearest-centroid clustering over voice embeddings.
package speaker
