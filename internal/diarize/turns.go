package diarize

import (
	"sort"
)

// Turn is one speaker interval produced by the external diarizer. Label is
// diarizer-local: it is only stable within a single diarization pass and must
// be remapped to a persistent speaker identity before exposure.
type Turn struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Label string  `json:"label"`
}

// Duration returns the turn length in seconds.
func (t Turn) Duration() float64 {
	return t.End - t.Start
}

// SortByStart sorts turns in place by start time. Diarizer output is not
// assumed to be ordered.
func SortByStart(turns []Turn) {
	sort.Slice(turns, func(i, j int) bool {
		return turns[i].Start < turns[j].Start
	})
}

// DropShort removes turns shorter than minDuration seconds. Applied before
// smoothing to discard diarizer noise.
func DropShort(turns []Turn, minDuration float64) []Turn {
	out := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if t.Duration() >= minDuration {
			out = append(out, t)
		}
	}
	return out
}

// Smooth suppresses diarizer jitter: a turn shorter than minSwitch seconds
// that is bounded on both sides by the same other speaker is absorbed into
// the preceding turn. Adjacent turns with the same label are then coalesced.
// Input order is not assumed; output is sorted by start.
func Smooth(turns []Turn, minSwitch float64) []Turn {
	if len(turns) == 0 {
		return nil
	}

	sorted := make([]Turn, len(turns))
	copy(sorted, turns)
	SortByStart(sorted)

	absorbed := make([]Turn, 0, len(sorted))
	for i := 0; i < len(sorted); i++ {
		cur := sorted[i]

		if len(absorbed) > 0 && i+1 < len(sorted) {
			prev := &absorbed[len(absorbed)-1]
			next := sorted[i+1]

			if cur.Duration() < minSwitch &&
				cur.Label != prev.Label &&
				prev.Label == next.Label {
				// Short interloper: extend the preceding turn over it.
				if cur.End > prev.End {
					prev.End = cur.End
				}
				continue
			}
		}

		absorbed = append(absorbed, cur)
	}

	// Coalesce adjacent turns by the same speaker.
	out := make([]Turn, 0, len(absorbed))
	for _, t := range absorbed {
		if len(out) > 0 {
			prev := &out[len(out)-1]
			if t.Label == prev.Label && t.Start <= prev.End {
				if t.End > prev.End {
					prev.End = t.End
				}
				continue
			}
		}
		out = append(out, t)
	}

	return out
}
