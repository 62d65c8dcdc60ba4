package diarize

import (
	"math"
)

// BestTurn picks the diarization turn for a transcript segment spanning
// [start, end]. Selection order, preserved exactly:
//
//  1. the turn with maximum temporal overlap;
//  2. if no turn overlaps, the turn containing the segment midpoint;
//  3. otherwise the turn minimizing the distance from either of its
//     endpoints to the segment midpoint.
//
// Ties are broken by slice order (first turn reaching the best value wins).
// Returns false only when turns is empty.
func BestTurn(start, end float64, turns []Turn) (Turn, bool) {
	if len(turns) == 0 {
		return Turn{}, false
	}

	// 1. Maximum overlap duration.
	bestIdx := -1
	bestOverlap := 0.0
	for i, t := range turns {
		ov := math.Min(end, t.End) - math.Max(start, t.Start)
		if ov > bestOverlap {
			bestOverlap = ov
			bestIdx = i
		}
	}
	if bestIdx >= 0 {
		return turns[bestIdx], true
	}

	// 2. Segment midpoint falls inside a turn.
	mid := (start + end) / 2
	for _, t := range turns {
		if t.Start <= mid && mid <= t.End {
			return t, true
		}
	}

	// 3. Nearest endpoint distance to the midpoint.
	bestIdx = 0
	bestDist := math.Inf(1)
	for i, t := range turns {
		d := math.Min(math.Abs(t.Start-mid), math.Abs(t.End-mid))
		if d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	return turns[bestIdx], true
}
