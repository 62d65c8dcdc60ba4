package diarize

import (
	"testing"
)

func TestBestTurnMaxOverlap(t *testing.T) {
	turns := []Turn{
		{Start: 0, End: 3.0, Label: "A"},
		{Start: 3.0, End: 6.0, Label: "B"},
	}

	// Overlap with A = 1.0s, with B = 0.5s.
	turn, ok := BestTurn(2.0, 3.5, turns)
	if !ok {
		t.Fatal("Expected a turn")
	}
	if turn.Label != "A" {
		t.Errorf("Expected A (larger overlap), got %s", turn.Label)
	}

	// Overlap with B = 1.5s, with A = 0.5s.
	turn, _ = BestTurn(2.5, 4.5, turns)
	if turn.Label != "B" {
		t.Errorf("Expected B (larger overlap), got %s", turn.Label)
	}
}

func TestBestTurnEqualOverlapFirstWins(t *testing.T) {
	turns := []Turn{
		{Start: 0, End: 3.0, Label: "A"},
		{Start: 3.0, End: 6.0, Label: "B"},
	}

	// Segment (2.0, 4.0): 1.0s overlap with each; first turn reaching the
	// maximum wins by slice order.
	turn, ok := BestTurn(2.0, 4.0, turns)
	if !ok {
		t.Fatal("Expected a turn")
	}
	if turn.Label != "A" {
		t.Errorf("Expected A by slice-order tie break, got %s", turn.Label)
	}
}

func TestBestTurnMidpointFallback(t *testing.T) {
	turns := []Turn{
		{Start: 0, End: 1.0, Label: "A"},
		{Start: 1.5, End: 5.0, Label: "B"},
	}

	// Segment (1.1, 1.4) overlaps nothing; midpoint 1.25 is inside no turn
	// either, so distance decides: A's end (1.0) is 0.25 away, B's start
	// (1.5) is 0.25 away; A checked first.
	turn, ok := BestTurn(1.1, 1.4, turns)
	if !ok {
		t.Fatal("Expected a turn")
	}
	if turn.Label != "A" {
		t.Errorf("Expected A via distance tie break, got %s", turn.Label)
	}

	// Segment (2.0, 2.4) overlaps B directly.
	turn, _ = BestTurn(2.0, 2.4, turns)
	if turn.Label != "B" {
		t.Errorf("Expected B via overlap, got %s", turn.Label)
	}
}

func TestBestTurnMidpointContained(t *testing.T) {
	turns := []Turn{
		{Start: 0, End: 1.0, Label: "A"},
		{Start: 1.0, End: 5.0, Label: "B"},
	}

	// Zero-length segment at 2.0: no positive overlap, but midpoint 2.0
	// falls inside B.
	turn, ok := BestTurn(2.0, 2.0, turns)
	if !ok {
		t.Fatal("Expected a turn")
	}
	if turn.Label != "B" {
		t.Errorf("Expected B via midpoint containment, got %s", turn.Label)
	}
}

func TestBestTurnNearestEndpoint(t *testing.T) {
	turns := []Turn{
		{Start: 0, End: 1.0, Label: "A"},
		{Start: 10.0, End: 12.0, Label: "B"},
	}

	// Segment (8.0, 9.0) sits in a gap; midpoint 8.5 is 1.5 from B's start
	// and 7.5 from A's end.
	turn, ok := BestTurn(8.0, 9.0, turns)
	if !ok {
		t.Fatal("Expected a turn")
	}
	if turn.Label != "B" {
		t.Errorf("Expected B via nearest endpoint, got %s", turn.Label)
	}
}

func TestBestTurnEmpty(t *testing.T) {
	if _, ok := BestTurn(0, 1, nil); ok {
		t.Error("Expected no turn for empty input")
	}
}
