package discovery

import "testing"

func TestScoreboard_ObserveKeepsBest(t *testing.T) {
	board := newScoreboard()
	board.observe("a", 0.6)
	board.observe("a", 0.8)
	board.observe("a", 0.7)

	if got := board.best["a"]; got != 0.8 {
		t.Errorf("best score = %v, want 0.8", got)
	}
}

func TestScoreboard_ObserveIdempotent(t *testing.T) {
	board := newScoreboard()
	board.observe("a", 0.75)
	board.observe("a", 0.75)

	if got := board.best["a"]; got != 0.75 {
		t.Errorf("replaying a score changed it: %v", got)
	}
}

func TestRank_FloorAndDynamicCutoff(t *testing.T) {
	// With top scores [0.9 0.85 0.5] the scaled cutoff 0.5*0.9=0.45 sits
	// below the floor, so the floor wins and all three survive.
	board := newScoreboard()
	board.observe("a", 0.9)
	board.observe("b", 0.85)
	board.observe("c", 0.5)
	board.observe("d", 0.3)

	rank := board.rank(5)
	if rank.cutoff != relevanceFloor {
		t.Errorf("cutoff = %v, want floor %v", rank.cutoff, relevanceFloor)
	}
	if len(rank.ids) != 3 {
		t.Fatalf("expected 3 survivors, got %v", rank.ids)
	}
	if rank.ids[0] != "a" || rank.ids[1] != "b" || rank.ids[2] != "c" {
		t.Errorf("unexpected order %v", rank.ids)
	}
	if _, ok := rank.scores["d"]; ok {
		t.Error("below-floor candidate must not carry a score")
	}
}

func TestRank_TightCutoffDropsStragglers(t *testing.T) {
	// All five top scores are strong, so the cutoff rises above the floor
	// (0.8*0.9=0.72) and prunes the 0.6 straggler.
	board := newScoreboard()
	for id, score := range map[string]float64{
		"a": 0.95, "b": 0.9, "c": 0.88, "d": 0.85, "e": 0.8, "f": 0.6,
	} {
		board.observe(id, score)
	}

	rank := board.rank(10)
	if rank.cutoff <= relevanceFloor {
		t.Fatalf("expected dynamic cutoff above floor, got %v", rank.cutoff)
	}
	if len(rank.ids) != 5 {
		t.Errorf("expected 5 survivors, got %v", rank.ids)
	}
	for _, id := range rank.ids {
		if rank.scores[id] < rank.cutoff {
			t.Errorf("survivor %s scored %v below cutoff %v", id, rank.scores[id], rank.cutoff)
		}
	}
}

func TestRank_TruncatesToLimit(t *testing.T) {
	board := newScoreboard()
	board.observe("a", 0.9)
	board.observe("b", 0.89)
	board.observe("c", 0.88)

	rank := board.rank(2)
	if len(rank.ids) != 2 {
		t.Fatalf("expected limit truncation to 2, got %v", rank.ids)
	}
	if rank.ids[0] != "a" || rank.ids[1] != "b" {
		t.Errorf("expected highest scores kept, got %v", rank.ids)
	}
	// Scores survive past truncation so the sanity filter can still verify
	// every loaded item.
	if len(rank.scores) != 3 {
		t.Errorf("expected 3 cutoff-passing scores, got %d", len(rank.scores))
	}
}

func TestRank_Empty(t *testing.T) {
	rank := newScoreboard().rank(5)
	if len(rank.ids) != 0 {
		t.Errorf("expected no ids, got %v", rank.ids)
	}
	if rank.cutoff != relevanceFloor {
		t.Errorf("empty board cutoff = %v, want floor", rank.cutoff)
	}
}
