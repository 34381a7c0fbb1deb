package search

import (
	"testing"

	"github.com/hearthlink/mediavault/vectorindex"
)

func TestMergeByMaxScoreKeepsHigherScore(t *testing.T) {
	a := []vectorindex.Hit{{GMID: "x", Score: 0.3}, {GMID: "y", Score: 0.9}}
	b := []vectorindex.Hit{{GMID: "x", Score: 0.7}, {GMID: "z", Score: 0.5}}

	merged := mergeByMaxScore(a, b)
	scores := map[string]float64{}
	for _, r := range merged {
		scores[r.GMID] = r.Score
	}

	if scores["x"] != 0.7 {
		t.Errorf("expected x to keep the higher score 0.7, got %v", scores["x"])
	}
	if scores["y"] != 0.9 {
		t.Errorf("expected y score 0.9, got %v", scores["y"])
	}
	if scores["z"] != 0.5 {
		t.Errorf("expected z score 0.5, got %v", scores["z"])
	}
}

func TestTopNOrdersDescendingAndTruncates(t *testing.T) {
	results := []Result{{GMID: "a", Score: 0.1}, {GMID: "b", Score: 0.9}, {GMID: "c", Score: 0.5}}
	top := topN(results, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 results, got %d", len(top))
	}
	if top[0].GMID != "b" || top[1].GMID != "c" {
		t.Fatalf("expected [b, c] in descending score order, got %+v", top)
	}
}
