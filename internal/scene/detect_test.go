package scene

import (
	"strings"
	"testing"
)

func TestDetect_ProductWeekly(t *testing.T) {
	got := Detect("产品周会 本周 需求 排期")

	if got.SceneKey != "product/weekly" {
		t.Errorf("scene = %q, want product/weekly", got.SceneKey)
	}
	if got.Confidence != 1 {
		t.Errorf("confidence = %v, want 1", got.Confidence)
	}
	if got.AllScores["product/weekly"] != 4 {
		t.Errorf("allScores[product/weekly] = %d, want 4", got.AllScores["product/weekly"])
	}

	want := []string{"产品周会", "本周", "需求", "排期"}
	if len(got.Keywords) != len(want) {
		t.Fatalf("keywords = %v, want %v", got.Keywords, want)
	}
	for i := range want {
		if got.Keywords[i] != want[i] {
			t.Errorf("keywords[%d] = %q, want %q (declared order)", i, got.Keywords[i], want[i])
		}
	}
}

func TestDetect_FallbackKeepsComputedConfidence(t *testing.T) {
	got := Detect("The quick brown fox jumps over the lazy dog.")

	if got.SceneKey != FallbackKey {
		t.Errorf("scene = %q, want %q", got.SceneKey, FallbackKey)
	}
	// The confidence is the computed value (0 here), not the 0.3 floor.
	if got.Confidence != 0 {
		t.Errorf("confidence = %v, want exactly 0", got.Confidence)
	}
	if len(got.Keywords) != 1 || got.Keywords[0] != "会议" {
		t.Errorf("keywords = %v, want [会议]", got.Keywords)
	}
}

func TestDetect_EmptyContent(t *testing.T) {
	got := Detect("")

	if got.SceneKey != FallbackKey {
		t.Errorf("scene = %q, want fallback", got.SceneKey)
	}
	if got.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", got.Confidence)
	}
	if len(got.AllScores) != len(All()) {
		t.Errorf("allScores has %d entries, want %d", len(got.AllScores), len(All()))
	}
}

func TestDetect_KeywordDedup(t *testing.T) {
	once := Detect("我们开始需求评审")
	twice := Detect("我们开始需求评审，继续需求评审，还是需求评审")

	if once.AllScores["product/review"] != twice.AllScores["product/review"] {
		t.Errorf("repeated keyword changed score: %d vs %d",
			once.AllScores["product/review"], twice.AllScores["product/review"])
	}
}

func TestDetect_TieBreakFirstDeclaredWins(t *testing.T) {
	// One keyword hit each for product/review (评审) and tech/retro (复盘).
	// product/review is declared earlier, so it must win the tie.
	got := Detect("评审 复盘")

	if got.AllScores["product/review"] != 1 || got.AllScores["tech/retro"] != 1 {
		t.Fatalf("expected a 1-1 tie, got scores %d and %d",
			got.AllScores["product/review"], got.AllScores["tech/retro"])
	}
	if got.SceneKey != "product/review" {
		t.Errorf("tie went to %q, want first-declared product/review", got.SceneKey)
	}
}

func TestDetect_KeywordsCappedAtFive(t *testing.T) {
	got := Detect("产品周会 本周 需求 排期 进展 下周计划")

	if got.AllScores["product/weekly"] != 6 {
		t.Fatalf("allScores[product/weekly] = %d, want 6", got.AllScores["product/weekly"])
	}
	if len(got.Keywords) != 5 {
		t.Errorf("keywords length = %d, want cap of 5", len(got.Keywords))
	}
	// Truncation keeps declared order: the 6th keyword is dropped.
	if got.Keywords[4] != "进展" {
		t.Errorf("keywords[4] = %q, want 进展", got.Keywords[4])
	}
}

func TestDetect_ConfidenceBounds(t *testing.T) {
	inputs := []string{
		"",
		"会议",
		"产品周会",
		"产品周会 本周",
		"产品周会 本周 需求 排期 进展 下周计划",
		"完全无关的文本内容",
		strings.Repeat("面试 候选人 ", 50),
	}
	for _, in := range inputs {
		got := Detect(in)
		if got.Confidence < 0 || got.Confidence > 1 {
			t.Errorf("Detect(%q).Confidence = %v, out of [0,1]", in, got.Confidence)
		}
		if len(got.Keywords) > 5 {
			t.Errorf("Detect(%q) returned %d keywords, cap is 5", in, len(got.Keywords))
		}
	}
}

func TestDetect_SingleKeywordScene(t *testing.T) {
	// 会议 is the general/other scene's only declared keyword; a plain
	// mention classifies there organically (score 1, no fallback path).
	got := Detect("下午的会议改到三点")

	if got.SceneKey != "general/other" {
		t.Errorf("scene = %q, want general/other", got.SceneKey)
	}
	if got.Confidence < 0.3 {
		t.Errorf("confidence = %v, expected at least the floor for one hit", got.Confidence)
	}
}

func TestDetect_Deterministic(t *testing.T) {
	const content = "技术评审 架构设计 复盘"
	a := Detect(content)
	b := Detect(content)

	if a.SceneKey != b.SceneKey || a.Confidence != b.Confidence {
		t.Errorf("Detect is not deterministic: %+v vs %+v", a, b)
	}
}
