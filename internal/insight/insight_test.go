package insight

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wrenware/scribe/internal/cmdlog"
)

func entry(ts time.Time, command, status string, durationMS int64) cmdlog.Entry {
	return cmdlog.Entry{
		Timestamp: ts,
		Command:   command,
		Status:    status,
		Output:    &cmdlog.EntryOutput{Success: status == cmdlog.StatusSuccess, DurationMS: durationMS},
	}
}

func TestDailyTrend_GroupsAndSorts(t *testing.T) {
	day := func(d, h int) time.Time { return time.Date(2026, 3, d, h, 0, 0, 0, time.UTC) }
	entries := []cmdlog.Entry{
		entry(day(15, 9), "generate", cmdlog.StatusSuccess, 200),
		entry(day(14, 9), "generate", cmdlog.StatusSuccess, 100),
		entry(day(14, 10), "generate", cmdlog.StatusSuccess, 300),
		entry(day(14, 11), "detect", cmdlog.StatusError, 200),
	}

	points := DailyTrend(entries, 0)
	if len(points) != 2 {
		t.Fatalf("expected 2 days, got %d", len(points))
	}
	if points[0].Date != "2026-03-14" || points[1].Date != "2026-03-15" {
		t.Errorf("expected ascending dates, got %s then %s", points[0].Date, points[1].Date)
	}

	d14 := points[0]
	if d14.Total != 3 || d14.Success != 2 || d14.Error != 1 {
		t.Errorf("unexpected day counters: %+v", d14)
	}
	if d14.SuccessRate != 67 {
		t.Errorf("expected success rate round(2/3*100)=67, got %d", d14.SuccessRate)
	}
	if d14.AvgDurationMS != 200 {
		t.Errorf("expected avg duration 200, got %d", d14.AvgDurationMS)
	}
}

func TestDailyTrend_TrailingWindow(t *testing.T) {
	var entries []cmdlog.Entry
	for d := 10; d <= 14; d++ {
		entries = append(entries, entry(time.Date(2026, 3, d, 9, 0, 0, 0, time.UTC), "detect", cmdlog.StatusSuccess, 10))
	}

	points := DailyTrend(entries, 2)
	if len(points) != 2 {
		t.Fatalf("expected 2 trailing points, got %d", len(points))
	}
	if points[0].Date != "2026-03-13" || points[1].Date != "2026-03-14" {
		t.Errorf("expected the last two days, got %s and %s", points[0].Date, points[1].Date)
	}
}

func TestDailyTrend_GroupsByUTCDate(t *testing.T) {
	cst := time.FixedZone("CST", 8*3600)
	// 07:30 +08:00 is still the previous day in UTC.
	entries := []cmdlog.Entry{
		entry(time.Date(2026, 3, 15, 7, 30, 0, 0, cst), "detect", cmdlog.StatusSuccess, 10),
	}

	points := DailyTrend(entries, 0)
	if len(points) != 1 {
		t.Fatalf("expected 1 day, got %d", len(points))
	}
	if points[0].Date != "2026-03-14" {
		t.Errorf("expected UTC date 2026-03-14, got %s", points[0].Date)
	}
}

func TestSceneStats_AveragesWithLegacyFallback(t *testing.T) {
	records := []cmdlog.EvaluationRecord{
		{Scene: "product/weekly", Scores: map[string]float64{"total": 80, "completeness": 85}},
		{Scene: "product/weekly", Scores: map[string]float64{"total_score": 60}},
		{Scene: "tech/design", Scores: map[string]float64{"detail": 40}},
	}

	stats := SceneStats(records)
	if len(stats) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(stats))
	}
	if stats[0].Scene != "product/weekly" || stats[1].Scene != "tech/design" {
		t.Errorf("expected scene-key order, got %s then %s", stats[0].Scene, stats[1].Scene)
	}

	pw := stats[0]
	if pw.Count != 2 {
		t.Errorf("expected count 2, got %d", pw.Count)
	}
	if pw.AvgScore != 70 {
		t.Errorf("expected avg (80+60)/2=70 with legacy fallback, got %v", pw.AvgScore)
	}
	if got := pw.Scores["completeness"]; len(got) != 1 || got[0] != 85 {
		t.Errorf("expected completeness values [85], got %v", got)
	}

	td := stats[1]
	if td.Count != 1 {
		t.Errorf("expected count 1, got %d", td.Count)
	}
	if td.AvgScore != 0 {
		t.Errorf("scene with no total must not invent an average, got %v", td.AvgScore)
	}
}

func TestSuggestions_AllHealthy(t *testing.T) {
	overall := cmdlog.Stats{TotalCommands: 10, SuccessCount: 10, AvgDurationMS: 1500}
	perCommand := map[string]cmdlog.Stats{
		"generate": {TotalCommands: 10, SuccessCount: 10, AvgDurationMS: 1500},
	}
	scenes := []SceneStat{{Scene: "product/weekly", Count: 3, AvgScore: 88}}

	if got := Suggestions(overall, perCommand, scenes); len(got) != 0 {
		t.Errorf("expected no suggestions, got %v", got)
	}
}

func TestSuggestions_LowSuccessRate(t *testing.T) {
	overall := cmdlog.Stats{TotalCommands: 10, SuccessCount: 5, ErrorCount: 5}

	got := Suggestions(overall, nil, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %v", got)
	}
	if !strings.Contains(got[0], "整体成功率 50%") {
		t.Errorf("expected the rate named, got %q", got[0])
	}
}

func TestSuggestions_SlowCommands(t *testing.T) {
	overall := cmdlog.Stats{TotalCommands: 4, SuccessCount: 4, AvgDurationMS: 45000}

	got := Suggestions(overall, nil, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %v", got)
	}
	if !strings.Contains(got[0], "45000ms") {
		t.Errorf("expected the duration named, got %q", got[0])
	}
}

func TestSuggestions_WorstCommandNeedsSamples(t *testing.T) {
	overall := cmdlog.Stats{TotalCommands: 10, SuccessCount: 9, ErrorCount: 1}
	perCommand := map[string]cmdlog.Stats{
		"detect":   {TotalCommands: 5, SuccessCount: 5},
		"generate": {TotalCommands: 3, SuccessCount: 1, ErrorCount: 2},
		// Only two samples; the rule must skip it even at 0%.
		"evaluate": {TotalCommands: 2, SuccessCount: 0, ErrorCount: 2},
	}

	got := Suggestions(overall, perCommand, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %v", got)
	}
	if !strings.Contains(got[0], "generate") {
		t.Errorf("expected generate flagged as worst, got %q", got[0])
	}
	if strings.Contains(got[0], "evaluate") {
		t.Errorf("two-sample command must be ignored, got %q", got[0])
	}
}

func TestSuggestions_LowScenesWorstFirst(t *testing.T) {
	scenes := []SceneStat{
		{Scene: "product/weekly", Count: 4, AvgScore: 65},
		{Scene: "tech/design", Count: 3, AvgScore: 55},
		{Scene: "hr/interview", Count: 2, AvgScore: 90},
	}

	got := Suggestions(cmdlog.Stats{}, nil, scenes)
	if len(got) != 2 {
		t.Fatalf("expected 2 suggestions, got %v", got)
	}
	if !strings.Contains(got[0], "tech/design") {
		t.Errorf("expected the worst scene first, got %q", got[0])
	}
	if !strings.Contains(got[1], "product/weekly") {
		t.Errorf("expected product/weekly second, got %q", got[1])
	}
}

func TestBuild_FromLogFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := cmdlog.NewStore(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	commandLines := strings.Join([]string{
		`{"timestamp":"2026-03-14T09:00:00Z","command":"generate","input":{"args":["a.txt"]},"output":{"success":true,"duration_ms":1200},"status":"success"}`,
		`{"timestamp":"2026-03-14T10:00:00Z","command":"generate","input":{"args":["b.txt"]},"output":{"success":false,"error":"upstream error","duration_ms":400},"status":"error"}`,
		`{"timestamp":"2026-03-14T11:00:00Z","command":"generate","input":{"args":["c.txt"]},"output":{"success":false,"error":"timeout","duration_ms":500},"status":"error"}`,
	}, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, "commands", "generate_2026-03-14.jsonl"), []byte(commandLines), 0644); err != nil {
		t.Fatalf("write command log: %v", err)
	}

	evalLines := `{"promptId":"tech/design@v1","scene":"tech/design","scores":{"total":58},"summary":"D","timestamp":"2026-03-14T11:30:00Z"}` + "\n"
	if err := os.WriteFile(filepath.Join(dir, "evaluations", "2026-03-14.jsonl"), []byte(evalLines), 0644); err != nil {
		t.Fatalf("write evaluation log: %v", err)
	}

	report, err := Build(store, 7)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if report.Overall.TotalCommands != 3 || report.Overall.SuccessCount != 1 {
		t.Errorf("unexpected overall stats: %+v", report.Overall)
	}
	if report.Overall.AvgDurationMS != 700 {
		t.Errorf("expected avg duration (1200+400+500)/3=700, got %d", report.Overall.AvgDurationMS)
	}
	if len(report.Trend) != 1 || report.Trend[0].SuccessRate != 33 {
		t.Errorf("unexpected trend: %+v", report.Trend)
	}
	if len(report.Scenes) != 1 || report.Scenes[0].AvgScore != 58 {
		t.Errorf("unexpected scene stats: %+v", report.Scenes)
	}

	// 33% overall, generate worst at 33%, tech/design at 58 points.
	if len(report.Suggestions) != 3 {
		t.Fatalf("expected 3 suggestions, got %v", report.Suggestions)
	}
	joined := strings.Join(report.Suggestions, "\n")
	for _, want := range []string{"整体成功率", "generate", "tech/design"} {
		if !strings.Contains(joined, want) {
			t.Errorf("suggestions missing %q:\n%s", want, joined)
		}
	}
}

func TestBuild_EmptyStore(t *testing.T) {
	store, err := cmdlog.NewStore(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	report, err := Build(store, 7)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report.Overall != (cmdlog.Stats{}) {
		t.Errorf("expected zero overall stats, got %+v", report.Overall)
	}
	if len(report.Trend) != 0 || len(report.Scenes) != 0 || len(report.Suggestions) != 0 {
		t.Errorf("expected empty report sections, got %+v", report)
	}
}
