// Package insight computes rolling statistics over the invocation log
// and derives prompt-improvement suggestions from fixed thresholds. It
// is pure aggregation: every number is recomputed from the log streams
// on each call.
package insight

import (
	"fmt"
	"math"
	"sort"

	"github.com/wrenware/scribe/internal/cmdlog"
)

// Suggestion thresholds. The rules are a fixed decision table, not a
// learned model.
const (
	// minHealthySuccessRate flags overall and per-command success rates
	// below this percentage.
	minHealthySuccessRate = 80
	// maxHealthyAvgDurationMS flags average command latency above this.
	maxHealthyAvgDurationMS = 30000
	// minHealthySceneScore flags scenes whose average evaluation score
	// falls below this.
	minHealthySceneScore = 70
	// minCommandSamples is how many invocations a command needs before
	// the worst-command rule will consider it.
	minCommandSamples = 2
)

// DailyPoint is one calendar day of command activity. Dates are UTC.
type DailyPoint struct {
	Date          string `json:"date"`
	Total         int    `json:"total"`
	Success       int    `json:"success"`
	Error         int    `json:"error"`
	SuccessRate   int    `json:"success_rate"`
	AvgDurationMS int64  `json:"avg_duration_ms"`
}

// SceneStat aggregates the evaluation records of one scene. Scores maps
// each metric name to every observed value, in record order.
type SceneStat struct {
	Scene    string               `json:"scene"`
	Count    int                  `json:"count"`
	AvgScore float64              `json:"avg_score"`
	Scores   map[string][]float64 `json:"scores"`
}

// Report is the full insight output.
type Report struct {
	Days        int          `json:"days"`
	Overall     cmdlog.Stats `json:"overall"`
	Trend       []DailyPoint `json:"daily_trend"`
	Scenes      []SceneStat  `json:"scene_stats"`
	Suggestions []string     `json:"suggestions"`
}

// DailyTrend groups entries by UTC calendar date and returns per-day
// counters sorted ascending, truncated to the trailing days points.
// days <= 0 keeps every day.
func DailyTrend(entries []cmdlog.Entry, days int) []DailyPoint {
	type acc struct {
		total, success, errs int
		duration             int64
	}
	byDate := make(map[string]*acc)
	for _, e := range entries {
		date := e.Timestamp.UTC().Format("2006-01-02")
		a := byDate[date]
		if a == nil {
			a = &acc{}
			byDate[date] = a
		}
		a.total++
		if e.Status == cmdlog.StatusSuccess {
			a.success++
		} else {
			a.errs++
		}
		if e.Output != nil {
			a.duration += e.Output.DurationMS
		}
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	points := make([]DailyPoint, 0, len(dates))
	for _, d := range dates {
		a := byDate[d]
		points = append(points, DailyPoint{
			Date:          d,
			Total:         a.total,
			Success:       a.success,
			Error:         a.errs,
			SuccessRate:   ratePercent(a.success, a.total),
			AvgDurationMS: a.duration / int64(a.total),
		})
	}
	if days > 0 && len(points) > days {
		points = points[len(points)-days:]
	}
	return points
}

// SceneStats groups evaluation records by scene, sorted by scene key.
// The average reads each record's "total" score, falling back to the
// legacy "total_score" key; records carrying neither are counted but do
// not enter the average.
func SceneStats(records []cmdlog.EvaluationRecord) []SceneStat {
	byScene := make(map[string]*SceneStat)
	scored := make(map[string]int)
	sums := make(map[string]float64)

	for _, rec := range records {
		st := byScene[rec.Scene]
		if st == nil {
			st = &SceneStat{Scene: rec.Scene, Scores: make(map[string][]float64)}
			byScene[rec.Scene] = st
		}
		st.Count++
		for metric, value := range rec.Scores {
			st.Scores[metric] = append(st.Scores[metric], value)
		}

		total, ok := rec.Scores["total"]
		if !ok {
			total, ok = rec.Scores["total_score"]
		}
		if ok {
			sums[rec.Scene] += total
			scored[rec.Scene]++
		}
	}

	keys := make([]string, 0, len(byScene))
	for k := range byScene {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]SceneStat, 0, len(keys))
	for _, k := range keys {
		st := byScene[k]
		if n := scored[k]; n > 0 {
			st.AvgScore = sums[k] / float64(n)
		}
		out = append(out, *st)
	}
	return out
}

// Suggestions applies the threshold rules to the aggregates and returns
// human-readable advice, worst findings first within each rule. An
// empty slice means nothing crossed a threshold.
func Suggestions(overall cmdlog.Stats, perCommand map[string]cmdlog.Stats, scenes []SceneStat) []string {
	var out []string

	if overall.TotalCommands > 0 {
		if rate := ratePercent(overall.SuccessCount, overall.TotalCommands); rate < minHealthySuccessRate {
			out = append(out, fmt.Sprintf(
				"整体成功率 %d%%，低于 %d%%，建议检查 logs/commands 下的错误记录定位失败原因",
				rate, minHealthySuccessRate))
		}
		if overall.AvgDurationMS > maxHealthyAvgDurationMS {
			out = append(out, fmt.Sprintf(
				"平均耗时 %dms，超过 %dms，建议精简提示词或改用响应更快的模型",
				overall.AvgDurationMS, maxHealthyAvgDurationMS))
		}
	}

	if cmd, rate, ok := worstCommand(perCommand); ok && rate < minHealthySuccessRate {
		out = append(out, fmt.Sprintf(
			"%s 命令成功率最低（%d%%），建议优先排查该命令的失败记录", cmd, rate))
	}

	low := make([]SceneStat, 0, len(scenes))
	for _, sc := range scenes {
		if sc.Count > 0 && sc.AvgScore < minHealthySceneScore {
			low = append(low, sc)
		}
	}
	sort.Slice(low, func(i, j int) bool {
		if low[i].AvgScore != low[j].AvgScore {
			return low[i].AvgScore < low[j].AvgScore
		}
		return low[i].Scene < low[j].Scene
	})
	for _, sc := range low {
		out = append(out, fmt.Sprintf(
			"场景 %s 平均得分 %.1f，低于 %d 分，建议针对该场景迭代提示词",
			sc.Scene, sc.AvgScore, minHealthySceneScore))
	}

	return out
}

// worstCommand returns the command with the lowest success rate among
// those with more than minCommandSamples invocations. Ties resolve to
// the lexicographically first command so output stays stable.
func worstCommand(perCommand map[string]cmdlog.Stats) (string, int, bool) {
	cmds := make([]string, 0, len(perCommand))
	for c := range perCommand {
		cmds = append(cmds, c)
	}
	sort.Strings(cmds)

	worst := ""
	worstRate := 0
	for _, c := range cmds {
		cs := perCommand[c]
		if cs.TotalCommands <= minCommandSamples {
			continue
		}
		rate := ratePercent(cs.SuccessCount, cs.TotalCommands)
		if worst == "" || rate < worstRate {
			worst = c
			worstRate = rate
		}
	}
	return worst, worstRate, worst != ""
}

// Build assembles the report for the trailing window from the log
// store's streams.
func Build(store *cmdlog.Store, days int) (*Report, error) {
	entries, err := store.Query(cmdlog.Filter{})
	if err != nil {
		return nil, err
	}

	overall, err := store.Stats("", days)
	if err != nil {
		return nil, err
	}

	perCommand := make(map[string]cmdlog.Stats)
	for _, e := range entries {
		if _, ok := perCommand[e.Command]; ok {
			continue
		}
		cs, err := store.Stats(e.Command, days)
		if err != nil {
			return nil, err
		}
		perCommand[e.Command] = cs
	}

	records, err := store.QueryEvaluations(days)
	if err != nil {
		return nil, err
	}
	scenes := SceneStats(records)

	return &Report{
		Days:        days,
		Overall:     overall,
		Trend:       DailyTrend(entries, days),
		Scenes:      scenes,
		Suggestions: Suggestions(overall, perCommand, scenes),
	}, nil
}

// ratePercent is round(success/total*100).
func ratePercent(success, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(success) / float64(total) * 100))
}
