package web

import (
	"net/http"
	"sort"
	"time"

	"github.com/wrenware/scribe/internal/buildinfo"
	"github.com/wrenware/scribe/internal/cmdlog"
	"github.com/wrenware/scribe/internal/insight"
	"github.com/wrenware/scribe/internal/task"
)

// OverviewData is the template context for the overview page.
type OverviewData struct {
	ActiveNav   string
	Report      *insight.Report
	SuccessRate int
	Recent      []cmdlog.Entry
	TaskCounts  map[string]int
	Uptime      time.Duration
}

// handleOverview renders the activity overview: the rolling insight
// report, the latest command invocations, and live task counts.
func (s *WebServer) handleOverview(w http.ResponseWriter, r *http.Request) {
	report, err := insight.Build(s.logs, 7)
	if err != nil {
		s.logger.Error("build insight report", "error", err)
		http.Error(w, "failed to build report", http.StatusInternalServerError)
		return
	}

	recent, err := s.logs.Query(cmdlog.Filter{Limit: 50})
	if err != nil {
		s.logger.Warn("query recent commands", "error", err)
	}
	// Query returns per-command streams concatenated; order by time
	// before trimming to the panel size.
	sort.Slice(recent, func(i, j int) bool {
		return recent[i].Timestamp.After(recent[j].Timestamp)
	})
	if len(recent) > 10 {
		recent = recent[:10]
	}

	counts := make(map[string]int)
	for _, t := range s.tasks.List(task.ListFilter{}) {
		counts[t.Status]++
	}

	rate := 0
	if report.Overall.TotalCommands > 0 {
		rate = int(float64(report.Overall.SuccessCount) / float64(report.Overall.TotalCommands) * 100)
	}

	s.render(w, "overview.html", OverviewData{
		ActiveNav:   "overview",
		Report:      report,
		SuccessRate: rate,
		Recent:      recent,
		TaskCounts:  counts,
		Uptime:      buildinfo.Uptime(),
	})
}
