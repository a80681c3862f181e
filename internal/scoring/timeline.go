package scoring

import (
	"sort"
	"time"

	"ats-engine/internal/types"
	"ats-engine/pkg/utils"
)

const (
	gapThresholdMonths     = 6
	longGapMonths          = 12
	overlapThresholdMonths = 3
)

type span struct {
	index  int
	exp    types.Experience
	start  time.Time
	end    time.Time
	months int
}

type gap struct {
	after, before string
	months        int
}

// timeline 解析后的工作经历时间线，经验维度和风险标记共用
type timeline struct {
	spans          []span
	undated        int
	gaps           []gap
	overlaps       int
	contradictions int
	mostRecent     *types.Experience
}

func buildTimeline(exps []types.Experience, now time.Time) *timeline {
	tl := &timeline{}
	for i, e := range exps {
		start, okStart := utils.ParseResumeDate(e.Start, now)
		end, okEnd := utils.ParseResumeDate(e.End, now)
		if e.IsCurrent || (!okEnd && utils.IsPresent(e.End)) {
			end, okEnd = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), true
		}
		if !okStart || !okEnd {
			tl.undated++
			continue
		}
		months := utils.MonthsBetween(start, end)
		if months < 0 {
			tl.contradictions++
			continue
		}
		tl.spans = append(tl.spans, span{index: i, exp: e, start: start, end: end, months: months})
	}

	sort.SliceStable(tl.spans, func(i, j int) bool {
		return tl.spans[i].start.Before(tl.spans[j].start)
	})

	var coveredUntil time.Time
	var lastRole string
	for i, s := range tl.spans {
		if i > 0 {
			diff := utils.MonthsBetween(coveredUntil, s.start)
			if diff > gapThresholdMonths {
				tl.gaps = append(tl.gaps, gap{after: lastRole, before: s.exp.Role, months: diff})
			}
			if overlap := utils.MonthsBetween(s.start, coveredUntil); overlap > overlapThresholdMonths && !s.exp.IsCurrent {
				tl.overlaps++
			}
		}
		if s.end.After(coveredUntil) {
			coveredUntil = s.end
			lastRole = s.exp.Role
		}
	}

	tl.mostRecent = mostRecentExperience(exps, tl.spans)
	return tl
}

// mostRecentExperience 优先取标记为当前的经历，其次取结束时间最晚的，最后取列表第一条
func mostRecentExperience(exps []types.Experience, spans []span) *types.Experience {
	if len(exps) == 0 {
		return nil
	}
	for i := range exps {
		if exps[i].IsCurrent || utils.IsPresent(exps[i].End) {
			return &exps[i]
		}
	}
	if len(spans) > 0 {
		latest := spans[0]
		for _, s := range spans[1:] {
			if s.end.After(latest.end) {
				latest = s
			}
		}
		return &exps[latest.index]
	}
	return &exps[0]
}

// recentIndexes 最近的 n 段经历在原列表中的下标
func (tl *timeline) recentIndexes(exps []types.Experience, n int) map[int]bool {
	out := make(map[int]bool, n)
	if len(tl.spans) == 0 {
		for i := 0; i < len(exps) && i < n; i++ {
			out[i] = true
		}
		return out
	}
	sorted := make([]span, len(tl.spans))
	copy(sorted, tl.spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].end.After(sorted[j].end)
	})
	for i := 0; i < len(sorted) && i < n; i++ {
		out[sorted[i].index] = true
	}
	return out
}

func (tl *timeline) averageTenureMonths() float64 {
	if len(tl.spans) == 0 {
		return 0
	}
	total := 0
	for _, s := range tl.spans {
		total += s.months
	}
	return float64(total) / float64(len(tl.spans))
}

func (tl *timeline) shortStints(maxMonths int) int {
	n := 0
	for _, s := range tl.spans {
		if s.months < maxMonths && !s.exp.IsCurrent {
			n++
		}
	}
	return n
}
