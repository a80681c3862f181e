package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	presentWords = []string{"present", "current", "now", "today", "ongoing", "至今", "现在"}

	monthNames = map[string]time.Month{
		"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
		"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
		"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
	}

	reYearMonth  = regexp.MustCompile(`^(\d{4})[-/.年](\d{1,2})`)
	reMonthYear  = regexp.MustCompile(`^(\d{1,2})[-/.](\d{4})$`)
	reNamedMonth = regexp.MustCompile(`^([a-z]{3})[a-z]*\.?,?\s+(\d{4})$`)
	reYear       = regexp.MustCompile(`^(\d{4})$`)
)

// IsPresent 判断日期文本是否表示“至今”
func IsPresent(s string) bool {
	n := strings.ToLower(strings.TrimSpace(s))
	for _, w := range presentWords {
		if n == w || strings.HasPrefix(n, w) {
			return true
		}
	}
	return false
}

// ParseResumeDate 解析简历中常见的年月写法，精确到月。
// 支持 2020、2020-03、2020/3、03/2020、Mar 2020、March 2020、2020年3月 以及 Present 等。
func ParseResumeDate(s string, now time.Time) (time.Time, bool) {
	n := strings.ToLower(strings.TrimSpace(s))
	if n == "" {
		return time.Time{}, false
	}
	if IsPresent(n) {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), true
	}
	if m := reYearMonth.FindStringSubmatch(n); m != nil {
		return monthDate(m[1], m[2])
	}
	if m := reMonthYear.FindStringSubmatch(n); m != nil {
		return monthDate(m[2], m[1])
	}
	if m := reNamedMonth.FindStringSubmatch(n); m != nil {
		month, ok := monthNames[m[1]]
		if !ok {
			return time.Time{}, false
		}
		year, _ := strconv.Atoi(m[2])
		return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true
	}
	if m := reYear.FindStringSubmatch(n); m != nil {
		year, _ := strconv.Atoi(m[1])
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func monthDate(yearStr, monthStr string) (time.Time, bool) {
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
}

// MonthsBetween 两个日期之间的整月数，end 早于 start 时为负数
func MonthsBetween(start, end time.Time) int {
	return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
}
