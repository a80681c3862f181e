package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"ats-engine/internal/types"
)

var firstNumber = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// ParseScore 将任意形态的分数值恢复为有限数字。
// 字符串取第一个数字（"Score: 72.5 out of 100" -> 72.5），无法解析或非有限值返回 0。
func ParseScore(v interface{}) float64 {
	f, _ := parseScore(v)
	return f
}

// SanitizeScore 在 ParseScore 基础上夹到 [0,100]
func SanitizeScore(v interface{}) float64 {
	return clamp(ParseScore(v), 0, 100)
}

func parseScore(v interface{}) (float64, error) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, fmt.Errorf("%w: nil", types.ErrScoreRange)
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return parseScore(t.String())
		}
		f = parsed
	case string:
		m := firstNumber.FindString(t)
		if m == "" {
			return 0, fmt.Errorf("%w: no numeric value in %q", types.ErrScoreRange, t)
		}
		parsed, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", types.ErrScoreRange, err)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", types.ErrScoreRange, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: non-finite", types.ErrScoreRange)
	}
	return f, nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
