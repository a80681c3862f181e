package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResumeDate(t *testing.T) {
	now := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		in    string
		year  int
		month time.Month
	}{
		{"2020", 2020, time.January},
		{"2020-03", 2020, time.March},
		{"2020/3", 2020, time.March},
		{"03/2020", 2020, time.March},
		{"Mar 2020", 2020, time.March},
		{"September 2019", 2019, time.September},
		{"2021年7月", 2021, time.July},
		{"Present", 2024, time.June},
		{"至今", 2024, time.June},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseResumeDate(tt.in, now)
			require.True(t, ok)
			assert.Equal(t, tt.year, got.Year())
			assert.Equal(t, tt.month, got.Month())
		})
	}

	for _, bad := range []string{"", "sometime", "2020-13"} {
		_, ok := ParseResumeDate(bad, now)
		assert.False(t, ok, bad)
	}
}

func TestMonthsBetween(t *testing.T) {
	start := time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 22, MonthsBetween(start, end))
	assert.Equal(t, -22, MonthsBetween(end, start))
}

func TestDedupeFold(t *testing.T) {
	assert.Equal(t, []string{"Go", "React"}, DedupeFold([]string{"Go", " go ", "React", "", "REACT"}))
	assert.True(t, ContainsFold([]string{"Kubernetes"}, "kubernetes "))
}
