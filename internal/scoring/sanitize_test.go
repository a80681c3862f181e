package scoring

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"ats-engine/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestParseScore(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want float64
	}{
		{"prose", "Score: 72.5 out of 100", 72.5},
		{"slash", "Score: 72.5/100", 72.5},
		{"plain string", "88", 88},
		{"float", 64.25, 64.25},
		{"int", 90, 90},
		{"json number", json.Number("41.5"), 41.5},
		{"no digits", "excellent", 0},
		{"nil", nil, 0},
		{"nan", math.NaN(), 0},
		{"inf", math.Inf(-1), 0},
		{"struct", struct{}{}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ParseScore(c.in))
		})
	}
}

func TestSanitizeScore_Clamps(t *testing.T) {
	assert.Equal(t, 100.0, SanitizeScore("150 points"))
	assert.Equal(t, 0.0, SanitizeScore(-5))
	assert.Equal(t, 72.5, SanitizeScore("Score: 72.5 out of 100"))
}

func TestParseScore_ErrorKind(t *testing.T) {
	_, err := parseScore("n/a")
	assert.True(t, errors.Is(err, types.ErrScoreRange))
}
