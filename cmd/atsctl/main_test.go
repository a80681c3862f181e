package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ats-engine/internal/batch"
	"ats-engine/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func heuristicConfig(t *testing.T) string {
	t.Helper()
	return writeFile(t, t.TempDir(), "config.yaml", "extractor:\n  mode: heuristic\n")
}

func TestSkillsCommand(t *testing.T) {
	out, err := execute(t, "skills", "Vue", "React", "--config", heuristicConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Vue ~ React: true (related)")

	out, err = execute(t, "skills", "React", "Terraform", "--config", heuristicConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "React ~ Terraform: false")

	_, err = execute(t, "skills", "React")
	assert.Error(t, err)
}

func TestRolesCommand_PrintsBothDirections(t *testing.T) {
	out, err := execute(t, "roles", "Engineering Lead", "Senior Engineer", "--config", heuristicConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Engineering Lead -> Senior Engineer: true")
	assert.Contains(t, out, "Senior Engineer -> Engineering Lead: false")
}

func TestScanCommand_JobFile(t *testing.T) {
	dir := t.TempDir()
	jobFile := writeFile(t, dir, "job.json", `{"title":"Frontend Engineer","requiredSkills":["React","Node"],"minYearsExp":2}`)
	resumeFile := writeFile(t, dir, "resume.txt", "Frontend developer\n2019 - 2024 Web Developer at Acme\nSkills: Vue, Express, TypeScript")

	out, err := execute(t, "scan", "--job-file", jobFile, "--resume", resumeFile, "--config", heuristicConfig(t))
	require.NoError(t, err)

	var res types.ScoreResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, types.SourceHeuristic, res.FeatureSource)
	assert.GreaterOrEqual(t, res.Score, 0.0)
	assert.LessOrEqual(t, res.Score, 100.0)
}

func TestBuildRescoreRequest(t *testing.T) {
	t.Cleanup(func() {
		rescoreJob, rescoreCandidates, rescoreFrom, rescoreTo, rescoreWeights = "", nil, "", "", nil
	})

	rescoreJob, rescoreCandidates = "job-1", []string{"a", "b"}
	rescoreWeights = map[string]string{"roleFit": "0.5", "skillsQuality": "0.5"}
	req, err := buildRescoreRequest()
	require.NoError(t, err)
	assert.Equal(t, batch.ModeSelection, req.Mode)
	assert.Equal(t, 0.5, req.Weights[types.DimRoleFit])

	rescoreCandidates, rescoreWeights = nil, nil
	rescoreFrom, rescoreTo = "2024-05-01", "2024-05-31T23:59:59Z"
	req, err = buildRescoreRequest()
	require.NoError(t, err)
	assert.Equal(t, batch.ModeDateRange, req.Mode)
	assert.Equal(t, time.May, req.From.Month())
	assert.Equal(t, 31, req.To.Day())

	rescoreFrom, rescoreTo = "", ""
	_, err = buildRescoreRequest()
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
}

func TestParseWeights(t *testing.T) {
	w, err := parseWeights(nil)
	require.NoError(t, err)
	assert.Nil(t, w)

	_, err = parseWeights(map[string]string{"roleFit": "heavy"})
	assert.ErrorIs(t, err, types.ErrInvalidRequest)

	_, err = parseWeights(map[string]string{"charisma": "1"})
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, 29, d.Day())

	_, err = parseDate("29/02/2024")
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
}
