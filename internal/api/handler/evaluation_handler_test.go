package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"ats-engine/internal/api/handler"
	"ats-engine/internal/api/router"
	"ats-engine/internal/batch"
	"ats-engine/internal/types"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScanner struct {
	scanErr error
	lastJob *types.JobProfile
	weights types.Weights
}

func (f *fakeScanner) ScanOne(_ context.Context, jobID, candidateID string) (*batch.ScanResult, error) {
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	if candidateID == "c-final" {
		return &batch.ScanResult{CandidateID: candidateID, State: types.StateSkipped, Message: "候选人状态为 hired（终态），已跳过"}, nil
	}
	return &batch.ScanResult{CandidateID: candidateID, State: types.StateSuccess, Result: &types.ScoreResult{Score: 81.5}}, nil
}

func (f *fakeScanner) EvaluateText(_ context.Context, job *types.JobProfile, text string, w types.Weights) (*types.ScoreResult, error) {
	f.lastJob, f.weights = job, w
	return &types.ScoreResult{Score: 64, FeatureSource: types.SourceHeuristic}, nil
}

type fakeDispatcher struct {
	last batch.Request
	err  error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, req batch.Request) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if err := req.Validate(0); err != nil {
		return "", err
	}
	f.last = req
	return "run-42", nil
}

type fakeProgress map[string]*types.BatchProgress

func (f fakeProgress) GetProgress(_ context.Context, runID string) (*types.BatchProgress, error) {
	if p, ok := f[runID]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("批处理 %s: %w", runID, types.ErrNotFound)
}

func newServer(scanner handler.Scanner, dispatcher handler.Dispatcher, progress handler.ProgressReader, keys ...string) *server.Hertz {
	h := server.New()
	eh := handler.NewEvaluationHandler(scanner, dispatcher, progress, "2024.06", zerolog.Nop())
	router.RegisterRoutes(h, eh, keys)
	return h
}

func doJSON(h *server.Hertz, method, path, body string, headers ...ut.Header) *ut.ResponseRecorder {
	headers = append(headers, ut.Header{Key: "Content-Type", Value: "application/json"})
	b := &ut.Body{Body: bytes.NewBufferString(body), Len: len(body)}
	return ut.PerformRequest(h.Engine, method, path, b, headers...)
}

func decode(t *testing.T, w *ut.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Result().Body(), v))
}

func TestHealth(t *testing.T) {
	h := newServer(&fakeScanner{}, nil, nil, "secret")
	w := doJSON(h, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	decode(t, w, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "2024.06", body["knowledge_version"])
}

func TestRescore(t *testing.T) {
	d := &fakeDispatcher{}
	h := newServer(&fakeScanner{}, d, nil)

	w := doJSON(h, http.MethodPost, "/api/v1/jobs/job-1/rescore",
		`{"mode":"date_range","from":"2024-05-01T00:00:00Z","to":"2024-05-31T00:00:00Z","weights":{"roleFit":0.6,"skillsQuality":0.4}}`)
	require.Equal(t, http.StatusAccepted, w.Code, string(w.Result().Body()))

	var body map[string]string
	decode(t, w, &body)
	assert.Equal(t, "run-42", body["run_id"])
	assert.Equal(t, "job-1", d.last.JobID)
	assert.Equal(t, batch.ModeDateRange, d.last.Mode)
	assert.Equal(t, 2024, d.last.From.Year())
	assert.Equal(t, 0.6, d.last.Weights[types.DimRoleFit])
}

func TestRescore_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		body   string
		status int
	}{
		{"bad json", nil, `{"mode":`, http.StatusBadRequest},
		{"empty body", nil, "", http.StatusBadRequest},
		{"selection without ids", nil, `{"mode":"selection"}`, http.StatusBadRequest},
		{"unknown mode", nil, `{"mode":"all"}`, http.StatusBadRequest},
		{"unknown weight", nil, `{"mode":"selection","candidate_ids":["a"],"weights":{"charisma":1}}`, http.StatusBadRequest},
		{"job missing", types.NewJobNotFoundError("job-1"), `{"mode":"selection","candidate_ids":["a"]}`, http.StatusNotFound},
		{"in progress", fmt.Errorf("岗位 job-1: %w", types.ErrBatchInProgress), `{"mode":"selection","candidate_ids":["a"]}`, http.StatusConflict},
		{"queue down", fmt.Errorf("发布失败"), `{"mode":"selection","candidate_ids":["a"]}`, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newServer(&fakeScanner{}, &fakeDispatcher{err: tc.err}, nil)
			w := doJSON(h, http.MethodPost, "/api/v1/jobs/job-1/rescore", tc.body)
			assert.Equal(t, tc.status, w.Code, string(w.Result().Body()))
		})
	}
}

func TestRescore_NoQueue(t *testing.T) {
	h := newServer(&fakeScanner{}, nil, nil)
	w := doJSON(h, http.MethodPost, "/api/v1/jobs/job-1/rescore", `{"mode":"selection","candidate_ids":["a"]}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBatchProgress(t *testing.T) {
	progress := fakeProgress{"run-1": {RunID: "run-1", JobID: "job-1", Status: types.RunRunning, Total: 3, Processed: 1}}
	h := newServer(&fakeScanner{}, nil, progress)

	w := doJSON(h, http.MethodGet, "/api/v1/batch-runs/run-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var p types.BatchProgress
	decode(t, w, &p)
	assert.Equal(t, types.RunRunning, p.Status)
	assert.Equal(t, 1, p.Processed)

	w = doJSON(h, http.MethodGet, "/api/v1/batch-runs/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScan(t *testing.T) {
	h := newServer(&fakeScanner{}, nil, nil)

	w := doJSON(h, http.MethodPost, "/api/v1/jobs/job-1/candidates/c-1/scan", "")
	require.Equal(t, http.StatusOK, w.Code)
	var res batch.ScanResult
	decode(t, w, &res)
	assert.Equal(t, types.StateSuccess, res.State)
	assert.Equal(t, 81.5, res.Result.Score)

	w = doJSON(h, http.MethodPost, "/api/v1/jobs/job-1/candidates/c-final/scan", "")
	require.Equal(t, http.StatusOK, w.Code, "finalized candidates are reported, not rejected")
	decode(t, w, &res)
	assert.Equal(t, types.StateSkipped, res.State)

	w = doJSON(newServer(&fakeScanner{scanErr: types.NewCandidateNotFoundError("c-1")}, nil, nil),
		http.MethodPost, "/api/v1/jobs/job-1/candidates/c-1/scan", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(newServer(&fakeScanner{scanErr: types.NewMissingDataError("c-1", "无文本")}, nil, nil),
		http.MethodPost, "/api/v1/jobs/job-1/candidates/c-1/scan", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestEvaluate(t *testing.T) {
	s := &fakeScanner{}
	h := newServer(s, nil, nil)

	w := doJSON(h, http.MethodPost, "/api/v1/evaluate",
		`{"job":{"title":"Backend Engineer","requiredSkills":["Go"],"minYearsExp":3},"resume_text":"Go developer","weights":{"skillsQuality":1}}`)
	require.Equal(t, http.StatusOK, w.Code, string(w.Result().Body()))
	assert.Equal(t, "Backend Engineer", s.lastJob.Title)
	assert.Equal(t, types.Weights{types.DimSkillsQuality: 1}, s.weights)

	w = doJSON(h, http.MethodPost, "/api/v1/evaluate", `{"job":{"title":""},"resume_text":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(h, http.MethodPost, "/api/v1/evaluate", `{"job":{"title":"x","weights":{"luck":1}},"resume_text":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	h := newServer(&fakeScanner{}, nil, nil, "secret")

	w := doJSON(h, http.MethodPost, "/api/v1/jobs/job-1/candidates/c-1/scan", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(h, http.MethodPost, "/api/v1/jobs/job-1/candidates/c-1/scan", "", ut.Header{Key: "Authorization", Value: "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(h, http.MethodPost, "/api/v1/jobs/job-1/candidates/c-1/scan", "", ut.Header{Key: "Authorization", Value: "Bearer secret"})
	assert.Equal(t, http.StatusOK, w.Code)
}
