package batch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"ats-engine/internal/types"
)

// memStore 内存文档存储，WriteScore 的终态复查与 CandidateStore 一致。
// beforeWrite 在复查之前调用，用来模拟人工并发修改状态。
type memStore struct {
	mu          sync.Mutex
	jobs        map[string]*types.JobProfile
	candidates  map[string]*types.CandidateRecord
	results     map[string]*types.ScoreResult
	writes      int
	completed   []*types.BatchSummary
	getErr      map[string]error
	beforeWrite func(candidateID string)
}

func newMemStore() *memStore {
	return &memStore{
		jobs:       map[string]*types.JobProfile{},
		candidates: map[string]*types.CandidateRecord{},
		results:    map[string]*types.ScoreResult{},
		getErr:     map[string]error{},
	}
}

func (m *memStore) addCandidate(c types.CandidateRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates[c.ID] = &c
}

func (m *memStore) setStatus(id, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates[id].Status = status
}

func (m *memStore) candidate(id string) types.CandidateRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.candidates[id]
}

func (m *memStore) GetJobProfile(_ context.Context, jobID string) (*types.JobProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, types.NewJobNotFoundError(jobID)
	}
	return j, nil
}

func (m *memStore) GetCandidate(_ context.Context, jobID, candidateID string) (*types.CandidateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.getErr[candidateID]; err != nil {
		return nil, err
	}
	c, ok := m.candidates[candidateID]
	if !ok || (jobID != "" && c.JobID != jobID) {
		return nil, types.NewCandidateNotFoundError(candidateID)
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) QueryCandidatesByDateRange(_ context.Context, jobID string, from, to time.Time, limit int) ([]*types.CandidateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.CandidateRecord
	for _, c := range m.candidates {
		if c.JobID == jobID && !c.CreatedAt.Before(from) && !c.CreatedAt.After(to) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) WriteScore(_ context.Context, candidateID string, u types.ScoreUpdate) error {
	if m.beforeWrite != nil {
		m.beforeWrite(candidateID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[candidateID]
	if !ok {
		return types.NewCandidateNotFoundError(candidateID)
	}
	if types.IsFinalized(c.Status) {
		return types.NewConflictError(candidateID, c.Status)
	}
	score := u.Result.Score
	c.Score = &score
	m.results[candidateID] = u.Result
	m.writes++
	return nil
}

func (m *memStore) RecordBatchCompleted(_ context.Context, s *types.BatchSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, s)
	return nil
}

// stubExtractor 按文本返回固定特征，fail 中的文本返回错误
type stubExtractor struct {
	fail  map[string]error
	calls int
}

func (s *stubExtractor) Extract(_ context.Context, text string) (*types.ExtractedFeatures, error) {
	s.calls++
	if err := s.fail[text]; err != nil {
		return nil, err
	}
	f := types.DefaultFeatures(text)
	f.Skills = []string{"Vue", "Express"}
	f.TotalExperienceYears = 5
	f.Source = types.SourceHeuristic
	return f, nil
}

type memProgress struct {
	mu    sync.Mutex
	snaps map[string][]types.BatchProgress
	err   error
}

func newMemProgress() *memProgress {
	return &memProgress{snaps: map[string][]types.BatchProgress{}}
}

func (p *memProgress) SaveProgress(_ context.Context, bp *types.BatchProgress, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.snaps[bp.RunID] = append(p.snaps[bp.RunID], *bp)
	return nil
}

func (p *memProgress) GetProgress(_ context.Context, runID string) (*types.BatchProgress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.snaps[runID]
	if len(s) == 0 {
		return nil, types.ErrNotFound
	}
	last := s[len(s)-1]
	return &last, nil
}

type memLocker struct {
	mu       sync.Mutex
	held     map[string]string
	released []string
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]string{}}
}

func (l *memLocker) AcquireJobLock(_ context.Context, jobID string, _ time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[jobID]; ok {
		return "", types.ErrBatchInProgress
	}
	l.held[jobID] = "tok-" + jobID
	return l.held[jobID], nil
}

func (l *memLocker) ReleaseJobLock(_ context.Context, jobID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[jobID] != token {
		return errors.New("token mismatch")
	}
	delete(l.held, jobID)
	l.released = append(l.released, jobID)
	return nil
}

func (l *memLocker) IsJobLocked(_ context.Context, jobID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[jobID]
	return ok, nil
}
