package batch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ats-engine/internal/storage"
	"ats-engine/internal/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_RecordsProgressAndReleasesLock(t *testing.T) {
	store := seededStore()
	progress := newMemProgress()
	locker := newMemLocker()
	runner := NewRunner(NewOrchestrator(store, &stubExtractor{}, newEngine(t)), locker, progress, time.Minute, time.Hour, zerolog.Nop())

	req := dateRange()
	req.RunID = "run-1"
	var seen []types.ProgressEvent
	summary, err := runner.Execute(context.Background(), req, func(ev types.ProgressEvent) { seen = append(seen, ev) })
	require.NoError(t, err)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Len(t, seen, 6)

	snap, err := progress.GetProgress(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, types.RunCompleted, snap.Status)
	assert.Equal(t, 3, snap.Processed)
	assert.Equal(t, 1, snap.SkippedCount)
	assert.Equal(t, summary, snap.Summary)
	assert.Len(t, snap.Events, 6)

	first := progress.snaps["run-1"][0]
	assert.Equal(t, types.RunRunning, first.Status)

	assert.Equal(t, []string{"job-1"}, locker.released)
	locked, _ := locker.IsJobLocked(context.Background(), "job-1")
	assert.False(t, locked)
}

func TestRunner_RejectsOverlappingRun(t *testing.T) {
	progress := newMemProgress()
	locker := newMemLocker()
	_, err := locker.AcquireJobLock(context.Background(), "job-1", time.Minute)
	require.NoError(t, err)

	ex := &stubExtractor{}
	runner := NewRunner(NewOrchestrator(seededStore(), ex, newEngine(t)), locker, progress, time.Minute, time.Hour, zerolog.Nop())
	req := dateRange()
	req.RunID = "run-2"

	_, err = runner.Execute(context.Background(), req)
	assert.ErrorIs(t, err, types.ErrBatchInProgress)
	assert.Zero(t, ex.calls)

	snap, err := progress.GetProgress(context.Background(), "run-2")
	require.NoError(t, err)
	assert.Equal(t, types.RunFailed, snap.Status)
	assert.NotEmpty(t, snap.Error)
}

func TestProgressRecorder_StoreFailureIsNotFatal(t *testing.T) {
	progress := newMemProgress()
	progress.err = errors.New("redis down")
	rec := NewProgressRecorder(progress, "run-3", "job-1", time.Hour, zerolog.Nop())

	assert.Error(t, rec.Queued(context.Background()))
	rec.Observe(context.Background())(types.ProgressEvent{Total: 2, CandidateID: "c", State: types.StateError})
	snap := rec.Snapshot()
	assert.Equal(t, 1, snap.FailCount)
	assert.Equal(t, 1, snap.Processed)
}

func TestProgressRecorder_KeepsRecentEvents(t *testing.T) {
	rec := NewProgressRecorder(nil, "run-4", "job-1", time.Hour, zerolog.Nop())
	observe := rec.Observe(context.Background())
	for i := 0; i < maxSnapshotEvents+25; i++ {
		observe(types.ProgressEvent{ProcessedIndex: i + 1, State: types.StateProcessing})
	}
	snap := rec.Snapshot()
	require.Len(t, snap.Events, maxSnapshotEvents)
	assert.Equal(t, maxSnapshotEvents+25, snap.Events[len(snap.Events)-1].ProcessedIndex)
	assert.Zero(t, snap.Processed, "processing events are not counted")
}

type capturePublisher struct {
	exchange, routingKey string
	msg                  storage.BatchRunMessage
	err                  error
}

func (p *capturePublisher) PublishJSON(_ context.Context, exchange, routingKey string, data interface{}, persistent bool) error {
	if p.err != nil {
		return p.err
	}
	p.exchange, p.routingKey = exchange, routingKey
	p.msg = data.(storage.BatchRunMessage)
	return nil
}

func dispatcherFor(store *memStore, pub Publisher, locker Locker, progress ProgressStore) *Dispatcher {
	return NewDispatcher(store, pub, locker, progress, DispatcherConfig{
		Exchange:    "ats.batch.exchange",
		RoutingKey:  "batch.run",
		ProgressTTL: time.Hour,
	}, zerolog.Nop())
}

func TestDispatcher_PublishesQueuedRun(t *testing.T) {
	pub := &capturePublisher{}
	progress := newMemProgress()
	d := dispatcherFor(seededStore(), pub, newMemLocker(), progress)

	runID, err := d.Dispatch(context.Background(), dateRange())
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	assert.Equal(t, "ats.batch.exchange", pub.exchange)
	assert.Equal(t, "batch.run", pub.routingKey)
	assert.Equal(t, runID, pub.msg.RunID)
	assert.Equal(t, "date_range", pub.msg.Mode)
	require.NotNil(t, pub.msg.From)

	snap, err := progress.GetProgress(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, types.RunQueued, snap.Status)
}

func TestDispatcher_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := dispatcherFor(seededStore(), &capturePublisher{}, nil, nil).
		Dispatch(ctx, Request{JobID: "ghost", Mode: ModeSelection, CandidateIDs: []string{"a"}})
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = dispatcherFor(seededStore(), &capturePublisher{}, nil, nil).
		Dispatch(ctx, Request{JobID: "job-1", Mode: ModeSelection})
	assert.ErrorIs(t, err, types.ErrInvalidRequest)

	locker := newMemLocker()
	_, _ = locker.AcquireJobLock(ctx, "job-1", time.Minute)
	_, err = dispatcherFor(seededStore(), &capturePublisher{}, locker, nil).Dispatch(ctx, dateRange())
	assert.ErrorIs(t, err, types.ErrBatchInProgress)

	progress := newMemProgress()
	pub := &capturePublisher{err: errors.New("channel closed")}
	_, err = dispatcherFor(seededStore(), pub, nil, progress).Dispatch(ctx, dateRange())
	assert.Error(t, err)
	for _, snaps := range progress.snaps {
		assert.Equal(t, types.RunFailed, snaps[len(snaps)-1].Status)
	}
}

type oneShotSource struct {
	bodies [][]byte
	acks   []bool
}

func (s *oneShotSource) Consume(ctx context.Context, _ string, _ int, handler func(context.Context, []byte) bool) error {
	for _, b := range s.bodies {
		s.acks = append(s.acks, handler(ctx, b))
	}
	return nil
}

func TestConsumer_ExecutesPublishedCommand(t *testing.T) {
	store := seededStore()
	progress := newMemProgress()
	pub := &capturePublisher{}
	runID, err := dispatcherFor(store, pub, nil, progress).
		Dispatch(context.Background(), Request{JobID: "job-1", Mode: ModeSelection, CandidateIDs: []string{"c-new", "c-rejected"}})
	require.NoError(t, err)

	body, err := json.Marshal(pub.msg)
	require.NoError(t, err)
	src := &oneShotSource{bodies: [][]byte{body, []byte("{not json")}}
	runner := NewRunner(NewOrchestrator(store, &stubExtractor{}, newEngine(t)), newMemLocker(), progress, time.Minute, time.Hour, zerolog.Nop())

	require.NoError(t, NewConsumer(src, runner, "q.ats_batch_runs", 1, zerolog.Nop()).Start(context.Background()))
	assert.Equal(t, []bool{true, false}, src.acks)

	snap, err := progress.GetProgress(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, types.RunCompleted, snap.Status)
	assert.Equal(t, 1, snap.SuccessCount)
	assert.Equal(t, 1, snap.SkippedCount)
	assert.NotNil(t, store.candidate("c-new").Score)
}
