package queue_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/everstory-ai/everstory/pkg/domain/interfaces"
	"github.com/everstory-ai/everstory/pkg/domain/types"
	"github.com/everstory-ai/everstory/pkg/service/queue"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestQueueProcessesJob(t *testing.T) {
	ctx := context.Background()
	q := queue.New(queue.WithWorkers(2), queue.WithBackoffBase(time.Millisecond))

	var got atomic.Value
	q.Register(types.JobNameCalculateCallCost, func(ctx context.Context, payload json.RawMessage) error {
		var body map[string]string
		if err := json.Unmarshal(payload, &body); err != nil {
			return err
		}
		got.Store(body["callId"])
		return nil
	})

	gt.NoError(t, q.Start(ctx)).Required()
	defer q.Stop()

	gt.NoError(t, q.Add(ctx, types.JobNameCalculateCallCost, map[string]string{"callId": "call-1"}))

	waitFor(t, func() bool { return got.Load() != nil })
	gt.Value(t, got.Load().(string)).Equal("call-1")

	// removeOnComplete: nothing left pending, nothing failed
	waitFor(t, func() bool { return q.PendingCount() == 0 })
	gt.Array(t, q.Failed()).Length(0)
}

func TestQueueRetriesUntilExhausted(t *testing.T) {
	ctx := context.Background()
	q := queue.New(queue.WithWorkers(1), queue.WithBackoffBase(time.Millisecond))

	var attempts atomic.Int32
	q.Register(types.JobNameExtractMemories, func(ctx context.Context, payload json.RawMessage) error {
		attempts.Add(1)
		return goerr.New("downstream unavailable")
	})

	gt.NoError(t, q.Start(ctx)).Required()
	defer q.Stop()

	gt.NoError(t, q.Add(ctx, types.JobNameExtractMemories, map[string]string{"callId": "call-2"},
		interfaces.WithMaxAttempts(3)))

	waitFor(t, func() bool { return len(q.Failed()) == 1 })

	gt.Number(t, int(attempts.Load())).Equal(3)
	failed := q.Failed()[0]
	gt.Number(t, failed.Attempts).Equal(3)
	gt.Value(t, failed.Name).Equal(types.JobNameExtractMemories)
	gt.Number(t, q.PendingCount()).Equal(0)
}

func TestQueueRecoversFromSucceedingRetry(t *testing.T) {
	ctx := context.Background()
	q := queue.New(queue.WithWorkers(1), queue.WithBackoffBase(time.Millisecond))

	var attempts atomic.Int32
	q.Register(types.JobNameRegenerateChapter, func(ctx context.Context, payload json.RawMessage) error {
		if attempts.Add(1) < 2 {
			return goerr.New("transient failure")
		}
		return nil
	})

	gt.NoError(t, q.Start(ctx)).Required()
	defer q.Stop()

	gt.NoError(t, q.Add(ctx, types.JobNameRegenerateChapter, map[string]string{"chapterId": "ch-1"}))

	waitFor(t, func() bool { return q.PendingCount() == 0 })
	gt.Number(t, int(attempts.Load())).Equal(2)
	gt.Array(t, q.Failed()).Length(0)
}

func TestQueueDropsDuplicateJobID(t *testing.T) {
	ctx := context.Background()
	q := queue.New(queue.WithWorkers(1), queue.WithBackoffBase(time.Millisecond))

	var calls atomic.Int32
	release := make(chan struct{})
	q.Register(types.JobNameExtractMemories, func(ctx context.Context, payload json.RawMessage) error {
		calls.Add(1)
		<-release
		return nil
	})

	gt.NoError(t, q.Start(ctx)).Required()
	defer q.Stop()

	// Same deterministic job ID twice while the first is still pending
	gt.NoError(t, q.Add(ctx, types.JobNameExtractMemories, map[string]string{"callId": "call-3"},
		interfaces.WithJobID("extract:call-3")))
	gt.NoError(t, q.Add(ctx, types.JobNameExtractMemories, map[string]string{"callId": "call-3"},
		interfaces.WithJobID("extract:call-3")))

	waitFor(t, func() bool { return calls.Load() >= 1 })
	close(release)

	waitFor(t, func() bool { return q.PendingCount() == 0 })
	gt.Number(t, int(calls.Load())).Equal(1)
}

func TestQueueDelayedJob(t *testing.T) {
	ctx := context.Background()
	q := queue.New(queue.WithWorkers(1), queue.WithBackoffBase(time.Millisecond))

	var ranAt atomic.Value
	q.Register(types.JobNameCalculateCallCost, func(ctx context.Context, payload json.RawMessage) error {
		ranAt.Store(time.Now())
		return nil
	})

	gt.NoError(t, q.Start(ctx)).Required()
	defer q.Stop()

	enqueued := time.Now()
	gt.NoError(t, q.Add(ctx, types.JobNameCalculateCallCost, map[string]string{"callId": "call-4"},
		interfaces.WithDelay(50*time.Millisecond)))

	waitFor(t, func() bool { return ranAt.Load() != nil })
	gt.Bool(t, ranAt.Load().(time.Time).Sub(enqueued) >= 50*time.Millisecond).True()
}

func TestQueueRejectsUnknownJobName(t *testing.T) {
	ctx := context.Background()
	q := queue.New()

	err := q.Add(ctx, types.JobName("made-up"), map[string]string{})
	gt.Error(t, err)
}

func TestQueuePanicIsRetried(t *testing.T) {
	ctx := context.Background()
	q := queue.New(queue.WithWorkers(1), queue.WithBackoffBase(time.Millisecond))

	var attempts atomic.Int32
	q.Register(types.JobNameExtractMemories, func(ctx context.Context, payload json.RawMessage) error {
		attempts.Add(1)
		panic("handler blew up")
	})

	gt.NoError(t, q.Start(ctx)).Required()
	defer q.Stop()

	gt.NoError(t, q.Add(ctx, types.JobNameExtractMemories, map[string]string{"callId": "call-5"},
		interfaces.WithMaxAttempts(2)))

	waitFor(t, func() bool { return len(q.Failed()) == 1 })
	gt.Number(t, int(attempts.Load())).Equal(2)
}
